// Command ecget retrieves Environment Canada river and weather data and
// renders it into model forcing files.
//
//	ecget river   -station 08MF005 -start 2014-01-01 -end 2014-01-31 -o flow.dat
//	ecget weather -station CYVR -start 2014-01-06 -end 2014-01-06 -variables air_temperature -o temp.dat
//	ecget watch   -station CYVR -variables wind_speed,wind_direction -formatter SOG-wind-hourly -o wind.dat
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/43ravens/ECget/internal/adapter/datamart"
	httpadapter "github.com/43ravens/ECget/internal/adapter/http"
	"github.com/43ravens/ECget/internal/adapter/wateroffice"
	"github.com/43ravens/ECget/internal/config"
	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/observability"
	"github.com/43ravens/ECget/internal/pipeline"
	"github.com/43ravens/ECget/internal/plugins"
	"github.com/43ravens/ECget/internal/registry"
	"github.com/43ravens/ECget/internal/sink"
	"github.com/43ravens/ECget/internal/transport"
	"github.com/43ravens/ECget/internal/watch"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	getter := transport.NewCachedGetter(
		transport.NewClient(cfg.HTTPTimeout, logger), cfg.CacheSize)
	reg := registry.New()
	if err := plugins.RegisterBuiltins(reg, getter, cfg, logger); err != nil {
		logger.Error("plugin registration failed", "error", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "river":
		err = runOnce(cfg, reg, logger, metrics, wateroffice.Name, "SOG-daily",
			string(domain.VariableDischarge), os.Args[2:])
	case "weather":
		err = runOnce(cfg, reg, logger, metrics, datamart.Name, "SOG-hourly",
			string(domain.VariableAirTemperature), os.Args[2:])
	case "watch":
		err = runWatch(cfg, reg, getter, logger, metrics, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ecget <river|weather|watch> [flags]")
}

func runOnce(cfg *config.Config, reg *registry.Registry, logger *slog.Logger,
	metrics *observability.Metrics, source, defaultFormatter, defaultVariables string, args []string) error {
	fs := flag.NewFlagSet(source, flag.ExitOnError)
	station := fs.String("station", "", "station id")
	start := fs.String("start", "", "first date, YYYY-MM-DD")
	end := fs.String("end", "", "last date, YYYY-MM-DD (inclusive)")
	variables := fs.String("variables", defaultVariables, "comma-separated variables")
	formatter := fs.String("formatter", defaultFormatter,
		"output format, one of: "+strings.Join(reg.FormatterNames(), ", "))
	output := fs.String("o", "", "output file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *station == "" || *start == "" || *end == "" || *output == "" {
		fs.Usage()
		return errors.New("-station, -start, -end, and -o are required")
	}

	startTime, err := time.Parse("2006-01-02", *start)
	if err != nil {
		return fmt.Errorf("bad -start: %w", err)
	}
	endTime, err := time.Parse("2006-01-02", *end)
	if err != nil {
		return fmt.Errorf("bad -end: %w", err)
	}
	vars, err := parseVariables(*variables)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o := pipeline.New(reg, sink.NewFileSink(), logger, metrics)
	return o.Run(ctx, pipeline.Request{
		Source:     source,
		Station:    *station,
		Variables:  vars,
		Start:      startTime,
		End:        endTime,
		Formatter:  *formatter,
		OutputPath: *output,
	})
}

func runWatch(cfg *config.Config, reg *registry.Registry, getter transport.Getter,
	logger *slog.Logger, metrics *observability.Metrics, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	station := fs.String("station", "", "station id")
	variables := fs.String("variables", string(domain.VariableAirTemperature),
		"comma-separated variables")
	formatterName := fs.String("formatter", "SOG-hourly",
		"output format, one of: "+strings.Join(reg.FormatterNames(), ", "))
	output := fs.String("o", "", "output file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *station == "" || *output == "" {
		fs.Usage()
		return errors.New("-station and -o are required")
	}

	vars, err := parseVariables(*variables)
	if err != nil {
		return err
	}
	formatterFactory, err := reg.Formatter(*formatterName)
	if err != nil {
		return err
	}
	groupID, err := watch.GroupID(cfg.QueuesDir, cfg.KafkaGroupIDPrefix)
	if err != nil {
		return err
	}

	source := watch.NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, groupID, logger)
	defer source.Close()

	w := watch.New(source, getter, formatterFactory(), sink.NewFileSink(), logger, metrics,
		watch.Config{
			Station:    *station,
			Variables:  vars,
			OutputPath: *output,
			Lifetime:   cfg.WatchLifetime,
		})

	srv := httpadapter.NewServer(cfg.HTTPAddr, w, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runErr := w.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	return runErr
}

func parseVariables(s string) ([]domain.Variable, error) {
	var vars []domain.Variable
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		v, err := domain.ParseVariable(name)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	if len(vars) == 0 {
		return nil, errors.New("no variables requested")
	}
	return vars, nil
}
