// Package plugins performs the compiled-in plugin registration. Every
// adapter and formatter the binary ships is registered here explicitly,
// so the registry's content is fully inspectable in one place.
package plugins

import (
	"log/slog"

	"github.com/43ravens/ECget/internal/adapter/datamart"
	"github.com/43ravens/ECget/internal/adapter/wateroffice"
	"github.com/43ravens/ECget/internal/config"
	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/format"
	"github.com/43ravens/ECget/internal/registry"
	"github.com/43ravens/ECget/internal/transport"
)

// RegisterBuiltins registers every compiled-in adapter and formatter.
func RegisterBuiltins(reg *registry.Registry, getter transport.Getter, cfg *config.Config, logger *slog.Logger) error {
	adapters := map[string]domain.AdapterFactory{
		wateroffice.Name: func() domain.Adapter {
			return wateroffice.New(getter, logger, wateroffice.Config{
				DisclaimerURL: cfg.WaterofficeDisclaimerURL,
				DataURL:       cfg.WaterofficeDataURL,
				MaxSkipRate:   cfg.MaxSkipRate,
				MaxConcurrent: cfg.MaxConcurrent,
			})
		},
		datamart.Name: func() domain.Adapter {
			return datamart.New(getter, logger, datamart.Config{
				BaseURL:       cfg.DatamartBaseURL,
				MaxSkipRate:   cfg.MaxSkipRate,
				MaxConcurrent: cfg.MaxConcurrent,
			})
		},
	}
	for name, factory := range adapters {
		if err := reg.RegisterAdapter(name, factory); err != nil {
			return err
		}
	}

	formatters := map[string]domain.FormatterFactory{
		"SOG-daily":       func() domain.Formatter { return format.NewSOGDaily() },
		"SOG-hourly":      func() domain.Formatter { return format.NewSOGHourly() },
		"SOG-wind-hourly": func() domain.Formatter { return format.NewSOGWindHourly() },
		"csv":             func() domain.Formatter { return format.NewCSV() },
	}
	for name, factory := range formatters {
		if err := reg.RegisterFormatter(name, factory); err != nil {
			return err
		}
	}
	return nil
}
