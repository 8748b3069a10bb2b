// Package watch keeps a SOG forcing file current from Datamart
// notifications. Instead of polling, it consumes file-URL messages from a
// broker topic, fetches each new SWOB-ML file, and rewrites the output
// after every observation, so the downstream model always reads the
// freshest complete file.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/43ravens/ECget/internal/adapter/datamart"
	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/observability"
	"github.com/43ravens/ECget/internal/parse"
	"github.com/43ravens/ECget/internal/transport"
)

// Source yields raw notification payloads from the broker.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Sink stores one rendered output.
type Sink interface {
	Write(path string, data []byte) error
}

// Config describes one watch session.
type Config struct {
	Station    string
	Variables  []domain.Variable
	OutputPath string
	// Lifetime bounds the session; the consumer exits cleanly when it
	// elapses. Zero means 900 s.
	Lifetime time.Duration
}

// Watcher accumulates records for one station over a bounded session and
// rewrites the output file after each consumed notification.
type Watcher struct {
	source    Source
	getter    transport.Getter
	formatter domain.Formatter
	sink      Sink
	logger    *slog.Logger
	metrics   *observability.Metrics
	cfg       Config

	ready atomic.Bool
	// records holds the session's observations keyed by Record identity;
	// a redelivered file replaces rather than duplicates.
	records map[string]domain.Record
}

// New creates a Watcher. The formatter is fixed for the session.
func New(source Source, getter transport.Getter, formatter domain.Formatter, sink Sink,
	logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Watcher {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 900 * time.Second
	}
	return &Watcher{
		source:    source,
		getter:    getter,
		formatter: formatter,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		records:   make(map[string]domain.Record),
	}
}

// CheckReadiness returns nil once at least one notification has been
// rendered into the output file.
func (w *Watcher) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("watch has not rendered any notifications yet")
	}
	return nil
}

// Run consumes notifications until the session lifetime elapses or the
// context is cancelled. Per-message failures are counted and logged, not
// fatal; a broken source ends the session.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Lifetime)
	defer cancel()

	w.logger.Info("watch started",
		"station", w.cfg.Station,
		"output", w.cfg.OutputPath,
		"lifetime", w.cfg.Lifetime,
	)
	w.metrics.WatchRunning.Set(1)
	defer w.metrics.WatchRunning.Set(0)

	for {
		payload, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("watch session over", "reason", ctx.Err())
				return nil
			}
			return err
		}
		w.consume(ctx, strings.TrimSpace(string(payload)))
	}
}

func (w *Watcher) consume(ctx context.Context, url string) {
	if url == "" || !strings.Contains(url, "/"+w.cfg.Station+"/") {
		w.metrics.WatchMessages.WithLabelValues("ignored").Inc()
		return
	}

	resp, err := w.getter.Get(ctx, url, nil)
	if err != nil {
		w.metrics.WatchMessages.WithLabelValues("error").Inc()
		w.logger.Error("notification fetch failed", "url", url, "error", err)
		return
	}

	var counter parse.SkipCounter
	records, err := datamart.ParseSWOB(resp.Body, w.cfg.Station, w.cfg.Variables, &counter)
	if err != nil {
		w.metrics.WatchMessages.WithLabelValues("error").Inc()
		w.logger.Error("notification parse failed", "url", url, "error", err)
		return
	}
	for _, r := range records {
		w.records[r.Key()] = r
	}

	if err := w.render(); err != nil {
		w.metrics.WatchMessages.WithLabelValues("error").Inc()
		w.logger.Error("notification render failed", "url", url, "error", err)
		return
	}
	w.ready.Store(true)
	w.metrics.WatchMessages.WithLabelValues("rendered").Inc()
	w.logger.Debug("output rewritten",
		"url", url,
		"records", len(w.records),
		"skipped", counter.Skipped(),
	)
}

func (w *Watcher) render() error {
	all := make([]domain.Record, 0, len(w.records))
	for _, r := range w.records {
		all = append(all, r)
	}
	ordered, err := domain.Validate(all, w.cfg.Variables)
	if err != nil {
		return err
	}
	data, err := w.formatter.Render(ordered)
	if err != nil {
		return err
	}
	return w.sink.Write(w.cfg.OutputPath, data)
}
