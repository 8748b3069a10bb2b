// Package pipeline drives one retrieval invocation from plugin lookup to
// the written output file. The orchestrator holds no state between
// invocations; every run resolves, fetches, validates, renders, and
// writes from scratch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/observability"
	"github.com/43ravens/ECget/internal/registry"
)

// Stage names the orchestrator step a failure occurred in.
type Stage string

const (
	StageResolving  Stage = "resolving"
	StageFetching   Stage = "fetching"
	StageValidating Stage = "validating"
	StageRendering  Stage = "rendering"
	StageWriting    Stage = "writing"
)

// Error wraps a stage failure with the plugins involved. The underlying
// error is reachable through errors.As/Is.
type Error struct {
	Stage     Stage
	Source    string
	Formatter string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline %s (source %q, formatter %q): %v",
		e.Stage, e.Source, e.Formatter, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sink stores one rendered output.
type Sink interface {
	Write(path string, data []byte) error
}

// Request describes one retrieval invocation.
type Request struct {
	Source     string
	Station    string
	Variables  []domain.Variable
	Start      time.Time
	End        time.Time
	Formatter  string
	OutputPath string
}

// Orchestrator runs requests against a populated registry.
type Orchestrator struct {
	registry *registry.Registry
	sink     Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates an Orchestrator with the given collaborators.
func New(reg *registry.Registry, sink Sink, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes one invocation. Exactly one adapter and one formatter are
// involved; any stage failure is terminal and wrapped in *Error.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	start := time.Now()

	adapterFactory, err := o.registry.Adapter(req.Source)
	if err != nil {
		return o.fail(req, StageResolving, err)
	}
	formatterFactory, err := o.registry.Formatter(req.Formatter)
	if err != nil {
		return o.fail(req, StageResolving, err)
	}
	adapter := adapterFactory()
	formatter := formatterFactory()

	fetchStart := time.Now()
	records, err := adapter.Fetch(ctx, domain.FetchRequest{
		Station:   req.Station,
		Variables: req.Variables,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		var merr *domain.MalformedResponseError
		if errors.As(err, &merr) {
			o.metrics.RowsSkipped.WithLabelValues(req.Source).Add(float64(merr.Skipped))
		}
		return o.fail(req, StageFetching, err)
	}
	o.metrics.FetchDuration.WithLabelValues(req.Source).Observe(time.Since(fetchStart).Seconds())
	o.metrics.RecordsFetched.WithLabelValues(req.Source).Add(float64(len(records)))

	ordered, err := domain.Validate(records, req.Variables)
	if err != nil {
		return o.fail(req, StageValidating, err)
	}

	data, err := formatter.Render(ordered)
	if err != nil {
		return o.fail(req, StageRendering, err)
	}

	if err := o.sink.Write(req.OutputPath, data); err != nil {
		return o.fail(req, StageWriting, err)
	}

	o.metrics.PipelineRuns.WithLabelValues(req.Source, req.Formatter, "success").Inc()
	o.logger.Info("pipeline run complete",
		"source", req.Source,
		"formatter", req.Formatter,
		"station", req.Station,
		"records", len(ordered),
		"bytes", len(data),
		"output", req.OutputPath,
		"duration", time.Since(start),
	)
	return nil
}

func (o *Orchestrator) fail(req Request, stage Stage, err error) error {
	o.metrics.PipelineRuns.WithLabelValues(req.Source, req.Formatter, "error").Inc()
	o.logger.Error("pipeline run failed",
		"source", req.Source,
		"formatter", req.Formatter,
		"station", req.Station,
		"stage", string(stage),
		"error", err,
	)
	return &Error{Stage: stage, Source: req.Source, Formatter: req.Formatter, Err: err}
}
