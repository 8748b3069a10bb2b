package domain

import (
	"context"
	"errors"
	"time"
)

// FetchRequest names the station, variables, and date range one adapter
// fetch covers. Start and End are inclusive dates in the source's zone.
type FetchRequest struct {
	Station   string
	Variables []Variable
	Start     time.Time
	End       time.Time
}

// Validate checks the request's input constraints: a station, at least one
// variable, a non-empty range that does not extend into the future.
func (r FetchRequest) Validate() error {
	if r.Station == "" {
		return errors.New("station is required")
	}
	if len(r.Variables) == 0 {
		return errors.New("at least one variable is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("start and end dates are required")
	}
	if r.End.Before(r.Start) {
		return errors.New("end date precedes start date")
	}
	if r.Start.After(clock.Now()) {
		return errors.New("date range extends into the future")
	}
	return nil
}

// Adapter is the source plugin contract: one implementation per upstream
// data source. Fetch issues requests through the injected transport and
// parses the responses into records. Network I/O only; no file writes.
type Adapter interface {
	// Name is the stable registry name.
	Name() string

	// Variables is the declared capability set.
	Variables() []Variable

	// Resolution is the time resolution of every record this adapter emits.
	Resolution() Resolution

	// Fetch retrieves records for the request. Requesting a variable outside
	// Variables fails with *UnsupportedVariableError before any network
	// activity. Unparseable rows are skipped and counted; past the adapter's
	// skip-rate threshold the whole fetch fails with
	// *MalformedResponseError.
	Fetch(ctx context.Context, req FetchRequest) ([]Record, error)
}

// Formatter is the output plugin contract: one implementation per target
// file layout. Render may assume records are validated and sorted by
// timestamp ascending, must not mutate them, and must be byte-stable for
// identical input.
type Formatter interface {
	// Name is the stable registry name. A layout change is a breaking
	// change shipped under a new name, never an in-place edit.
	Name() string

	// Required is the variable set the layout needs. Render fails with
	// *MissingVariableError when the records do not cover it.
	Required() []Variable

	// Render produces the complete output file body.
	Render(records []Record) ([]byte, error)
}

// AdapterFactory and FormatterFactory are the units of registration: they
// defer construction so the registry stays free of plugin dependencies.
type (
	AdapterFactory   func() Adapter
	FormatterFactory func() Formatter
)

// CheckCapability verifies that every requested variable is within an
// adapter's declared set.
func CheckCapability(adapter string, declared, requested []Variable) error {
	caps := make(map[Variable]bool, len(declared))
	for _, v := range declared {
		caps[v] = true
	}
	for _, v := range requested {
		if !caps[v] {
			return &UnsupportedVariableError{Adapter: adapter, Variable: v}
		}
	}
	return nil
}
