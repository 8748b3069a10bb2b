package domain

import (
	"fmt"
	"strings"
	"time"
)

// PluginKind distinguishes the two plugin namespaces in the registry.
type PluginKind string

const (
	KindAdapter   PluginKind = "adapter"
	KindFormatter PluginKind = "formatter"
)

// UnknownPluginError reports a registry lookup for a name that was never
// registered.
type UnknownPluginError struct {
	Kind PluginKind
	Name string
}

func (e *UnknownPluginError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// DuplicateNameError reports a second registration under an already-taken
// name. Accidental silent shadowing of a plugin is never allowed.
type DuplicateNameError struct {
	Kind PluginKind
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already registered", e.Kind, e.Name)
}

// UnsupportedVariableError reports a fetch request for a variable outside
// the adapter's declared capability. Raised before any network activity.
type UnsupportedVariableError struct {
	Adapter  string
	Variable Variable
}

func (e *UnsupportedVariableError) Error() string {
	return fmt.Sprintf("adapter %q does not provide variable %q", e.Adapter, e.Variable)
}

// MalformedResponseError reports that too large a share of an upstream
// response failed to parse, which usually means the source changed its
// layout rather than shipped a few corrupt rows.
type MalformedResponseError struct {
	Source  string
	Skipped int
	Total   int
	MaxRate float64
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf(
		"source %q response malformed: %d of %d rows unparseable (max skip rate %.2f)",
		e.Source, e.Skipped, e.Total, e.MaxRate)
}

// ValidationReason classifies a record-set validation failure.
type ValidationReason string

const (
	ReasonDuplicateRecord ValidationReason = "duplicate record"
	ReasonOutOfCapability ValidationReason = "variable outside expected set"
)

// ValidationError reports a defective record set. The offending identity
// tuple is included so the caller can see exactly which reading collided.
type ValidationError struct {
	Reason    ValidationReason
	Station   string
	Variable  Variable
	Timestamp time.Time
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: station %q variable %q at %s",
		e.Reason, e.Station, e.Variable, e.Timestamp.Format(time.RFC3339))
}

// EmptyResultError reports a fetch that produced zero records. A range that
// legitimately has only missing readings still produces records carrying
// the missing marker, so zero records always indicates a defect or a bad
// request.
type EmptyResultError struct {
	Source  string
	Station string
	Start   time.Time
	End     time.Time
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("source %q returned no records for station %q %s..%s",
		e.Source, e.Station,
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// MissingVariableError reports that the record set handed to a formatter
// does not cover the variables its target layout needs.
type MissingVariableError struct {
	Formatter string
	Missing   []Variable
}

func (e *MissingVariableError) Error() string {
	names := make([]string, len(e.Missing))
	for i, v := range e.Missing {
		names[i] = string(v)
	}
	return fmt.Sprintf("formatter %q missing required variable(s): %s",
		e.Formatter, strings.Join(names, ", "))
}

// FormatError reports a rendering failure inside a formatter.
type FormatError struct {
	Formatter string
	Err       error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("formatter %q: %v", e.Formatter, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
