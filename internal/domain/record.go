package domain

import (
	"fmt"
	"time"
)

// Variable identifies a measured quantity. Each source adapter declares the
// subset it can produce; formatters declare the subset they require.
type Variable string

const (
	VariableDischarge        Variable = "discharge"         // river discharge, m³/s
	VariableWaterLevel       Variable = "water_level"       // river water level, m
	VariableAirTemperature   Variable = "air_temperature"   // °C
	VariableRelativeHumidity Variable = "relative_humidity" // %
	VariableCloudFraction    Variable = "cloud_fraction"    // tenths, 0-10
	VariableWindSpeed        Variable = "wind_speed"        // m/s
	VariableWindDirection    Variable = "wind_direction"    // degrees true, meteorological
)

// ParseVariable converts a CLI/config string into a Variable.
func ParseVariable(s string) (Variable, error) {
	switch v := Variable(s); v {
	case VariableDischarge, VariableWaterLevel, VariableAirTemperature,
		VariableRelativeHumidity, VariableCloudFraction,
		VariableWindSpeed, VariableWindDirection:
		return v, nil
	default:
		return "", fmt.Errorf("unknown variable %q", s)
	}
}

// Resolution is the time resolution a source declares for its records.
// All records from one fetch share one resolution.
type Resolution string

const (
	ResolutionHourly Resolution = "hourly"
	ResolutionDaily  Resolution = "daily"
)

// Quality is an upstream-provided quality flag, empty when the source
// publishes none.
type Quality string

const (
	QualityProvisional Quality = "provisional"
	QualityEstimated   Quality = "estimated"
	QualityFinal       Quality = "final"
)

// Value is a numeric reading or an explicit missing marker. The zero Value
// is the missing marker, so a forgotten assignment reads as "no data"
// rather than as a spurious 0.0.
type Value struct {
	f       float64
	present bool
}

// NewValue returns a present Value.
func NewValue(f float64) Value {
	return Value{f: f, present: true}
}

// Missing returns the explicit missing marker.
func Missing() Value {
	return Value{}
}

// IsMissing reports whether the value is the missing marker.
func (v Value) IsMissing() bool {
	return !v.present
}

// Float returns the numeric reading and true, or 0 and false for the
// missing marker.
func (v Value) Float() (float64, bool) {
	return v.f, v.present
}

func (v Value) String() string {
	if !v.present {
		return "missing"
	}
	return fmt.Sprintf("%g", v.f)
}

// Record is one canonical time-stamped observation. Records are created by
// source adapters during a fetch and are immutable afterwards.
type Record struct {
	Station    string
	Variable   Variable
	Timestamp  time.Time
	Resolution Resolution
	Value      Value
	Quality    Quality
}

// Key returns the identity tuple used for duplicate detection.
func (r Record) Key() string {
	return fmt.Sprintf("%s|%s|%d", r.Station, r.Variable, r.Timestamp.UnixNano())
}
