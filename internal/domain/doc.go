// Package domain models Environment Canada (EC) environmental observations
// and the plugin contracts that move them through the pipeline.
//
// # Data Sources
//
// River/hydrometric readings come from the EC wateroffice text-mode data
// pages (https://wateroffice.ec.gc.ca/). Weather readings come from SWOB-ML
// files published on the CMC Datamart (https://dd.weather.gc.ca/). Each
// upstream source is wrapped by a source adapter that produces canonical
// [Record] values; each downstream file layout is produced by a formatter.
//
// # Records
//
// A Record is one time-stamped reading of one variable at one station. The
// value carries an explicit missing marker: a gap in the upstream data is
// represented as a Record whose Value reports IsMissing, never as 0.0 and
// never by dropping the Record. Formatters render the marker using the
// target format's own missing token.
//
// Within one fetch, (station, variable, timestamp) identifies a Record
// uniquely; duplicates are a defect and are rejected by [Validate] rather
// than deduplicated. Validate also establishes the timestamp-ascending
// order that formatters are entitled to assume.
//
// # Quality Flags
//
// The wateroffice site marks provisional readings with a trailing asterisk
// on the value; that flag is carried through as [QualityProvisional]. A
// source that publishes no quality information leaves the field empty.
//
// # Wind Components
//
// SOG wind forcing wants wind resolved into cross-strait and along-strait
// components rotated to the 305° heading of the Strait of Georgia, with the
// oceanographic direction convention (direction the wind blows toward). The
// rotation lives in [WindComponents] so formatters stay pure layout code.
package domain
