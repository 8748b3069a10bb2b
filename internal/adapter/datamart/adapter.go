// Package datamart fetches hourly weather observations from SWOB-ML files
// published on the Environment Canada CMC Datamart. One file is published
// per station per observation hour; the adapter issues one bounded request
// per hour in the range and parses the point-observation elements it needs.
package datamart

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/parse"
	"github.com/43ravens/ECget/internal/transport"
)

const (
	// Name is the stable registry name.
	Name = "datamart"

	defaultBaseURL = "https://dd.weather.gc.ca/observations/swob-ml"
)

// missingTokens are the element-value strings SWOB-ML uses for "no
// reading".
var missingTokens = []string{"", "MSNG", "-9999"}

// pacific is the zone SOG forcing files want timestamps in; SWOB-ML
// publishes UTC.
var pacific = time.FixedZone("PST", -8*60*60)

// cloudFractionByCode maps EC cloud amount codes to tenths of cloud
// fraction, per the SWOB-ML product user guide.
var cloudFractionByCode = map[string]float64{
	"0":  0,
	"32": 1,
	"33": 2.5,
	"34": 4,
	"35": 5,
	"36": 6,
	"37": 7.5,
	"38": 9,
	"39": 10,
}

// Config tunes one adapter instance. Zero fields get defaults.
type Config struct {
	BaseURL       string
	MaxSkipRate   float64
	MaxConcurrent int
}

// Adapter implements domain.Adapter for Datamart SWOB-ML files.
type Adapter struct {
	getter transport.Getter
	logger *slog.Logger
	cfg    Config
}

// New creates a datamart adapter using the injected transport.
func New(getter transport.Getter, logger *slog.Logger, cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxSkipRate == 0 {
		cfg.MaxSkipRate = 0.5
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 4
	}
	return &Adapter{getter: getter, logger: logger, cfg: cfg}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Variables() []domain.Variable {
	return []domain.Variable{
		domain.VariableAirTemperature,
		domain.VariableRelativeHumidity,
		domain.VariableCloudFraction,
		domain.VariableWindSpeed,
		domain.VariableWindDirection,
	}
}

func (a *Adapter) Resolution() domain.Resolution { return domain.ResolutionHourly }

// Fetch retrieves one record per requested variable per hour in the range.
// Hours run concurrently; an hour whose SWOB-ML file is absent (HTTP 404)
// yields missing-marker records, since stations stop reporting without
// that being a transport failure.
func (a *Adapter) Fetch(ctx context.Context, req domain.FetchRequest) ([]domain.Record, error) {
	if err := domain.CheckCapability(Name, a.Variables(), req.Variables); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hours := hourRange(req.Start, req.End)
	results := make([][]domain.Record, len(hours))
	counters := make([]parse.SkipCounter, len(hours))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrent)
	for i, hour := range hours {
		g.Go(func() error {
			resp, err := a.getter.Get(gctx, FileURL(a.cfg.BaseURL, req.Station, hour), nil)
			if transport.IsNotFound(err) {
				results[i] = missingRecords(req.Station, req.Variables, hour)
				return nil
			}
			if err != nil {
				return err
			}
			records, perr := ParseSWOB(resp.Body, req.Station, req.Variables, &counters[i])
			if perr != nil {
				// A file that is not SWOB-ML at all counts against the
				// skip budget as one lost observation hour.
				counters[i].Skip()
				results[i] = missingRecords(req.Station, req.Variables, hour)
				return nil
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Completed hours are discarded along with the failure.
		return nil, err
	}

	var counter parse.SkipCounter
	var records []domain.Record
	for i := range hours {
		records = append(records, results[i]...)
		counter.Merge(counters[i])
	}
	if counter.ExceedsThreshold(a.cfg.MaxSkipRate) {
		return nil, &domain.MalformedResponseError{
			Source:  Name,
			Skipped: counter.Skipped(),
			Total:   counter.Total(),
			MaxRate: a.cfg.MaxSkipRate,
		}
	}

	a.logger.Debug("datamart fetch complete",
		"station", req.Station,
		"hours", len(hours),
		"skipped", counter.Skipped(),
	)
	return records, nil
}

// FileURL builds the Datamart URL of the SWOB-ML file for one station
// hour, e.g. .../swob-ml/20140106/CYVR/2014-01-06-2100-CYVR-AUTO-swob.xml.
func FileURL(baseURL, station string, hour time.Time) string {
	utc := hour.UTC()
	return fmt.Sprintf("%s/%s/%s/%s-%s-AUTO-swob.xml",
		baseURL,
		utc.Format("20060102"),
		station,
		utc.Format("2006-01-02-1504"),
		station,
	)
}

// SWOB-ML point-observation structure, reduced to the elements the
// adapter reads.

type swobFile struct {
	IDElements []swobElement `xml:"member>Observation>metadata>set>identification-elements>element"`
	Elements   []swobElement `xml:"member>Observation>result>elements>element"`
}

type swobElement struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	UOM   string `xml:"uom,attr"`
}

// ParseSWOB parses one SWOB-ML file into records for the requested
// variables. A requested variable the file carries no element for becomes
// a missing-marker record; an element whose value fails numeric coercion
// is skipped and counted.
func ParseSWOB(body []byte, station string, variables []domain.Variable, counter *parse.SkipCounter) ([]domain.Record, error) {
	var file swobFile
	if err := xml.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("unmarshal SWOB-ML: %w", err)
	}

	var stamp time.Time
	for _, el := range file.IDElements {
		if el.Name == "date_tm" {
			t, err := parse.Timestamp(el.Value, domain.ResolutionHourly, time.UTC)
			if err != nil {
				return nil, err
			}
			stamp = t.In(pacific)
			break
		}
	}
	if stamp.IsZero() {
		return nil, fmt.Errorf("no date_tm identification element")
	}

	records := make([]domain.Record, 0, len(variables))
	for _, v := range variables {
		value, ok := elementValue(file.Elements, v, counter)
		if !ok {
			continue
		}
		records = append(records, domain.Record{
			Station:    station,
			Variable:   v,
			Timestamp:  stamp,
			Resolution: domain.ResolutionHourly,
			Value:      value,
		})
		if value.IsMissing() {
			continue
		}
		counter.Keep()
	}
	return records, nil
}

// elementValue extracts and converts one variable's reading from the
// file's elements. The bool result is false only when the element parsed
// so badly it was skipped; "not reported" returns the missing marker.
func elementValue(elements []swobElement, v domain.Variable, counter *parse.SkipCounter) (domain.Value, bool) {
	switch v {
	case domain.VariableAirTemperature:
		return scalarElement(elements, "air_temp", counter)
	case domain.VariableRelativeHumidity:
		return scalarElement(elements, "rel_hum", counter)
	case domain.VariableWindSpeed:
		value, ok := prefixElement(elements, "avg_wnd_spd_10m", counter)
		if !ok || value.IsMissing() {
			return value, ok
		}
		kmh, _ := value.Float()
		return domain.NewValue(domain.KmhToMs(kmh)), true
	case domain.VariableWindDirection:
		return prefixElement(elements, "avg_wnd_dir_10m", counter)
	case domain.VariableCloudFraction:
		return cloudFraction(elements, counter)
	default:
		return domain.Missing(), true
	}
}

func scalarElement(elements []swobElement, name string, counter *parse.SkipCounter) (domain.Value, bool) {
	for _, el := range elements {
		if el.Name != name {
			continue
		}
		value, err := parse.NumericOrMissing(el.Value, missingTokens)
		if err != nil {
			counter.Skip()
			return domain.Value{}, false
		}
		return value, true
	}
	return domain.Missing(), true
}

func prefixElement(elements []swobElement, prefix string, counter *parse.SkipCounter) (domain.Value, bool) {
	for _, el := range elements {
		if !strings.HasPrefix(el.Name, prefix) {
			continue
		}
		value, err := parse.NumericOrMissing(el.Value, missingTokens)
		if err != nil {
			counter.Skip()
			return domain.Value{}, false
		}
		return value, true
	}
	return domain.Missing(), true
}

// cloudFraction prefers the total cloud amount element and falls back to
// summing per-layer cloud amount codes, capped at full cover.
func cloudFraction(elements []swobElement, counter *parse.SkipCounter) (domain.Value, bool) {
	var layersTotal float64
	var sawLayer bool
	for _, el := range elements {
		if el.Name == "tot_cld_amt" {
			value, err := parse.NumericOrMissing(el.Value, missingTokens)
			if err != nil {
				counter.Skip()
				return domain.Value{}, false
			}
			if value.IsMissing() {
				return value, true
			}
			// tot_cld_amt is percent of sky; SOG wants tenths.
			pct, _ := value.Float()
			return domain.NewValue(pct / 10), true
		}
		if strings.HasPrefix(el.Name, "cld_amt_code_") {
			amt, ok := cloudFractionByCode[strings.TrimSpace(el.Value)]
			if !ok {
				counter.Skip()
				return domain.Value{}, false
			}
			layersTotal += amt
			sawLayer = true
		}
	}
	if !sawLayer {
		return domain.Missing(), true
	}
	if layersTotal > 10 {
		layersTotal = 10
	}
	return domain.NewValue(layersTotal), true
}

func missingRecords(station string, variables []domain.Variable, hour time.Time) []domain.Record {
	records := make([]domain.Record, len(variables))
	for i, v := range variables {
		records[i] = domain.Record{
			Station:    station,
			Variable:   v,
			Timestamp:  hour.In(pacific),
			Resolution: domain.ResolutionHourly,
			Value:      domain.Missing(),
		}
	}
	return records
}

// hourRange expands an inclusive date range into observation hours. An end
// date at midnight means "through the end of that day".
func hourRange(start, end time.Time) []time.Time {
	s := start.Truncate(time.Hour)
	e := end
	if e.Hour() == 0 && e.Minute() == 0 && e.Second() == 0 {
		e = e.Add(23 * time.Hour)
	} else {
		e = e.Truncate(time.Hour)
	}
	var hours []time.Time
	for t := s; !t.After(e); t = t.Add(time.Hour) {
		hours = append(hours, t)
	}
	return hours
}
