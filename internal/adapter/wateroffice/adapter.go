// Package wateroffice fetches river/hydrometric readings from the
// Environment Canada wateroffice site's text-mode data pages and averages
// the sub-daily readings into daily records.
//
// The site gates data behind a disclaimer form; the adapter posts the
// agreement once per fetch and relies on the transport's cookie jar for the
// session. Values carrying the site's trailing-asterisk marker are flagged
// provisional.
package wateroffice

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/parse"
	"github.com/43ravens/ECget/internal/transport"
)

const (
	// Name is the stable registry name.
	Name = "wateroffice"

	defaultDisclaimerURL = "https://wateroffice.ec.gc.ca/include/disclaimer.php"
	defaultDataURL       = "https://wateroffice.ec.gc.ca/graph/graph_e.html"

	// chunkDays caps the span of one data request; longer ranges fan out
	// into concurrent per-chunk requests.
	chunkDays = 31
)

// paramIDs maps variables to the site's prm1 query parameter.
var paramIDs = map[domain.Variable]int{
	domain.VariableDischarge:  6,
	domain.VariableWaterLevel: 3,
}

// missingTokens are the value-cell strings this source uses for "no
// reading".
var missingTokens = []string{"", "--", "n/a", "N/A", "NA"}

// pacific is the zone wateroffice publishes datetimes in.
var pacific = time.FixedZone("PST", -8*60*60)

// Config tunes one adapter instance. Zero fields get defaults.
type Config struct {
	DisclaimerURL string
	DataURL       string
	MaxSkipRate   float64 // fetch fails when skipped/total exceeds this
	MaxConcurrent int     // concurrent upstream requests per fetch
}

// Adapter implements domain.Adapter for the wateroffice site.
type Adapter struct {
	getter transport.Getter
	logger *slog.Logger
	cfg    Config
}

// New creates a wateroffice adapter using the injected transport.
func New(getter transport.Getter, logger *slog.Logger, cfg Config) *Adapter {
	if cfg.DisclaimerURL == "" {
		cfg.DisclaimerURL = defaultDisclaimerURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = defaultDataURL
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
	return []domain.Variable{domain.VariableDischarge, domain.VariableWaterLevel}
}

func (a *Adapter) Resolution() domain.Resolution { return domain.ResolutionDaily }

// observation is one parsed sub-daily table row.
type observation struct {
	variable    domain.Variable
	at          time.Time
	value       domain.Value
	provisional bool
}

// Fetch retrieves daily-averaged records for the request. One upstream
// request is issued per (variable, ≤31-day chunk); chunks run concurrently
// and the merged rows are averaged per day. Requested days the source has
// no readings for yield missing-marker records.
func (a *Adapter) Fetch(ctx context.Context, req domain.FetchRequest) ([]domain.Record, error) {
	if err := domain.CheckCapability(Name, a.Variables(), req.Variables); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := a.getter.PostForm(ctx, a.cfg.DisclaimerURL, url.Values{
		"disclaimer_action": {"I Agree"},
	}); err != nil {
		return nil, err
	}

	type task struct {
		variable   domain.Variable
		start, end time.Time
	}
	var tasks []task
	for _, v := range req.Variables {
		for _, c := range splitRange(req.Start, req.End, chunkDays) {
			tasks = append(tasks, task{variable: v, start: c[0], end: c[1]})
		}
	}

	results := make([][]observation, len(tasks))
	counters := make([]parse.SkipCounter, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrent)
	for i, tk := range tasks {
		g.Go(func() error {
			obs, err := a.fetchChunk(gctx, req.Station, tk.variable, tk.start, tk.end, &counters[i])
			if err != nil {
				return err
			}
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Results from completed chunks are discarded with the failure;
		// partial silent output is worse than a clear error.
		return nil, err
	}

	var counter parse.SkipCounter
	var observations []observation
	for i := range tasks {
		observations = append(observations, results[i]...)
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

	a.logger.Debug("wateroffice fetch complete",
		"station", req.Station,
		"rows", counter.Total(),
		"skipped", counter.Skipped(),
	)
	return dailyAverages(req, observations), nil
}

// fetchChunk issues one text-mode data request and parses its table rows.
func (a *Adapter) fetchChunk(ctx context.Context, station string, variable domain.Variable, start, end time.Time, counter *parse.SkipCounter) ([]observation, error) {
	// The site treats the end day as exclusive.
	last := end.AddDate(0, 0, 1)
	params := url.Values{
		"mode": {"text"},
		"prm1": {strconv.Itoa(paramIDs[variable])},
		"stn":  {station},
		"syr":  {strconv.Itoa(start.Year())},
		"smo":  {strconv.Itoa(int(start.Month()))},
		"sday": {strconv.Itoa(start.Day())},
		"eyr":  {strconv.Itoa(last.Year())},
		"emo":  {strconv.Itoa(int(last.Month()))},
		"eday": {strconv.Itoa(last.Day())},
	}

	resp, err := a.getter.Get(ctx, a.cfg.DataURL, params)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &domain.MalformedResponseError{Source: Name, MaxRate: a.cfg.MaxSkipRate}
	}

	var observations []observation
	for _, row := range parse.Table(doc, "table#dataTable", 2, counter) {
		at, err := parse.Timestamp(row[0], domain.ResolutionDaily, pacific)
		if err != nil {
			counter.Skip()
			continue
		}
		if dayAfter(at, end) {
			// The exclusive-end request can return rows past the range.
			continue
		}

		raw := row[1]
		provisional := strings.HasSuffix(raw, "*")
		raw = strings.TrimSuffix(raw, "*")
		value, err := parse.NumericOrMissing(raw, missingTokens)
		if err != nil {
			counter.Skip()
			continue
		}
		counter.Keep()
		observations = append(observations, observation{
			variable:    variable,
			at:          at,
			value:       value,
			provisional: provisional,
		})
	}
	return observations, nil
}

// dailyAverages folds sub-daily observations into one record per requested
// day per variable. Days whose readings are all missing, and days the
// source returned nothing for, get missing-marker records rather than being
// dropped.
func dailyAverages(req domain.FetchRequest, observations []observation) []domain.Record {
	type accumulator struct {
		sum         float64
		count       int
		provisional bool
	}
	days := make(map[string]*accumulator)
	for _, o := range observations {
		f, ok := o.value.Float()
		if !ok {
			continue
		}
		key := string(o.variable) + "|" + o.at.Format("2006-01-02")
		acc := days[key]
		if acc == nil {
			acc = &accumulator{}
			days[key] = acc
		}
		acc.sum += f
		acc.count++
		acc.provisional = acc.provisional || o.provisional
	}

	var records []domain.Record
	for _, v := range req.Variables {
		for d := req.Start; !dayAfter(d, req.End); d = d.AddDate(0, 0, 1) {
			day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, pacific)
			rec := domain.Record{
				Station:    req.Station,
				Variable:   v,
				Timestamp:  day,
				Resolution: domain.ResolutionDaily,
				Value:      domain.Missing(),
			}
			if acc, ok := days[string(v)+"|"+day.Format("2006-01-02")]; ok && acc.count > 0 {
				rec.Value = domain.NewValue(acc.sum / float64(acc.count))
				if acc.provisional {
					rec.Quality = domain.QualityProvisional
				}
			}
			records = append(records, rec)
		}
	}
	return records
}

// splitRange cuts [start, end] into inclusive sub-ranges of at most days
// days each.
func splitRange(start, end time.Time, days int) [][2]time.Time {
	var chunks [][2]time.Time
	for s := start; !s.After(end); s = s.AddDate(0, 0, days) {
		e := s.AddDate(0, 0, days-1)
		if e.After(end) {
			e = end
		}
		chunks = append(chunks, [2]time.Time{s, e})
	}
	return chunks
}

func dayAfter(t, end time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := end.Date()
	if y1 != y2 {
		return y1 > y2
	}
	if m1 != m2 {
		return m1 > m2
	}
	return d1 > d2
}
