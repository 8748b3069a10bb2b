package wateroffice_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/43ravens/ECget/internal/adapter/wateroffice"
	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/transport"
)

// fakeGetter serves a canned HTML page and records the requests it saw.
type fakeGetter struct {
	mu    sync.Mutex
	page  string
	gets  []url.Values
	posts []url.Values
}

func (g *fakeGetter) Get(_ context.Context, rawURL string, params url.Values) (*transport.RawResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets = append(g.gets, params)
	return &transport.RawResponse{URL: rawURL, Status: 200, Body: []byte(g.page)}, nil
}

func (g *fakeGetter) PostForm(_ context.Context, rawURL string, form url.Values) (*transport.RawResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posts = append(g.posts, form)
	return &transport.RawResponse{URL: rawURL, Status: 200}, nil
}

func dataPage(rows ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="dataTable"><tr><th>Date (PST)</th><th>Value</th></tr>`)
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func row(ts, value string) string {
	return fmt.Sprintf(`<tr><td>%s</td><td>%s</td></tr>`, ts, value)
}

func newAdapter(t *testing.T, g *fakeGetter) *wateroffice.Adapter {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2014, time.June, 1, 0, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
	return wateroffice.New(g, slog.Default(), wateroffice.Config{})
}

func fetchReq(vars ...domain.Variable) domain.FetchRequest {
	return domain.FetchRequest{
		Station:   "08MF005",
		Variables: vars,
		Start:     time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2014, time.January, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetch_DailyAveragesWithMissingDay(t *testing.T) {
	g := &fakeGetter{page: dataPage(
		row("2014-01-01 00:00:00", "1000"),
		row("2014-01-01 12:00:00", "3000"),
		// No rows at all for Jan 2.
		row("2014-01-03 00:00:00", "1200*"),
	)}
	a := newAdapter(t, g)

	records, err := a.Fetch(context.Background(), fetchReq(domain.VariableDischarge))
	require.NoError(t, err)
	require.Len(t, records, 3)

	day1 := records[0]
	f, ok := day1.Value.Float()
	require.True(t, ok)
	assert.InDelta(t, 2000, f, 1e-9)
	assert.Equal(t, domain.Quality(""), day1.Quality)
	assert.Equal(t, domain.ResolutionDaily, day1.Resolution)

	day2 := records[1]
	assert.True(t, day2.Value.IsMissing(), "a day with no readings is a missing record, not absent")
	assert.Equal(t, 2, day2.Timestamp.Day())

	day3 := records[2]
	f, ok = day3.Value.Float()
	require.True(t, ok)
	assert.InDelta(t, 1200, f, 1e-9)
	assert.Equal(t, domain.QualityProvisional, day3.Quality, "trailing * marks a provisional value")
}

func TestFetch_MissingTokenIsMissingNotZero(t *testing.T) {
	g := &fakeGetter{page: dataPage(
		row("2014-01-01 00:00:00", "n/a"),
		row("2014-01-02 00:00:00", "n/a"),
		row("2014-01-03 00:00:00", "n/a"),
	)}
	a := newAdapter(t, g)

	records, err := a.Fetch(context.Background(), fetchReq(domain.VariableDischarge))
	require.NoError(t, err, "a range with only missing readings is not a failure")
	require.Len(t, records, 3)
	for _, r := range records {
		assert.True(t, r.Value.IsMissing())
	}
}

func TestFetch_PostsDisclaimerBeforeData(t *testing.T) {
	g := &fakeGetter{page: dataPage(row("2014-01-01 00:00:00", "1000"))}
	a := newAdapter(t, g)

	_, err := a.Fetch(context.Background(), fetchReq(domain.VariableDischarge))
	require.NoError(t, err)

	require.Len(t, g.posts, 1)
	assert.Equal(t, "I Agree", g.posts[0].Get("disclaimer_action"))
}

func TestFetch_RequestParams(t *testing.T) {
	g := &fakeGetter{page: dataPage(row("2014-01-01 00:00:00", "1000"))}
	a := newAdapter(t, g)

	_, err := a.Fetch(context.Background(), fetchReq(domain.VariableDischarge))
	require.NoError(t, err)

	require.Len(t, g.gets, 1)
	params := g.gets[0]
	assert.Equal(t, "text", params.Get("mode"))
	assert.Equal(t, "6", params.Get("prm1"))
	assert.Equal(t, "08MF005", params.Get("stn"))
	assert.Equal(t, "1", params.Get("sday"))
	// End day is sent exclusive: Jan 3 range asks through Jan 4.
	assert.Equal(t, "4", params.Get("eday"))
}

func TestFetch_OneRequestPerVariable(t *testing.T) {
	g := &fakeGetter{page: dataPage(row("2014-01-01 00:00:00", "1000"))}
	a := newAdapter(t, g)

	records, err := a.Fetch(context.Background(), fetchReq(domain.VariableDischarge, domain.VariableWaterLevel))
	require.NoError(t, err)
	assert.Len(t, g.gets, 2)
	assert.Len(t, records, 6) // 3 days × 2 variables

	prms := []string{g.gets[0].Get("prm1"), g.gets[1].Get("prm1")}
	assert.ElementsMatch(t, []string{"6", "3"}, prms)
}

func TestFetch_LongRangeSplitsIntoChunks(t *testing.T) {
	g := &fakeGetter{page: dataPage(row("2014-01-01 00:00:00", "1000"))}
	a := newAdapter(t, g)

	req := domain.FetchRequest{
		Station:   "08MF005",
		Variables: []domain.Variable{domain.VariableDischarge},
		Start:     time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2014, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
	records, err := a.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, len(g.gets), "74 days should fan out into three ≤31-day requests")
	assert.Len(t, records, 74)
}

func TestFetch_UnsupportedVariableBeforeAnyNetwork(t *testing.T) {
	g := &fakeGetter{}
	a := newAdapter(t, g)

	_, err := a.Fetch(context.Background(), fetchReq(domain.VariableWindSpeed))
	var uerr *domain.UnsupportedVariableError
	require.ErrorAs(t, err, &uerr)
	assert.Empty(t, g.gets)
	assert.Empty(t, g.posts)
}

func TestFetch_SkipRatePolicy(t *testing.T) {
	// 2 of 5 rows malformed (40%): skipped and counted, fetch succeeds.
	g := &fakeGetter{page: dataPage(
		row("2014-01-01 00:00:00", "1000"),
		row("garbage-date", "1000"),
		row("2014-01-02 00:00:00", "not-a-number"),
		row("2014-01-02 12:00:00", "2000"),
		row("2014-01-03 00:00:00", "3000"),
	)}
	a := newAdapter(t, g)

	records, err := a.Fetch(context.Background(), fetchReq(domain.VariableDischarge))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// 3 of 5 rows malformed (60%): the layout probably changed; fail loudly.
	g.page = dataPage(
		row("2014-01-01 00:00:00", "1000"),
		row("garbage-date", "1000"),
		row("2014-01-02 00:00:00", "not-a-number"),
		row("2014-01-02 12:00:00", "also-bad"),
		row("2014-01-03 00:00:00", "3000"),
	)
	_, err = a.Fetch(context.Background(), fetchReq(domain.VariableDischarge))
	var merr *domain.MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, wateroffice.Name, merr.Source)
	assert.Equal(t, 3, merr.Skipped)
	assert.Equal(t, 5, merr.Total)
}

func TestFetch_FutureRangeRejected(t *testing.T) {
	g := &fakeGetter{}
	a := newAdapter(t, g)

	req := fetchReq(domain.VariableDischarge)
	req.Start = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	req.End = req.Start
	_, err := a.Fetch(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, g.gets)
}

func TestFetch_RowsPastRequestedEndIgnored(t *testing.T) {
	g := &fakeGetter{page: dataPage(
		row("2014-01-01 00:00:00", "1000"),
		row("2014-01-04 00:00:00", "9999"), // from the exclusive-end request
	)}
	a := newAdapter(t, g)

	records, err := a.Fetch(context.Background(), fetchReq(domain.VariableDischarge))
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.LessOrEqual(t, r.Timestamp.Day(), 3)
	}
}
