package watch_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/43ravens/ECget/internal/adapter/datamart"
	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/format"
	"github.com/43ravens/ECget/internal/observability"
	"github.com/43ravens/ECget/internal/sink"
	"github.com/43ravens/ECget/internal/transport"
	"github.com/43ravens/ECget/internal/watch"
)

const baseURL = "http://datamart.test/swob-ml"

// fakeSource serves queued payloads, then blocks until the session ends.
type fakeSource struct {
	payloads [][]byte
}

func (s *fakeSource) Next(ctx context.Context) ([]byte, error) {
	if len(s.payloads) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p := s.payloads[0]
	s.payloads = s.payloads[1:]
	return p, nil
}

func (s *fakeSource) Close() error { return nil }

// fakeGetter serves canned SWOB-ML bodies by URL.
type fakeGetter struct {
	bodies map[string]string
	gets   int
}

func (g *fakeGetter) Get(_ context.Context, rawURL string, _ url.Values) (*transport.RawResponse, error) {
	g.gets++
	body, ok := g.bodies[rawURL]
	if !ok {
		return nil, &transport.Error{Kind: transport.KindHTTPStatus, URL: rawURL, Status: http.StatusNotFound}
	}
	return &transport.RawResponse{URL: rawURL, Status: 200, Body: []byte(body)}, nil
}

func (g *fakeGetter) PostForm(_ context.Context, rawURL string, _ url.Values) (*transport.RawResponse, error) {
	return &transport.RawResponse{URL: rawURL, Status: 200}, nil
}

func swobBody(stamp time.Time, temp string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<om:ObservationCollection xmlns:om="http://www.opengis.net/om/1.0">
  <om:member><om:Observation>
    <om:metadata><set><identification-elements>
      <element name="date_tm" value=%q/>
    </identification-elements></set></om:metadata>
    <om:result><elements>
      <element name="air_temp" value=%q uom="°C"/>
    </elements></om:result>
  </om:Observation></om:member>
</om:ObservationCollection>`, stamp.UTC().Format("2006-01-02T15:04:05")+".000Z", temp)
}

func newWatcher(source watch.Source, getter transport.Getter, output string) *watch.Watcher {
	return watch.New(source, getter, format.NewSOGHourly(), sink.NewFileSink(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
		watch.Config{
			Station:    "CYVR",
			Variables:  []domain.Variable{domain.VariableAirTemperature},
			OutputPath: output,
			Lifetime:   100 * time.Millisecond,
		})
}

func TestRunRendersEachNotification(t *testing.T) {
	hour0 := time.Date(2014, time.January, 6, 20, 0, 0, 0, time.UTC)
	hour1 := hour0.Add(time.Hour)
	url0 := datamart.FileURL(baseURL, "CYVR", hour0)
	url1 := datamart.FileURL(baseURL, "CYVR", hour1)

	getter := &fakeGetter{bodies: map[string]string{
		url0: swobBody(hour0, "-1.6"),
		url1: swobBody(hour1, "-2.1"),
	}}
	source := &fakeSource{payloads: [][]byte{
		[]byte(url0),
		[]byte(datamart.FileURL(baseURL, "CWVF", hour0)), // other station, ignored
		[]byte(url1),
	}}
	output := filepath.Join(t.TempDir(), "weather.dat")
	w := newWatcher(source, getter, output)

	require.Error(t, w.CheckReadiness(context.Background()))
	require.NoError(t, w.Run(context.Background()))
	require.NoError(t, w.CheckReadiness(context.Background()))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	// 20:00 and 21:00 UTC are 12:00 and 13:00 PST.
	assert.Equal(t,
		"! year month day hour value\n"+
			"2014 01 06 12 -1.60\n"+
			"2014 01 06 13 -2.10\n",
		string(got))
	assert.Equal(t, 2, getter.gets, "ignored station never fetched")
}

func TestRunRedeliveryDoesNotDuplicate(t *testing.T) {
	hour := time.Date(2014, time.January, 6, 20, 0, 0, 0, time.UTC)
	fileURL := datamart.FileURL(baseURL, "CYVR", hour)
	getter := &fakeGetter{bodies: map[string]string{fileURL: swobBody(hour, "-1.6")}}
	source := &fakeSource{payloads: [][]byte{[]byte(fileURL), []byte(fileURL)}}
	output := filepath.Join(t.TempDir(), "weather.dat")

	require.NoError(t, newWatcher(source, getter, output).Run(context.Background()))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(got), "\n"), "header plus one record line")
}

func TestRunFetchFailureIsNotFatal(t *testing.T) {
	hour := time.Date(2014, time.January, 6, 20, 0, 0, 0, time.UTC)
	missing := datamart.FileURL(baseURL, "CYVR", hour)
	present := datamart.FileURL(baseURL, "CYVR", hour.Add(time.Hour))
	getter := &fakeGetter{bodies: map[string]string{
		present: swobBody(hour.Add(time.Hour), "-2.1"),
	}}
	source := &fakeSource{payloads: [][]byte{[]byte(missing), []byte(present)}}
	output := filepath.Join(t.TempDir(), "weather.dat")
	w := newWatcher(source, getter, output)

	require.NoError(t, w.Run(context.Background()))
	require.NoError(t, w.CheckReadiness(context.Background()))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(got), "2014 01 06 13 -2.10\n")
}

func TestRunEndsAtLifetime(t *testing.T) {
	w := newWatcher(&fakeSource{}, &fakeGetter{}, filepath.Join(t.TempDir(), "weather.dat"))

	start := time.Now()
	require.NoError(t, w.Run(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Error(t, w.CheckReadiness(context.Background()), "nothing consumed")
}

func TestGroupIDPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	first, err := watch.GroupID(dir, "ecget")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "ecget."))

	second, err := watch.GroupID(dir, "ecget")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := watch.GroupID(dir, "other")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}
