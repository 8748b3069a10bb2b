// Package parse holds the tolerant parsing helpers shared by source
// adapters: timestamp and numeric coercion, HTML table extraction, and the
// skip counter that bounds how much tolerance a fetch is allowed.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/43ravens/ECget/internal/domain"
)

// Error reports a single unparseable field. Adapters recover from row-level
// Errors by skipping and counting the row; anything else escalates.
type Error struct {
	Field string
	Raw   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Raw, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Timestamp layouts by declared resolution. Upstream datetimes carry no
// zone designator; the source adapter supplies the zone it publishes in.
var layouts = map[domain.Resolution][]string{
	domain.ResolutionHourly: {
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.000Z",
	},
	domain.ResolutionDaily: {
		"2006-01-02 15:04:05",
		"2006-01-02",
	},
}

// Timestamp parses a raw datetime string at the expected resolution in the
// given zone.
func Timestamp(raw string, resolution domain.Resolution, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range layouts[resolution] {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &Error{Field: "timestamp", Raw: raw, Err: fmt.Errorf("no %s layout matched", resolution)}
}

// NumericOrMissing coerces a raw value field to a domain value. Tokens in
// missingTokens map to the explicit missing marker; any other string that
// fails numeric coercion is a parse error, never silently treated as
// missing or as zero.
func NumericOrMissing(raw string, missingTokens []string) (domain.Value, error) {
	trimmed := strings.TrimSpace(raw)
	for _, tok := range missingTokens {
		if trimmed == tok {
			return domain.Missing(), nil
		}
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return domain.Value{}, &Error{Field: "value", Raw: raw, Err: err}
	}
	return domain.NewValue(f), nil
}

// Table extracts cell text from the rows of the table selected by selector,
// requiring at least columns cells per row. Rows with fewer cells are
// dropped and counted against the skip counter; they feed the same
// skip-rate policy as row-level parse failures.
func Table(doc *goquery.Document, selector string, columns int, counter *SkipCounter) [][]string {
	var rows [][]string
	doc.Find(selector).Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return // header row
		}
		if cells.Length() < columns {
			counter.Skip()
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})
	return rows
}

// SkipCounter tracks kept versus skipped rows across one adapter fetch.
// The threshold is checked once at the end of the fetch, never
// incrementally mid-loop, so the verdict is independent of row order.
type SkipCounter struct {
	kept    int
	skipped int
}

// Keep counts a successfully parsed row.
func (c *SkipCounter) Keep() { c.kept++ }

// Skip counts a dropped row.
func (c *SkipCounter) Skip() { c.skipped++ }

// Kept returns the number of rows parsed successfully.
func (c *SkipCounter) Kept() int { return c.kept }

// Skipped returns the number of rows dropped.
func (c *SkipCounter) Skipped() int { return c.skipped }

// Total returns the number of rows seen.
func (c *SkipCounter) Total() int { return c.kept + c.skipped }

// Merge folds another counter's tallies into this one. Concurrent chunk
// fetches keep private counters and merge them once all chunks are in.
func (c *SkipCounter) Merge(other SkipCounter) {
	c.kept += other.kept
	c.skipped += other.skipped
}

// ExceedsThreshold reports whether the skip rate is strictly greater than
// maxRate. A counter that saw no rows at all does not exceed any threshold;
// emptiness is the validator's concern, not the parser's.
func (c *SkipCounter) ExceedsThreshold(maxRate float64) bool {
	total := c.Total()
	if total == 0 {
		return false
	}
	return float64(c.skipped)/float64(total) > maxRate
}
