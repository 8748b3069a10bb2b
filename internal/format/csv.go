package format

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/43ravens/ECget/internal/domain"
)

// csvMissing is the audit layout's missing-value token.
const csvMissing = "n/a"

// CSV renders a generic audit file of whatever records a fetch produced.
// Unlike the SOG layouts it carries station, quality, and mixed variables.
type CSV struct{}

// NewCSV returns the audit CSV formatter.
func NewCSV() *CSV { return &CSV{} }

func (f *CSV) Name() string { return "csv" }

func (f *CSV) Required() []domain.Variable { return nil }

func (f *CSV) Render(records []domain.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"station", "variable", "timestamp", "value", "quality"}); err != nil {
		return nil, &domain.FormatError{Formatter: f.Name(), Err: err}
	}
	for _, r := range records {
		value := csvMissing
		if reading, ok := r.Value.Float(); ok {
			value = strconv.FormatFloat(reading, 'g', -1, 64)
		}
		row := []string{
			r.Station,
			string(r.Variable),
			r.Timestamp.Format(time.RFC3339),
			value,
			string(r.Quality),
		}
		if err := w.Write(row); err != nil {
			return nil, &domain.FormatError{Formatter: f.Name(), Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &domain.FormatError{Formatter: f.Name(), Err: err}
	}
	return buf.Bytes(), nil
}
