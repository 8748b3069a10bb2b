package format

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/43ravens/ECget/internal/domain"
)

// sogMissing is the reading SOG interprets as "no data". Each layout
// prints it in its own column width.
const sogMissing = -999.0

// SOGDaily renders a daily river flow forcing file.
//
// One line per day:
//
//	2014 01 22 1.234567e+03
type SOGDaily struct{}

// NewSOGDaily returns the SOG daily river flow formatter.
func NewSOGDaily() *SOGDaily { return &SOGDaily{} }

func (f *SOGDaily) Name() string { return "SOG-daily" }

func (f *SOGDaily) Required() []domain.Variable {
	return []domain.Variable{domain.VariableDischarge}
}

func (f *SOGDaily) Render(records []domain.Record) ([]byte, error) {
	if err := checkRequired(f.Name(), records, f.Required()); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("! year month day value\n")
	for _, r := range records {
		if r.Variable != domain.VariableDischarge {
			return nil, &domain.FormatError{
				Formatter: f.Name(),
				Err:       fmt.Errorf("unexpected variable %q", r.Variable),
			}
		}
		v := sogMissing
		if reading, ok := r.Value.Float(); ok {
			v = reading
		}
		fmt.Fprintf(&buf, "%s %e\n", r.Timestamp.Format("2006 01 02"), v)
	}
	return buf.Bytes(), nil
}

// SOGHourly renders an hourly single-variable forcing file.
//
// One line per hour:
//
//	2014 02 09 00 5.00
type SOGHourly struct{}

// NewSOGHourly returns the SOG hourly scalar formatter.
func NewSOGHourly() *SOGHourly { return &SOGHourly{} }

func (f *SOGHourly) Name() string { return "SOG-hourly" }

// Required is empty: the layout carries any one weather scalar. Render
// enforces that the sequence is a single-variable series.
func (f *SOGHourly) Required() []domain.Variable { return nil }

func (f *SOGHourly) Render(records []domain.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, &domain.FormatError{Formatter: f.Name(), Err: errors.New("no records")}
	}
	series := records[0].Variable
	var buf bytes.Buffer
	buf.WriteString("! year month day hour value\n")
	for _, r := range records {
		if r.Variable != series {
			return nil, &domain.FormatError{
				Formatter: f.Name(),
				Err:       fmt.Errorf("mixed variables %q and %q", series, r.Variable),
			}
		}
		v := sogMissing
		if reading, ok := r.Value.Float(); ok {
			v = reading
		}
		fmt.Fprintf(&buf, "%s %02d %.2f\n",
			r.Timestamp.Format("2006 01 02"), r.Timestamp.Hour(), v)
	}
	return buf.Bytes(), nil
}

// SOGWindHourly renders hourly cross- and along-strait wind components
// from paired speed and direction records.
//
// One line per hour:
//
//	06 02 2014 0.0 -0.8478 8.0667
type SOGWindHourly struct{}

// NewSOGWindHourly returns the SOG hourly wind component formatter.
func NewSOGWindHourly() *SOGWindHourly { return &SOGWindHourly{} }

func (f *SOGWindHourly) Name() string { return "SOG-wind-hourly" }

func (f *SOGWindHourly) Required() []domain.Variable {
	return []domain.Variable{domain.VariableWindSpeed, domain.VariableWindDirection}
}

func (f *SOGWindHourly) Render(records []domain.Record) ([]byte, error) {
	if err := checkRequired(f.Name(), records, f.Required()); err != nil {
		return nil, err
	}

	type pair struct {
		speed, direction domain.Value
	}
	pairs := map[int64]*pair{}
	var order []int64
	stamps := map[int64]domain.Record{}
	for _, r := range records {
		key := r.Timestamp.UnixNano()
		p, ok := pairs[key]
		if !ok {
			p = &pair{}
			pairs[key] = p
			order = append(order, key)
			stamps[key] = r
		}
		switch r.Variable {
		case domain.VariableWindSpeed:
			p.speed = r.Value
		case domain.VariableWindDirection:
			p.direction = r.Value
		default:
			return nil, &domain.FormatError{
				Formatter: f.Name(),
				Err:       fmt.Errorf("unexpected variable %q", r.Variable),
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("! day month year hour cross_wind along_wind\n")
	for _, key := range order {
		t := stamps[key].Timestamp
		cross, along := sogMissing, sogMissing
		p := pairs[key]
		speed, speedOK := p.speed.Float()
		direction, directionOK := p.direction.Float()
		if speedOK && directionOK {
			cross, along = domain.WindComponents(speed, direction)
		}
		fmt.Fprintf(&buf, "%s %.1f %.4f %.4f\n",
			t.Format("02 01 2006"), float64(t.Hour()), cross, along)
	}
	return buf.Bytes(), nil
}
