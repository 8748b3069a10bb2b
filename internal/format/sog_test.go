package format_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/43ravens/ECget/internal/domain"
	"github.com/43ravens/ECget/internal/format"
)

var pst = time.FixedZone("PST", -8*60*60)

func dailyRecord(day int, value domain.Value) domain.Record {
	return domain.Record{
		Station:    "08MF005",
		Variable:   domain.VariableDischarge,
		Timestamp:  time.Date(2014, time.January, day, 0, 0, 0, 0, pst),
		Resolution: domain.ResolutionDaily,
		Value:      value,
	}
}

func hourlyRecord(v domain.Variable, hour int, value domain.Value) domain.Record {
	return domain.Record{
		Station:    "CYVR",
		Variable:   v,
		Timestamp:  time.Date(2014, time.February, 9, hour, 0, 0, 0, pst),
		Resolution: domain.ResolutionHourly,
		Value:      value,
	}
}

func TestSOGDailyLayout(t *testing.T) {
	f := format.NewSOGDaily()
	out, err := f.Render([]domain.Record{
		dailyRecord(22, domain.NewValue(1234.567)),
		dailyRecord(23, domain.Missing()),
	})
	require.NoError(t, err)
	assert.Equal(t,
		"! year month day value\n"+
			"2014 01 22 1.234567e+03\n"+
			"2014 01 23 -9.990000e+02\n",
		string(out))
}

func TestSOGDailyRequiresDischarge(t *testing.T) {
	f := format.NewSOGDaily()

	_, err := f.Render(nil)
	var merr *domain.MissingVariableError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "SOG-daily", merr.Formatter)
	assert.Equal(t, []domain.Variable{domain.VariableDischarge}, merr.Missing)

	_, err = f.Render([]domain.Record{
		hourlyRecord(domain.VariableAirTemperature, 0, domain.NewValue(5)),
	})
	assert.ErrorAs(t, err, &merr)
}

func TestSOGDailyRejectsForeignVariable(t *testing.T) {
	f := format.NewSOGDaily()
	_, err := f.Render([]domain.Record{
		dailyRecord(22, domain.NewValue(1234.567)),
		hourlyRecord(domain.VariableAirTemperature, 0, domain.NewValue(5)),
	})
	var ferr *domain.FormatError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "SOG-daily", ferr.Formatter)
}

func TestSOGHourlyLayout(t *testing.T) {
	f := format.NewSOGHourly()
	out, err := f.Render([]domain.Record{
		hourlyRecord(domain.VariableAirTemperature, 0, domain.NewValue(5)),
		hourlyRecord(domain.VariableAirTemperature, 1, domain.Missing()),
	})
	require.NoError(t, err)
	assert.Equal(t,
		"! year month day hour value\n"+
			"2014 02 09 00 5.00\n"+
			"2014 02 09 01 -999.00\n",
		string(out))
}

func TestSOGHourlyRejectsMixedSeries(t *testing.T) {
	f := format.NewSOGHourly()
	_, err := f.Render([]domain.Record{
		hourlyRecord(domain.VariableAirTemperature, 0, domain.NewValue(5)),
		hourlyRecord(domain.VariableRelativeHumidity, 0, domain.NewValue(87)),
	})
	var ferr *domain.FormatError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "SOG-hourly", ferr.Formatter)
}

func TestSOGHourlyRejectsEmpty(t *testing.T) {
	f := format.NewSOGHourly()
	_, err := f.Render(nil)
	var ferr *domain.FormatError
	assert.ErrorAs(t, err, &ferr)
}

func TestSOGWindHourlyLayout(t *testing.T) {
	f := format.NewSOGWindHourly()
	out, err := f.Render([]domain.Record{
		hourlyRecord(domain.VariableWindDirection, 0, domain.NewValue(35)),
		hourlyRecord(domain.VariableWindSpeed, 0, domain.NewValue(10)),
		hourlyRecord(domain.VariableWindDirection, 1, domain.Missing()),
		hourlyRecord(domain.VariableWindSpeed, 1, domain.NewValue(4)),
	})
	require.NoError(t, err)

	cross, along := domain.WindComponents(10, 35)
	assert.Equal(t,
		"! day month year hour cross_wind along_wind\n"+
			fmt.Sprintf("09 02 2014 0.0 %.4f %.4f\n", cross, along)+
			"09 02 2014 1.0 -999.0000 -999.0000\n",
		string(out))
}

func TestSOGWindHourlyRequiresBothComponents(t *testing.T) {
	f := format.NewSOGWindHourly()
	_, err := f.Render([]domain.Record{
		hourlyRecord(domain.VariableWindSpeed, 0, domain.NewValue(10)),
	})
	var merr *domain.MissingVariableError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []domain.Variable{domain.VariableWindDirection}, merr.Missing)
}

func TestSOGWindHourlyUnpairedHourIsMissing(t *testing.T) {
	f := format.NewSOGWindHourly()
	out, err := f.Render([]domain.Record{
		hourlyRecord(domain.VariableWindDirection, 0, domain.NewValue(35)),
		hourlyRecord(domain.VariableWindSpeed, 0, domain.NewValue(10)),
		// Hour 1 has a direction but no speed record at all.
		hourlyRecord(domain.VariableWindDirection, 1, domain.NewValue(100)),
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "09 02 2014 1.0 -999.0000 -999.0000\n")
}
