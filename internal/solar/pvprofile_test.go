package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand_forecast/internal/model"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewProfile(t *testing.T) {
	p := NewProfile(1000, 0)
	require.Equal(t, 12, p.PeakHour)
	assert.Equal(t, DefaultLatitude, p.Latitude)
	assert.InDelta(t, 1.0, p.HourlyFactor[12], 1e-9)
	assert.Equal(t, 0.0, p.HourlyFactor[0])
}

func TestPowerAt(t *testing.T) {
	p := NewProfile(1000, 37.5)
	solstice := day(time.June, 21)

	assert.InDelta(t, 1000.0, p.PowerAt(solstice, 12), 5)
	assert.Equal(t, 0.0, p.PowerAt(solstice, 0))

	mid := p.PowerAt(solstice, 11.5)
	assert.Less(t, mid, p.PowerAt(solstice, 12))
	assert.Greater(t, mid, p.PowerAt(solstice, 11))
}

func TestDailyOutput_Seasonal(t *testing.T) {
	p := NewProfile(1000, 37.5)
	summer := p.DailyOutput(day(time.June, 21))
	winter := p.DailyOutput(day(time.December, 21))

	assert.Greater(t, summer, 0.0)
	assert.Greater(t, summer, winter*1.5, "summer yields clearly more than winter")
	assert.Greater(t, winter, 0.0)
}

func TestEstimate(t *testing.T) {
	p := NewProfile(1000, 37.5)

	observed := model.NewDailyRecord(day(time.May, 1))
	observed.SolarOutput = 1234
	assert.Equal(t, 1234.0, p.Estimate(observed))

	clear := model.NewDailyRecord(day(time.May, 1))
	clear.HighTemp, clear.LowTemp = 25, 10
	cloudy := clear
	cloudy.HighTemp, cloudy.LowTemp = 18, 15
	assert.Greater(t, p.Estimate(clear), p.Estimate(cloudy))

	none := NewProfile(0, 37.5)
	assert.Equal(t, 0.0, none.Estimate(clear))
}

func TestCalibrate(t *testing.T) {
	p := NewProfile(1000, 37.5)

	var records []model.DailyRecord
	for i := 0; i < 5; i++ {
		r := model.NewDailyRecord(day(time.April, 1+i))
		r.HighTemp, r.LowTemp = 20, 8
		r.SolarOutput = 0.5 * p.Estimate(r)
		records = append(records, r)
	}
	records = append(records, model.NewDailyRecord(day(time.April, 10)))

	cal := p.Calibrate(records)
	assert.InDelta(t, 0.5, cal.Scale, 1e-6)
	assert.Equal(t, 1.0, p.Scale, "receiver unchanged")

	assert.Equal(t, p, p.Calibrate(nil))
}

func TestInterpolateProfile_Wrapping(t *testing.T) {
	var factors [24]float64
	factors[23] = 0.1
	factors[0] = 0.2

	assert.InDelta(t, 0.15, interpolateProfile(factors, 23.5), 0.01)
	assert.InDelta(t, 0.15, interpolateProfile(factors, -0.5), 0.01)
}
