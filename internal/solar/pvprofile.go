package solar

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"demand_forecast/internal/model"
)

// DefaultLatitude is used when no site latitude is configured (central Korea).
const DefaultLatitude = 37.5

// PVProfile estimates the daily energy of the grid's installed PV fleet.
type PVProfile struct {
	// HourlyFactor holds the normalized clear-sky output for each hour [0-23].
	// Peak hour = 1.0, other hours scaled relative to peak.
	HourlyFactor [24]float64
	PeakHour     int
	// CapacityMW is the installed fleet capacity.
	CapacityMW float64
	Latitude   float64
	// Scale calibrates the clear-sky estimate against observed daily output.
	Scale float64
}

// NewProfile returns a south-facing default profile for capacityMW.
func NewProfile(capacityMW, latitude float64) PVProfile {
	if latitude == 0 {
		latitude = DefaultLatitude
	}
	p := PVProfile{
		PeakHour:   12,
		CapacityMW: capacityMW,
		Latitude:   latitude,
		Scale:      1,
	}
	// Simple bell curve centered at noon
	for h := 0; h < 24; h++ {
		dist := float64(h) - 12.0
		p.HourlyFactor[h] = math.Exp(-dist * dist / 18.0)
		if p.HourlyFactor[h] < 0.01 {
			p.HourlyFactor[h] = 0
		}
	}
	return p
}

// Calibrate fits Scale to the records that carry an observed solar output:
// the median ratio of observed to estimated energy. Without observations the
// profile is returned unchanged.
func (p PVProfile) Calibrate(records []model.DailyRecord) PVProfile {
	if p.CapacityMW <= 0 {
		return p
	}
	var ratios []float64
	for _, r := range records {
		if model.IsMissing(r.SolarOutput) || r.SolarOutput < 0 {
			continue
		}
		est := p.clearSky(r.Date) * clearness(r.HighTemp, r.LowTemp)
		if est <= 0 {
			continue
		}
		ratios = append(ratios, r.SolarOutput/(est*p.CapacityMW))
	}
	if len(ratios) == 0 {
		return p
	}
	sort.Float64s(ratios)
	p.Scale = stat.Quantile(0.5, stat.Empirical, ratios, nil)
	return p
}

// PowerAt returns the clear-sky power in MW for a fractional hour of date.
func (p *PVProfile) PowerAt(date time.Time, hour float64) float64 {
	factor := interpolateProfile(p.HourlyFactor, hour)
	if factor < 0 {
		return 0
	}
	return factor * seasonalFactor(date, p.Latitude) * p.Scale * p.CapacityMW
}

// DailyOutput integrates clear-sky power over date in quarter-hour steps (MWh).
func (p *PVProfile) DailyOutput(date time.Time) float64 {
	const step = 0.25
	var sum float64
	for h := 0.0; h < 24; h += step {
		sum += p.PowerAt(date, h) * step
	}
	return sum
}

// Estimate returns the record's solar output, estimating it from the date
// and the day's temperature range when the sheet has no value.
func (p *PVProfile) Estimate(r model.DailyRecord) float64 {
	if !model.IsMissing(r.SolarOutput) {
		return r.SolarOutput
	}
	if p.CapacityMW <= 0 {
		return 0
	}
	return p.DailyOutput(r.Date) * clearness(r.HighTemp, r.LowTemp)
}

func (p *PVProfile) clearSky(date time.Time) float64 {
	q := *p
	q.Scale = 1
	q.CapacityMW = 1
	return q.DailyOutput(date)
}

// seasonalFactor is the sine of the noon sun elevation relative to its
// value at the summer solstice.
func seasonalFactor(date time.Time, latitude float64) float64 {
	doy := float64(date.YearDay())
	decl := 23.44 * math.Sin(2*math.Pi*(284+doy)/365)
	elev := 90 - latitude + decl
	ref := 90 - latitude + 23.44
	if elev <= 0 {
		return 0
	}
	return math.Sin(elev*math.Pi/180) / math.Sin(math.Min(ref, 90)*math.Pi/180)
}

// clearness maps the diurnal temperature range to a sky clearness factor in
// [0.3, 1]. Clear days have a wide range, overcast days a narrow one.
func clearness(high, low float64) float64 {
	if model.IsMissing(high) || model.IsMissing(low) {
		return 0.7
	}
	c := (high - low) / 12
	return math.Max(0.3, math.Min(1, c))
}

// interpolateProfile returns linearly interpolated factor for a fractional hour.
func interpolateProfile(factors [24]float64, hour float64) float64 {
	for hour < 0 {
		hour += 24
	}
	for hour >= 24 {
		hour -= 24
	}

	lo := int(math.Floor(hour)) % 24
	hi := (lo + 1) % 24
	frac := hour - math.Floor(hour)

	return factors[lo]*(1-frac) + factors[hi]*frac
}
