package features

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"demand_forecast/internal/model"
	"demand_forecast/internal/solar"
)

// Row is one engineered training example.
type Row struct {
	Date     time.Time
	Features []float64
	Target   float64
}

// Skip records a day excluded from a dataset and why.
type Skip struct {
	Date   time.Time
	Reason string
}

// Dataset is the engineered table for one target, ordered by date.
type Dataset struct {
	Target   model.Target
	Features []string
	Rows     []Row
	Skipped  []Skip
}

// Targets returns the target column of the dataset.
func (d *Dataset) Targets() []float64 {
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Target
	}
	return out
}

// FeatureVector is a fixed-order mapping from feature name to value.
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Map returns the vector keyed by feature name.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Names))
	for i, n := range v.Names {
		m[n] = v.Values[i]
	}
	return m
}

// Engineer turns daily records into feature vectors. Derived solar figures
// come from Solar when the sheet does not carry them.
type Engineer struct {
	Solar solar.PVProfile
}

func NewEngineer(profile solar.PVProfile) *Engineer {
	return &Engineer{Solar: profile}
}

// Build engineers one row per record that has a recorded predecessor day.
// Predecessors are found by date arithmetic, so calendar gaps are skipped
// rather than misaligned.
func (e *Engineer) Build(records []model.DailyRecord, target model.Target) (*Dataset, error) {
	names := FeatureSet(target)
	if names == nil {
		return nil, fmt.Errorf("unknown target %q", target)
	}

	sorted := make([]model.DailyRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	byKey := indexByKey(sorted)

	ds := &Dataset{Target: target, Features: names}
	for _, rec := range sorted {
		prev, ok := byKey[predecessorKey(rec.Date)]
		if !ok {
			ds.Skipped = append(ds.Skipped, Skip{Date: rec.Date, Reason: "no record for the previous day"})
			continue
		}
		y := target.Value(rec)
		if model.IsMissing(y) {
			ds.Skipped = append(ds.Skipped, Skip{Date: rec.Date, Reason: fmt.Sprintf("missing %s", target.Column())})
			continue
		}
		vec, missing := e.vector(names, rec, prev)
		if len(missing) > 0 {
			ds.Skipped = append(ds.Skipped, Skip{Date: rec.Date, Reason: fmt.Sprintf("missing %v", missing)})
			continue
		}
		ds.Rows = append(ds.Rows, Row{Date: rec.Date, Features: vec, Target: y})
	}

	if len(ds.Skipped) > 1 {
		log.Printf("features: %s: %d rows, %d days skipped", target, len(ds.Rows), len(ds.Skipped))
	}
	if len(ds.Rows) == 0 {
		return nil, &model.InsufficientHistoryError{Target: target, Records: len(records)}
	}
	return ds, nil
}

// Vector synthesizes the feature vector for date from its record and the
// previous day's record. The day's own target value is not needed.
func (e *Engineer) Vector(records []model.DailyRecord, date time.Time, target model.Target) (FeatureVector, error) {
	names := FeatureSet(target)
	if names == nil {
		return FeatureVector{}, fmt.Errorf("unknown target %q", target)
	}
	byKey := indexByKey(records)

	rec, ok := byKey[date.Format(model.DateLayout)]
	if !ok {
		return FeatureVector{}, &model.UnknownDateError{Date: date, Reason: "no record for this date"}
	}
	prev, ok := byKey[predecessorKey(date)]
	if !ok {
		return FeatureVector{}, &model.UnknownDateError{Date: date, Reason: "no record for the previous day"}
	}

	vec, missing := e.vector(names, rec, prev)
	if len(missing) > 0 {
		return FeatureVector{}, &model.MissingFeatureError{Target: target, Features: missing}
	}
	return FeatureVector{Names: names, Values: vec}, nil
}

func (e *Engineer) vector(names []string, rec, prev model.DailyRecord) ([]float64, []string) {
	d := day{rec: rec, prev: prev, solar: &e.Solar}
	vec := make([]float64, len(names))
	var missing []string
	for i, n := range names {
		v := d.feature(n)
		if model.IsMissing(v) || math.IsInf(v, 0) {
			missing = append(missing, n)
			continue
		}
		vec[i] = v
	}
	return vec, missing
}

// day resolves feature values for one record and its predecessor.
type day struct {
	rec   model.DailyRecord
	prev  model.DailyRecord
	solar *solar.PVProfile
}

func (d day) feature(name string) float64 {
	r := d.rec
	switch name {
	case HighTemp:
		return r.HighTemp
	case AvgTemp:
		return r.AvgTemp
	case LowTemp:
		return r.LowTemp
	case FeelsLike:
		return feelsLike(r)
	case HeatingDegree:
		return heatingDegree(r.AvgTemp)
	case Month:
		return float64(r.Date.Month())
	case PrevPeak:
		return d.prev.PeakDemand
	case PrevMin:
		return d.prev.MinDemand
	case PrevGas:
		return d.prev.GasDemand
	case PrevSolarShare:
		return SolarShare(d.prev, d.solar)
	case IsWeekday:
		return boolFloat(isWorkingDay(r))
	}
	for _, dd := range dayDummies {
		if dd.name == name {
			return boolFloat(r.Date.Weekday() == dd.day)
		}
	}
	return model.Missing
}

// SolarShare is the day's solar output as a fraction of its peak demand.
func SolarShare(r model.DailyRecord, profile *solar.PVProfile) float64 {
	if model.IsMissing(r.PeakDemand) || r.PeakDemand <= 0 {
		return model.Missing
	}
	return profile.Estimate(r) / r.PeakDemand
}

// ResidualLoad is peak demand net of the day's solar output, taken from the
// sheet when present.
func ResidualLoad(r model.DailyRecord, profile *solar.PVProfile) float64 {
	if !model.IsMissing(r.ResidualLoad) {
		return r.ResidualLoad
	}
	if model.IsMissing(r.PeakDemand) {
		return model.Missing
	}
	return r.PeakDemand - profile.Estimate(r)
}

// Derive fills the derived solar and residual-load columns of records that
// lack them. Values present in the sheet are kept.
func Derive(records []model.DailyRecord, profile *solar.PVProfile) []model.DailyRecord {
	out := make([]model.DailyRecord, len(records))
	for i, r := range records {
		if model.IsMissing(r.SolarOutput) {
			r.SolarOutput = profile.Estimate(r)
		}
		r.ResidualLoad = ResidualLoad(r, profile)
		out[i] = r
	}
	return out
}

func feelsLike(r model.DailyRecord) float64 {
	if model.IsMissing(r.FeelsLike) {
		return r.AvgTemp
	}
	return r.FeelsLike
}

func heatingDegree(avg float64) float64 {
	if model.IsMissing(avg) {
		return model.Missing
	}
	return math.Max(0, HeatingBase-avg)
}

// isWorkingDay reads the weekday flag, falling back to Monday-Friday when
// the sheet has no usable flag.
func isWorkingDay(r model.DailyRecord) bool {
	if working, ok := model.ParseWeekdayFlag(r.Weekday); ok {
		return working
	}
	return model.IsWorkingDay(r.Date.Weekday())
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func indexByKey(records []model.DailyRecord) map[string]model.DailyRecord {
	m := make(map[string]model.DailyRecord, len(records))
	for _, r := range records {
		m[r.Key()] = r
	}
	return m
}

func predecessorKey(d time.Time) string {
	return d.AddDate(0, 0, -1).Format(model.DateLayout)
}
