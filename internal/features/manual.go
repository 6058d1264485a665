package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"demand_forecast/internal/model"
)

// ManualDay holds freely typed inputs for a day that is not in the table.
// Numeric fields left as model.Missing are derived where possible.
type ManualDay struct {
	Weekday        time.Weekday
	Working        *bool // nil: Monday-Friday
	Month          int
	HighTemp       float64
	AvgTemp        float64
	LowTemp        float64
	FeelsLike      float64
	PrevDemand     float64
	PrevSolarShare float64
}

// NewManualDay returns a ManualDay with every numeric input missing.
func NewManualDay(weekday time.Weekday, month int) ManualDay {
	return ManualDay{
		Weekday:        weekday,
		Month:          month,
		HighTemp:       model.Missing,
		AvgTemp:        model.Missing,
		LowTemp:        model.Missing,
		FeelsLike:      model.Missing,
		PrevDemand:     model.Missing,
		PrevSolarShare: model.Missing,
	}
}

// ParseManualDay reads key=value inputs. Keys: day_of_week (name), weekday
// (weekday/weekend flag), month, high_temp, avg_temp, low_temp, feels_like,
// prev_demand, prev_solar_share. Numbers must be finite.
func ParseManualDay(values map[string]string) (ManualDay, error) {
	m := NewManualDay(time.Monday, 0)

	name, ok := values["day_of_week"]
	if !ok {
		name = values["day"]
	}
	if name == "" {
		return ManualDay{}, &model.ValidationError{Column: "day_of_week", Reason: "day of week is required"}
	}
	wd, ok := model.ParseWeekdayName(name)
	if !ok {
		return ManualDay{}, &model.ValidationError{Column: "day_of_week", Value: name, Reason: "expected a day-of-week name"}
	}
	m.Weekday = wd

	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		switch key {
		case "day_of_week", "day":
		case "weekday", "is_weekday":
			w, ok := model.ParseWeekdayFlag(raw)
			if !ok {
				return ManualDay{}, &model.ValidationError{Column: key, Value: raw, Reason: "expected weekday or weekend"}
			}
			m.Working = &w
		case "month":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 12 {
				return ManualDay{}, &model.ValidationError{Column: key, Value: raw, Reason: "expected a month 1-12"}
			}
			m.Month = n
		default:
			dst := m.numberField(key)
			if dst == nil {
				return ManualDay{}, &model.UnknownKeyError{Column: key}
			}
			v, err := model.ParseNumber(raw)
			if err != nil {
				return ManualDay{}, &model.ValidationError{Column: key, Value: raw, Reason: "expected a finite number"}
			}
			*dst = v
		}
	}
	if m.Month == 0 {
		return ManualDay{}, &model.ValidationError{Column: "month", Reason: "month is required"}
	}
	return m, nil
}

func (m *ManualDay) numberField(key string) *float64 {
	switch key {
	case HighTemp:
		return &m.HighTemp
	case AvgTemp:
		return &m.AvgTemp
	case LowTemp:
		return &m.LowTemp
	case FeelsLike:
		return &m.FeelsLike
	case "prev_demand":
		return &m.PrevDemand
	case PrevSolarShare:
		return &m.PrevSolarShare
	}
	return nil
}

// Values resolves the manual inputs into the named features of target.
// A missing average is taken as the midpoint of high and low; a missing
// high as average plus five degrees. Features that still cannot be
// resolved are left out, for the predictor to report.
func (m ManualDay) Values(target model.Target) map[string]float64 {
	high, avg, low := m.HighTemp, m.AvgTemp, m.LowTemp
	if model.IsMissing(avg) && !model.IsMissing(high) && !model.IsMissing(low) {
		avg = (high + low) / 2
	}
	if model.IsMissing(high) && !model.IsMissing(avg) {
		high = avg + 5
	}
	feels := m.FeelsLike
	if model.IsMissing(feels) {
		feels = avg
	}
	working := model.IsWorkingDay(m.Weekday)
	if m.Working != nil {
		working = *m.Working
	}

	known := map[string]float64{
		HighTemp:       high,
		AvgTemp:        avg,
		LowTemp:        low,
		FeelsLike:      feels,
		HeatingDegree:  heatingDegree(avg),
		Month:          float64(m.Month),
		PrevSolarShare: m.PrevSolarShare,
		IsWeekday:      boolFloat(working),
	}
	known[lagFeature(target)] = m.PrevDemand
	for _, dd := range dayDummies {
		known[dd.name] = boolFloat(m.Weekday == dd.day)
	}

	out := make(map[string]float64)
	for _, n := range FeatureSet(target) {
		if v, ok := known[n]; ok && !model.IsMissing(v) {
			out[n] = v
		}
	}
	return out
}

// Resolve orders values by the feature names, reporting names that are
// absent and values that are not finite.
func Resolve(target model.Target, names []string, values map[string]float64) (FeatureVector, error) {
	vec := FeatureVector{Names: names, Values: make([]float64, len(names))}
	var missing []string
	for i, n := range names {
		v, ok := values[n]
		if !ok || model.IsMissing(v) {
			missing = append(missing, n)
			continue
		}
		if math.IsInf(v, 0) {
			return FeatureVector{}, &model.ValidationError{Column: n, Value: fmt.Sprint(v), Reason: "expected a finite number"}
		}
		vec.Values[i] = v
	}
	if len(missing) > 0 {
		return FeatureVector{}, &model.MissingFeatureError{Target: target, Features: missing}
	}
	return vec, nil
}
