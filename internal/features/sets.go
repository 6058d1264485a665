package features

import (
	"time"

	"demand_forecast/internal/model"
)

// Feature names shared across targets.
const (
	HighTemp       = "high_temp"
	AvgTemp        = "avg_temp"
	LowTemp        = "low_temp"
	FeelsLike      = "feels_like"
	HeatingDegree  = "heating_degree"
	Month          = "month"
	PrevPeak       = "prev_peak_demand"
	PrevMin        = "prev_min_demand"
	PrevGas        = "prev_gas_demand"
	PrevSolarShare = "prev_solar_share"
	IsWeekday      = "is_weekday"
)

// HeatingBase is the balance temperature (°C) below which heating demand grows.
const HeatingBase = 18.0

// dayDummies encodes day of week with Monday as the reference level.
var dayDummies = []struct {
	name string
	day  time.Weekday
}{
	{"dow_tue", time.Tuesday},
	{"dow_wed", time.Wednesday},
	{"dow_thu", time.Thursday},
	{"dow_fri", time.Friday},
	{"dow_sat", time.Saturday},
	{"dow_sun", time.Sunday},
}

func calendar() []string {
	names := make([]string, 0, len(dayDummies)+1)
	for _, d := range dayDummies {
		names = append(names, d.name)
	}
	return append(names, IsWeekday)
}

// FeatureSet returns the fixed, ordered feature names used for target.
func FeatureSet(target model.Target) []string {
	var base []string
	switch target {
	case model.TargetPeak:
		base = []string{HighTemp, AvgTemp, FeelsLike, Month, PrevPeak, PrevSolarShare}
	case model.TargetMin:
		base = []string{LowTemp, AvgTemp, Month, PrevMin, PrevSolarShare}
	case model.TargetGas:
		base = []string{AvgTemp, LowTemp, FeelsLike, HeatingDegree, Month, PrevGas}
	default:
		return nil
	}
	return append(base, calendar()...)
}

// lagFeature returns the name of the lag-1 feature of target.
func lagFeature(target model.Target) string {
	switch target {
	case model.TargetPeak:
		return PrevPeak
	case model.TargetMin:
		return PrevMin
	case model.TargetGas:
		return PrevGas
	}
	return ""
}
