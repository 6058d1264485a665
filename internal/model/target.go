package model

import "fmt"

// Target selects which demand figure a model forecasts.
type Target string

const (
	TargetPeak Target = "peak"
	TargetMin  Target = "min"
	TargetGas  Target = "gas"
)

// Targets lists every supported target.
var Targets = []Target{TargetPeak, TargetMin, TargetGas}

// Column returns the record column holding the target value.
func (t Target) Column() Column {
	switch t {
	case TargetPeak:
		return ColPeakDemand
	case TargetMin:
		return ColMinDemand
	case TargetGas:
		return ColGasDemand
	}
	return ""
}

// Value extracts the target value from a record.
func (t Target) Value(r DailyRecord) float64 {
	v, ok := r.Number(t.Column())
	if !ok {
		return Missing
	}
	return v
}

// ParseTarget parses a target selector.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetPeak, TargetMin, TargetGas:
		return Target(s), nil
	case "max":
		return TargetPeak, nil
	}
	return "", fmt.Errorf("unknown target %q (want peak, min or gas)", s)
}
