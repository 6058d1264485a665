package model

import (
	"math"
	"time"
)

// DateLayout is the on-sheet date format (ISO calendar day).
const DateLayout = "2006-01-02"

// Missing marks a numeric cell with no value.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// DailyRecord is one row of the daily observation table.
type DailyRecord struct {
	Date         time.Time
	HighTemp     float64
	AvgTemp      float64
	LowTemp      float64
	FeelsLike    float64
	PeakDemand   float64 // MW
	MinDemand    float64 // MW
	GasDemand    float64
	SolarOutput  float64 // MWh, derived when absent
	ResidualLoad float64 // MW, derived when absent
	DayOfWeek    string
	Weekday      string
}

// NewDailyRecord returns a record for date with every numeric field missing.
func NewDailyRecord(date time.Time) DailyRecord {
	return DailyRecord{
		Date:         date,
		HighTemp:     Missing,
		AvgTemp:      Missing,
		LowTemp:      Missing,
		FeelsLike:    Missing,
		PeakDemand:   Missing,
		MinDemand:    Missing,
		GasDemand:    Missing,
		SolarOutput:  Missing,
		ResidualLoad: Missing,
	}
}

// Key returns the unique row key of the record.
func (r DailyRecord) Key() string {
	return r.Date.Format(DateLayout)
}

// ParseDate parses an ISO day. Timestamps with a time part are truncated to the day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006/01/02", "2006.01.02"} {
		if ts, err2 := time.Parse(layout, s); err2 == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, err
}

// Number returns the numeric value stored under column.
func (r DailyRecord) Number(col Column) (float64, bool) {
	switch col {
	case ColHighTemp:
		return r.HighTemp, true
	case ColAvgTemp:
		return r.AvgTemp, true
	case ColLowTemp:
		return r.LowTemp, true
	case ColFeelsLike:
		return r.FeelsLike, true
	case ColPeakDemand:
		return r.PeakDemand, true
	case ColMinDemand:
		return r.MinDemand, true
	case ColGasDemand:
		return r.GasDemand, true
	case ColSolarOutput:
		return r.SolarOutput, true
	case ColResidualLoad:
		return r.ResidualLoad, true
	}
	return 0, false
}

// SetNumber stores v under a numeric column. It returns false for non-numeric columns.
func (r *DailyRecord) SetNumber(col Column, v float64) bool {
	switch col {
	case ColHighTemp:
		r.HighTemp = v
	case ColAvgTemp:
		r.AvgTemp = v
	case ColLowTemp:
		r.LowTemp = v
	case ColFeelsLike:
		r.FeelsLike = v
	case ColPeakDemand:
		r.PeakDemand = v
	case ColMinDemand:
		r.MinDemand = v
	case ColGasDemand:
		r.GasDemand = v
	case ColSolarOutput:
		r.SolarOutput = v
	case ColResidualLoad:
		r.ResidualLoad = v
	default:
		return false
	}
	return true
}

// Text returns the text value stored under column.
func (r DailyRecord) Text(col Column) (string, bool) {
	switch col {
	case ColDayOfWeek:
		return r.DayOfWeek, true
	case ColWeekday:
		return r.Weekday, true
	}
	return "", false
}

// SetText stores s under a text column. It returns false for non-text columns.
func (r *DailyRecord) SetText(col Column, s string) bool {
	switch col {
	case ColDayOfWeek:
		r.DayOfWeek = s
	case ColWeekday:
		r.Weekday = s
	default:
		return false
	}
	return true
}

// TimeRange is an inclusive span of calendar days.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// SheetRow pairs a record with its zero-based data row in the remote sheet.
type SheetRow struct {
	Position int
	Record   DailyRecord
}
