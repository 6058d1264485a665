package model

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var errNotFinite = errors.New("value is not finite")

// ParseNumber parses a numeric cell. An empty cell yields Missing.
// Thousands separators are accepted ("50,000").
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errNotFinite
	}
	return v, nil
}

// FormatNumber renders a numeric value the way it is written to the sheet.
func FormatNumber(v float64) string {
	if IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CellValue renders the value stored under column as sheet text.
func (r DailyRecord) CellValue(col Column) string {
	if col == ColDate {
		return r.Key()
	}
	if v, ok := r.Number(col); ok {
		return FormatNumber(v)
	}
	s, _ := r.Text(col)
	return s
}
