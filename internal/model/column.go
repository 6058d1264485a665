package model

import (
	"strings"
	"time"
)

// Column is the data-contract key of a table column.
type Column string

const (
	ColDate         Column = "date"
	ColHighTemp     Column = "high_temp"
	ColAvgTemp      Column = "avg_temp"
	ColLowTemp      Column = "low_temp"
	ColFeelsLike    Column = "feels_like"
	ColPeakDemand   Column = "peak_demand"
	ColMinDemand    Column = "min_demand"
	ColGasDemand    Column = "gas_demand"
	ColSolarOutput  Column = "solar_output"
	ColResidualLoad Column = "residual_load"
	ColDayOfWeek    Column = "day_of_week"
	ColWeekday      Column = "weekday"
)

// Kind is the declared value type of a column.
type Kind int

const (
	KindNumber Kind = iota
	KindText
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	}
	return "unknown"
}

// ColumnInfo holds the declared type and display metadata of a column.
type ColumnInfo struct {
	Name     string
	Unit     string
	Kind     Kind
	Required bool
	Editable bool
}

// Columns lists every known column in canonical sheet order.
var Columns = []Column{
	ColDate,
	ColHighTemp,
	ColAvgTemp,
	ColLowTemp,
	ColFeelsLike,
	ColPeakDemand,
	ColMinDemand,
	ColGasDemand,
	ColSolarOutput,
	ColResidualLoad,
	ColDayOfWeek,
	ColWeekday,
}

// ColumnCatalog maps every column to its schema entry.
var ColumnCatalog = map[Column]ColumnInfo{
	ColDate:         {Name: "Date", Kind: KindDate, Required: true},
	ColHighTemp:     {Name: "High Temperature", Unit: "°C", Kind: KindNumber, Required: true, Editable: true},
	ColAvgTemp:      {Name: "Average Temperature", Unit: "°C", Kind: KindNumber, Required: true, Editable: true},
	ColLowTemp:      {Name: "Low Temperature", Unit: "°C", Kind: KindNumber, Required: true, Editable: true},
	ColFeelsLike:    {Name: "Feels-like Temperature", Unit: "°C", Kind: KindNumber, Editable: true},
	ColPeakDemand:   {Name: "Peak Demand", Unit: "MW", Kind: KindNumber, Required: true, Editable: true},
	ColMinDemand:    {Name: "Minimum Demand", Unit: "MW", Kind: KindNumber, Required: true, Editable: true},
	ColGasDemand:    {Name: "Gas Demand", Kind: KindNumber, Editable: true},
	ColSolarOutput:  {Name: "Solar Output", Unit: "MWh", Kind: KindNumber, Editable: true},
	ColResidualLoad: {Name: "Residual Load", Unit: "MW", Kind: KindNumber, Editable: true},
	ColDayOfWeek:    {Name: "Day of Week", Kind: KindText, Editable: true},
	ColWeekday:      {Name: "Weekday", Kind: KindText, Editable: true},
}

// ColumnAliases maps accepted sheet headers to column keys. The Korean
// headers are the ones used by the operators' spreadsheet.
var ColumnAliases = map[string]Column{
	"날짜":              ColDate,
	"최고기온":            ColHighTemp,
	"평균기온":            ColAvgTemp,
	"최저기온":            ColLowTemp,
	"체감온도":            ColFeelsLike,
	"최대수요":            ColPeakDemand,
	"최저수요":            ColMinDemand,
	"가스수요":            ColGasDemand,
	"태양광":             ColSolarOutput,
	"순부하":             ColResidualLoad,
	"요일":              ColDayOfWeek,
	"평일":              ColWeekday,
	"max_temp":        ColHighTemp,
	"min_temp":        ColLowTemp,
	"mean_temp":       ColAvgTemp,
	"apparent_temp":   ColFeelsLike,
	"max_demand":      ColPeakDemand,
	"gas":             ColGasDemand,
	"solar":           ColSolarOutput,
	"net_load":        ColResidualLoad,
	"dow":             ColDayOfWeek,
	"is_weekday":      ColWeekday,
	"weekday_flag":    ColWeekday,
	"weekday/weekend": ColWeekday,
}

var columnSet map[Column]bool

func init() {
	columnSet = make(map[Column]bool, len(Columns))
	for _, c := range Columns {
		columnSet[c] = true
	}
}

// LookupColumn resolves a header or key to a column.
func LookupColumn(header string) (Column, bool) {
	h := strings.TrimSpace(header)
	if columnSet[Column(h)] {
		return Column(h), true
	}
	lower := strings.ToLower(strings.ReplaceAll(h, " ", "_"))
	if columnSet[Column(lower)] {
		return Column(lower), true
	}
	if c, ok := ColumnAliases[h]; ok {
		return c, true
	}
	if c, ok := ColumnAliases[lower]; ok {
		return c, true
	}
	return "", false
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday, "월요일": time.Monday, "월": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "화요일": time.Tuesday, "화": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "수요일": time.Wednesday, "수": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "목요일": time.Thursday, "목": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "금요일": time.Friday, "금": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "토요일": time.Saturday, "토": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday, "일요일": time.Sunday, "일": time.Sunday,
}

// ParseWeekdayName parses an English or Korean day-of-week label.
func ParseWeekdayName(s string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// ParseWeekdayFlag parses the weekday/weekend column. True means a working day.
func ParseWeekdayFlag(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekday", "평일", "1", "true", "yes", "y":
		return true, true
	case "weekend", "holiday", "주말", "휴일", "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

// IsWorkingDay reports whether d falls Monday through Friday.
func IsWorkingDay(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}

// WeekdayFlag returns the canonical flag label for a working or non-working day.
func WeekdayFlag(working bool) string {
	if working {
		return "weekday"
	}
	return "weekend"
}
