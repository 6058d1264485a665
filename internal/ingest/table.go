package ingest

import (
	"fmt"
	"log"
	"strings"

	"demand_forecast/internal/model"
)

// Layout maps columns to their index in the sheet. Headers holds the raw
// header row; columns the sheet lacks can be appended with Ensure.
type Layout struct {
	Headers []string
	index   map[model.Column]int
}

// NewLayout resolves a raw header row. Unknown headers are kept but unmapped.
func NewLayout(headers []string) *Layout {
	l := &Layout{
		Headers: append([]string(nil), headers...),
		index:   make(map[model.Column]int),
	}
	for i, h := range headers {
		if col, ok := model.LookupColumn(h); ok {
			if _, seen := l.index[col]; !seen {
				l.index[col] = i
			}
		}
	}
	return l
}

// DefaultLayout returns a layout with every known column in canonical order.
func DefaultLayout() *Layout {
	headers := make([]string, len(model.Columns))
	for i, c := range model.Columns {
		headers[i] = string(c)
	}
	return NewLayout(headers)
}

// Index returns the zero-based sheet column of col.
func (l *Layout) Index(col model.Column) (int, bool) {
	i, ok := l.index[col]
	return i, ok
}

// Ensure returns the index of col, appending a header when the sheet lacks it.
func (l *Layout) Ensure(col model.Column) (int, bool) {
	if i, ok := l.index[col]; ok {
		return i, false
	}
	l.Headers = append(l.Headers, string(col))
	i := len(l.Headers) - 1
	l.index[col] = i
	return i, true
}

// Clone returns an independent copy of the layout.
func (l *Layout) Clone() *Layout {
	c := &Layout{
		Headers: append([]string(nil), l.Headers...),
		index:   make(map[model.Column]int, len(l.index)),
	}
	for k, v := range l.index {
		c.index[k] = v
	}
	return c
}

// Missing returns the required columns absent from the layout.
func (l *Layout) Missing() []model.Column {
	var missing []model.Column
	for _, c := range model.Columns {
		if !model.ColumnCatalog[c].Required {
			continue
		}
		if _, ok := l.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// Sheet is a decoded daily table.
type Sheet struct {
	Layout   *Layout
	Rows     []model.SheetRow
	Warnings []string
}

// Records returns the decoded records in sheet order.
func (s *Sheet) Records() []model.DailyRecord {
	out := make([]model.DailyRecord, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Record
	}
	return out
}

// Decode converts raw sheet values (header row first) into records.
// Blank rows are skipped silently; rows with an unparseable date are
// skipped with a warning; unparseable numbers become missing values.
func Decode(values [][]string) (*Sheet, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	layout := NewLayout(values[0])
	if missing := layout.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = string(c)
		}
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(names, ", "))
	}

	sheet := &Sheet{Layout: layout}
	for i, row := range values[1:] {
		line := i + 2 // sheet rows are 1-based and the header is row 1
		if isBlank(row) {
			continue
		}
		rec, warnings, err := decodeRow(layout, row, line)
		if err != nil {
			sheet.Warnings = append(sheet.Warnings, err.Error())
			log.Printf("ingest: skipping %v", err)
			continue
		}
		sheet.Warnings = append(sheet.Warnings, warnings...)
		sheet.Rows = append(sheet.Rows, model.SheetRow{Position: i, Record: rec})
	}
	return sheet, nil
}

func decodeRow(layout *Layout, row []string, line int) (model.DailyRecord, []string, error) {
	cell := func(col model.Column) string {
		i, ok := layout.Index(col)
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	raw := cell(model.ColDate)
	date, err := model.ParseDate(raw)
	if err != nil {
		return model.DailyRecord{}, nil, fmt.Errorf("line %d: parsing date %q: %w", line, raw, err)
	}

	rec := model.NewDailyRecord(date)
	var warnings []string
	for _, col := range model.Columns {
		switch model.ColumnCatalog[col].Kind {
		case model.KindNumber:
			v, err := model.ParseNumber(cell(col))
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("line %d: %s value %q is not a number", line, col, cell(col)))
				v = model.Missing
			}
			rec.SetNumber(col, v)
		case model.KindText:
			rec.SetText(col, cell(col))
		}
	}
	return rec, warnings, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Encode renders records under layout, header row first. Columns the
// layout does not map stay blank.
func Encode(layout *Layout, records []model.DailyRecord) [][]string {
	width := len(layout.Headers)
	out := make([][]string, 0, len(records)+1)
	out = append(out, append([]string(nil), layout.Headers...))
	for _, r := range records {
		row := make([]string, width)
		for _, col := range model.Columns {
			if i, ok := layout.Index(col); ok {
				row[i] = r.CellValue(col)
			}
		}
		out = append(out, row)
	}
	return out
}
