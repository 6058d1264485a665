package sheetsync

import (
	"sort"

	"demand_forecast/internal/sheets"
)

// gridCell is a zero-based (row, col) coordinate in the sheet grid.
type gridCell struct {
	Row, Col int
}

type span struct {
	row, c0, c1 int
	values      []string
}

// rectangles groups changed cells into the fewest rectangles it can find
// without writing any unchanged cell: each row is cut into maximal runs of
// adjacent columns, then runs covering the same columns on consecutive rows
// are stacked.
func rectangles(cells map[gridCell]string) []sheets.RangeUpdate {
	if len(cells) == 0 {
		return nil
	}

	coords := make([]gridCell, 0, len(cells))
	for c := range cells {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Row != coords[j].Row {
			return coords[i].Row < coords[j].Row
		}
		return coords[i].Col < coords[j].Col
	})

	var spans []span
	for _, c := range coords {
		if n := len(spans); n > 0 {
			last := &spans[n-1]
			if last.row == c.Row && last.c1+1 == c.Col {
				last.c1 = c.Col
				last.values = append(last.values, cells[c])
				continue
			}
		}
		spans = append(spans, span{row: c.Row, c0: c.Col, c1: c.Col, values: []string{cells[c]}})
	}

	type open struct {
		update  sheets.RangeUpdate
		lastRow int
	}
	var rects []*open
	byCols := make(map[[2]int]*open)
	for _, s := range spans {
		key := [2]int{s.c0, s.c1}
		if r, ok := byCols[key]; ok && r.lastRow == s.row-1 {
			r.update.Values = append(r.update.Values, s.values)
			r.lastRow = s.row
			continue
		}
		r := &open{
			update:  sheets.RangeUpdate{Row: s.row, Col: s.c0, Values: [][]string{s.values}},
			lastRow: s.row,
		}
		byCols[key] = r
		rects = append(rects, r)
	}

	out := make([]sheets.RangeUpdate, len(rects))
	for i, r := range rects {
		out[i] = r.update
	}
	return out
}
