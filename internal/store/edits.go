package store

import (
	"sort"

	"demand_forecast/internal/model"
)

// Cell addresses one value of the table by row key (ISO date) and column.
type Cell struct {
	Key    string
	Column model.Column
}

// EditSet maps cells changed locally since the last successful sync to their
// new canonical sheet value.
type EditSet map[Cell]string

// Len returns the number of pending cells.
func (e EditSet) Len() int {
	return len(e)
}

// Clone returns an independent copy.
func (e EditSet) Clone() EditSet {
	out := make(EditSet, len(e))
	for c, v := range e {
		out[c] = v
	}
	return out
}

// Cells returns the pending cells ordered by key, then by canonical column order.
func (e EditSet) Cells() []Cell {
	cells := make([]Cell, 0, len(e))
	for c := range e {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Key != cells[j].Key {
			return cells[i].Key < cells[j].Key
		}
		return columnOrder(cells[i].Column) < columnOrder(cells[j].Column)
	})
	return cells
}

// Keys returns the distinct row keys with pending cells, sorted.
func (e EditSet) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for c := range e {
		if !seen[c.Key] {
			seen[c.Key] = true
			keys = append(keys, c.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func columnOrder(c model.Column) int {
	for i, col := range model.Columns {
		if col == c {
			return i
		}
	}
	return len(model.Columns)
}
