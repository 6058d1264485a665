package sheets

import (
	"context"
	"fmt"
	"strings"
)

// Table is the remote tabular store: a worksheet of string cells whose
// first row holds the headers.
type Table interface {
	FetchAll(ctx context.Context) ([][]string, error)
	UpdateCells(ctx context.Context, updates []RangeUpdate) error
}

// RangeUpdate writes a rectangle of values whose top-left cell is at
// zero-based grid coordinates (Row, Col). Row 0 is the header row.
type RangeUpdate struct {
	Row    int
	Col    int
	Values [][]string
}

// Rows returns the height of the rectangle.
func (u RangeUpdate) Rows() int { return len(u.Values) }

// Cols returns the width of the rectangle.
func (u RangeUpdate) Cols() int {
	if len(u.Values) == 0 {
		return 0
	}
	return len(u.Values[0])
}

// Cells returns the number of cells written.
func (u RangeUpdate) Cells() int { return u.Rows() * u.Cols() }

// A1 renders the rectangle in A1 notation, prefixed with the worksheet name
// when one is given.
func (u RangeUpdate) A1(worksheet string) string {
	start := CellName(u.Row, u.Col)
	rng := start
	if u.Rows() > 1 || u.Cols() > 1 {
		rng = start + ":" + CellName(u.Row+u.Rows()-1, u.Col+u.Cols()-1)
	}
	if worksheet == "" {
		return rng
	}
	return QuoteSheetName(worksheet) + "!" + rng
}

// ColumnLetter converts a zero-based column index to its A1 letters
// (0 -> A, 25 -> Z, 26 -> AA).
func ColumnLetter(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// CellName converts zero-based grid coordinates to an A1 cell name.
func CellName(row, col int) string {
	return fmt.Sprintf("%s%d", ColumnLetter(col), row+1)
}

// QuoteSheetName quotes a worksheet name for use in a range when it holds
// anything but ASCII letters, digits and underscores.
func QuoteSheetName(name string) string {
	plain := name != ""
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
