package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileTable is a Table backed by a local CSV file.
type FileTable struct {
	Path string

	mu sync.Mutex
}

func NewFileTable(path string) *FileTable {
	return &FileTable{Path: path}
}

func (t *FileTable) FetchAll(ctx context.Context) ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read()
}

// UpdateCells writes the rectangles into the grid, growing it as needed, and
// rewrites the file.
func (t *FileTable) UpdateCells(ctx context.Context, updates []RangeUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	grid, err := t.read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, u := range updates {
		grid = apply(grid, u)
	}
	return t.write(grid)
}

func apply(grid [][]string, u RangeUpdate) [][]string {
	for i, row := range u.Values {
		r := u.Row + i
		for len(grid) <= r {
			grid = append(grid, nil)
		}
		for j, v := range row {
			c := u.Col + j
			for len(grid[r]) <= c {
				grid[r] = append(grid[r], "")
			}
			grid[r][c] = v
		}
	}
	return grid
}

func (t *FileTable) read() ([][]string, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", t.Path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", t.Path, err)
	}
	return rows, nil
}

func (t *FileTable) write(grid [][]string) error {
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}
	for i := range grid {
		for len(grid[i]) < width {
			grid[i] = append(grid[i], "")
		}
	}

	if dir := filepath.Dir(t.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	tmp := t.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(grid); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, t.Path)
}
