package database

import (
	"encoding/json"
	"fmt"
	"time"

	"demand_forecast/internal/model"
	"demand_forecast/internal/store"
)

const (
	metaHeaders = "headers"
	metaSavedAt = "saved_at"
)

// State is the working table as it stood at the end of a CLI run: the remote
// header row, every record with its sheet position, and the unpushed edits.
type State struct {
	Headers []string
	Rows    []model.SheetRow
	Edits   store.EditSet
	SavedAt time.Time
}

// SaveState replaces the stored state in one transaction.
func (db *DB) SaveState(st State) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"records", "edits", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	recStmt, err := tx.Prepare("INSERT INTO records (date, position, cells) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer recStmt.Close()
	for _, row := range st.Rows {
		cells, err := encodeCells(row.Record)
		if err != nil {
			return err
		}
		if _, err := recStmt.Exec(row.Record.Key(), row.Position, cells); err != nil {
			return fmt.Errorf("saving record %s: %w", row.Record.Key(), err)
		}
	}

	editStmt, err := tx.Prepare("INSERT INTO edits (date, column_key, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing edit insert: %w", err)
	}
	defer editStmt.Close()
	for _, c := range st.Edits.Cells() {
		if _, err := editStmt.Exec(c.Key, string(c.Column), st.Edits[c]); err != nil {
			return fmt.Errorf("saving edit %s/%s: %w", c.Key, c.Column, err)
		}
	}

	headers, err := json.Marshal(st.Headers)
	if err != nil {
		return fmt.Errorf("encoding headers: %w", err)
	}
	savedAt := st.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	for k, v := range map[string]string{metaHeaders: string(headers), metaSavedAt: savedAt.Format(time.RFC3339)} {
		if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("saving %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadState returns the saved state. ok is false when nothing was saved yet.
func (db *DB) LoadState() (st State, ok bool, err error) {
	meta, err := db.meta()
	if err != nil {
		return State{}, false, err
	}
	rawHeaders, saved := meta[metaHeaders]
	if !saved {
		return State{}, false, nil
	}
	if err := json.Unmarshal([]byte(rawHeaders), &st.Headers); err != nil {
		return State{}, false, fmt.Errorf("decoding headers: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339, meta[metaSavedAt]); err == nil {
		st.SavedAt = ts
	}

	rows, err := db.conn.Query("SELECT date, position, cells FROM records ORDER BY position")
	if err != nil {
		return State{}, false, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			date  string
			pos   int
			cells string
		)
		if err := rows.Scan(&date, &pos, &cells); err != nil {
			return State{}, false, fmt.Errorf("scanning record: %w", err)
		}
		rec, err := decodeCells(date, cells)
		if err != nil {
			return State{}, false, err
		}
		st.Rows = append(st.Rows, model.SheetRow{Position: pos, Record: rec})
	}
	if err := rows.Err(); err != nil {
		return State{}, false, err
	}

	st.Edits, err = db.edits()
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

func (db *DB) meta() (map[string]string, error) {
	rows, err := db.conn.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("querying meta: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning meta: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (db *DB) edits() (store.EditSet, error) {
	rows, err := db.conn.Query("SELECT date, column_key, value FROM edits")
	if err != nil {
		return nil, fmt.Errorf("querying edits: %w", err)
	}
	defer rows.Close()
	out := make(store.EditSet)
	for rows.Next() {
		var date, col, value string
		if err := rows.Scan(&date, &col, &value); err != nil {
			return nil, fmt.Errorf("scanning edit: %w", err)
		}
		out[store.Cell{Key: date, Column: model.Column(col)}] = value
	}
	return out, rows.Err()
}

// Clear removes all saved state.
func (db *DB) Clear() error {
	for _, table := range []string{"records", "edits", "meta"} {
		if _, err := db.conn.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Records are stored as their sheet text, which keeps missing values blank
// instead of relying on JSON support for NaN.
func encodeCells(r model.DailyRecord) (string, error) {
	cells := make(map[string]string, len(model.Columns))
	for _, col := range model.Columns {
		if col == model.ColDate {
			continue
		}
		if v := r.CellValue(col); v != "" {
			cells[string(col)] = v
		}
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("encoding record %s: %w", r.Key(), err)
	}
	return string(data), nil
}

func decodeCells(date, data string) (model.DailyRecord, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return model.DailyRecord{}, fmt.Errorf("stored record has bad date %q: %w", date, err)
	}
	var cells map[string]string
	if err := json.Unmarshal([]byte(data), &cells); err != nil {
		return model.DailyRecord{}, fmt.Errorf("decoding record %s: %w", date, err)
	}
	rec := model.NewDailyRecord(d)
	for k, v := range cells {
		col := model.Column(k)
		info, known := model.ColumnCatalog[col]
		if !known {
			continue
		}
		switch info.Kind {
		case model.KindNumber:
			n, err := model.ParseNumber(v)
			if err != nil {
				return model.DailyRecord{}, fmt.Errorf("decoding record %s: %s value %q: %w", date, k, v, err)
			}
			rec.SetNumber(col, n)
		case model.KindText:
			rec.SetText(col, v)
		}
	}
	return rec, nil
}
