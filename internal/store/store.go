package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"demand_forecast/internal/model"
)

// Store holds the working copy of the daily table and the cells edited since
// the last sync. Records are kept sorted by date; positions remember where
// each row lives in the remote sheet.
type Store struct {
	mu        sync.RWMutex
	records   []model.DailyRecord
	index     map[string]int // key -> index into records
	positions map[string]int // key -> zero-based remote data row
	next      int
	edits     EditSet
}

func New() *Store {
	return &Store{
		index:     make(map[string]int),
		positions: make(map[string]int),
		edits:     make(EditSet),
	}
}

// Load replaces the working table with rows in remote order and clears the
// EditSet. Dates must be unique.
func (s *Store) Load(rows []model.DailyRecord) error {
	positioned := make([]model.SheetRow, len(rows))
	for i, r := range rows {
		positioned[i] = model.SheetRow{Position: i, Record: r}
	}
	return s.LoadRows(positioned)
}

// LoadRows is Load for rows that carry their own remote position, as
// decoded from a sheet with skipped lines.
func (s *Store) LoadRows(rows []model.SheetRow) error {
	positions := make(map[string]int, len(rows))
	records := make([]model.DailyRecord, 0, len(rows))
	next := 0
	for _, row := range rows {
		key := row.Record.Key()
		if _, dup := positions[key]; dup {
			return &model.ValidationError{Key: key, Column: string(model.ColDate), Value: key, Reason: "duplicate date"}
		}
		positions[key] = row.Position
		records = append(records, row.Record)
		if row.Position >= next {
			next = row.Position + 1
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.positions = positions
	s.next = next
	s.edits = make(EditSet)
	s.reindex()
	return nil
}

// Restore loads positioned rows and then reinstates pending edits whose
// values are already reflected in rows.
func (s *Store) Restore(rows []model.SheetRow, pending EditSet) error {
	if err := s.LoadRows(rows); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, v := range pending {
		if _, ok := s.index[c.Key]; !ok {
			return &model.UnknownKeyError{Key: c.Key, Column: string(c.Column)}
		}
		s.edits[c] = v
	}
	return nil
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.Key()] = i
	}
}

// Edit coerces value to the column's declared type, updates the row and
// records the cell in the EditSet. Invalid edits leave the EditSet untouched.
func (s *Store) Edit(key, column, value string) error {
	col, ok := model.LookupColumn(column)
	if !ok {
		return &model.UnknownKeyError{Key: key, Column: column}
	}
	info := model.ColumnCatalog[col]
	if !info.Editable {
		return &model.ValidationError{Key: key, Column: string(col), Value: value, Reason: "column is not editable"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[key]
	if !ok {
		return &model.UnknownKeyError{Key: key}
	}

	rec := s.records[idx]
	canonical, err := apply(&rec, col, info.Kind, value)
	if err != nil {
		return err
	}

	s.records[idx] = rec
	s.edits[Cell{Key: key, Column: col}] = canonical
	return nil
}

func apply(rec *model.DailyRecord, col model.Column, kind model.Kind, value string) (string, error) {
	invalid := func(reason string) error {
		return &model.ValidationError{Key: rec.Key(), Column: string(col), Value: value, Reason: reason}
	}

	switch kind {
	case model.KindNumber:
		v, err := model.ParseNumber(value)
		if err != nil {
			return "", invalid("expected a finite number")
		}
		rec.SetNumber(col, v)
		return model.FormatNumber(v), nil

	case model.KindText:
		text := strings.TrimSpace(value)
		if text != "" {
			switch col {
			case model.ColDayOfWeek:
				if _, ok := model.ParseWeekdayName(text); !ok {
					return "", invalid("expected a day-of-week name")
				}
			case model.ColWeekday:
				if _, ok := model.ParseWeekdayFlag(text); !ok {
					return "", invalid("expected weekday or weekend")
				}
			}
		}
		rec.SetText(col, text)
		return text, nil

	case model.KindDate:
		if _, err := time.Parse(model.DateLayout, strings.TrimSpace(value)); err != nil {
			return "", invalid("expected YYYY-MM-DD")
		}
		return strings.TrimSpace(value), nil
	}
	return "", invalid("unsupported column type")
}

// Insert adds a blank row for date after the last remote row. Every cell of
// the new row is queued for the next push.
func (s *Store) Insert(date time.Time) (model.DailyRecord, error) {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	rec := model.NewDailyRecord(date)
	rec.DayOfWeek = date.Weekday().String()
	rec.Weekday = model.WeekdayFlag(model.IsWorkingDay(date.Weekday()))
	key := rec.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[key]; exists {
		return model.DailyRecord{}, &model.ValidationError{Key: key, Column: string(model.ColDate), Value: key, Reason: "duplicate date"}
	}

	pos := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Date.Before(date)
	})
	s.records = append(s.records, model.DailyRecord{})
	copy(s.records[pos+1:], s.records[pos:])
	s.records[pos] = rec
	s.reindex()

	s.positions[key] = s.next
	s.next++

	for _, col := range model.Columns {
		s.edits[Cell{Key: key, Column: col}] = rec.CellValue(col)
	}
	return rec, nil
}

// SnapshotDiff returns a copy of the pending EditSet without clearing it.
func (s *Store) SnapshotDiff() EditSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edits.Clone()
}

// ClearSent removes the cells of sent whose pending value is still the one
// that was sent. Cells edited again meanwhile stay pending.
func (s *Store) ClearSent(sent EditSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, v := range sent {
		if cur, ok := s.edits[c]; ok && cur == v {
			delete(s.edits, c)
		}
	}
}

// Records returns a copy of all records sorted by date.
func (s *Store) Records() []model.DailyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DailyRecord, len(s.records))
	copy(out, s.records)
	return out
}

// RecordsByPosition returns all records in remote sheet order.
func (s *Store) RecordsByPosition() []model.DailyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DailyRecord, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool {
		return s.positions[out[i].Key()] < s.positions[out[j].Key()]
	})
	return out
}

// Rows returns all records with their remote positions, in sheet order.
func (s *Store) Rows() []model.SheetRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SheetRow, len(s.records))
	for i, r := range s.records {
		out[i] = model.SheetRow{Position: s.positions[r.Key()], Record: r}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// Record returns the record with the given key.
func (s *Store) Record(key string) (model.DailyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[key]
	if !ok {
		return model.DailyRecord{}, false
	}
	return s.records[idx], true
}

// Position returns the zero-based remote data row of key.
func (s *Store) Position(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[key]
	return p, ok
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TimeRange returns the first and last day in the table.
func (s *Store) TimeRange() (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: s.records[0].Date,
		End:   s.records[len(s.records)-1].Date,
	}, true
}
