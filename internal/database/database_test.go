package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand_forecast/internal/model"
	"demand_forecast/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleState() State {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r1 := model.NewDailyRecord(d1)
	r1.HighTemp = 3.5
	r1.AvgTemp = 0
	r1.LowTemp = -4
	r1.PeakDemand = 80000
	r1.MinDemand = 55000
	r1.DayOfWeek = "Monday"
	r1.Weekday = "weekend"

	r2 := model.NewDailyRecord(d1.AddDate(0, 0, 1))
	r2.PeakDemand = 81000

	return State{
		Headers: []string{"날짜", "최고기온", "평균기온", "최저기온", "최대수요", "최저수요"},
		Rows: []model.SheetRow{
			{Position: 0, Record: r1},
			{Position: 4, Record: r2},
		},
		Edits: store.EditSet{
			{Key: "2024-01-02", Column: model.ColPeakDemand}: "81000",
			{Key: "2024-01-02", Column: model.ColGasDemand}:  "",
		},
		SavedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestLoadState_Empty(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.LoadState()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoadState(t *testing.T) {
	db := openTestDB(t)
	want := sampleState()
	require.NoError(t, db.SaveState(want))

	got, ok, err := db.LoadState()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, want.Headers, got.Headers)
	assert.Equal(t, want.Edits, got.Edits)
	assert.True(t, want.SavedAt.Equal(got.SavedAt))

	require.Len(t, got.Rows, 2)
	assert.Equal(t, 4, got.Rows[1].Position)

	r1 := got.Rows[0].Record
	assert.Equal(t, "2024-01-01", r1.Key())
	assert.Equal(t, 3.5, r1.HighTemp)
	assert.Equal(t, 0.0, r1.AvgTemp, "zero is a value, not missing")
	assert.Equal(t, -4.0, r1.LowTemp)
	assert.Equal(t, "weekend", r1.Weekday)
	assert.True(t, model.IsMissing(r1.GasDemand))

	r2 := got.Rows[1].Record
	assert.Equal(t, 81000.0, r2.PeakDemand)
	assert.True(t, model.IsMissing(r2.HighTemp))
}

func TestSaveState_Replaces(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveState(sampleState()))

	next := sampleState()
	next.Rows = next.Rows[:1]
	next.Edits = store.EditSet{}
	require.NoError(t, db.SaveState(next))

	got, ok, err := db.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Rows, 1)
	assert.Empty(t, got.Edits)
}

func TestClear(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveState(sampleState()))
	require.NoError(t, db.Clear())

	_, ok, err := db.LoadState()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateRestoresIntoStore(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveState(sampleState()))
	st, _, err := db.LoadState()
	require.NoError(t, err)

	s := store.New()
	require.NoError(t, s.Restore(st.Rows, st.Edits))
	assert.Equal(t, 2, s.SnapshotDiff().Len())
	pos, ok := s.Position("2024-01-02")
	require.True(t, ok)
	assert.Equal(t, 4, pos)
}
