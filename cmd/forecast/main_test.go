package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand_forecast/internal/config"
	"demand_forecast/internal/ingest"
	"demand_forecast/internal/model"
	"demand_forecast/internal/server"
	"demand_forecast/internal/sheets"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"day_of_week=Monday", " month = 1", "avg_temp="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"day_of_week": "Monday", "month": "1", "avg_temp": ""}, got)

	for _, bad := range []string{"month", "=3"} {
		_, err := parseAssignments([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestBuildTable(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_JSON", "")

	c := config.Default()
	c.Sheet.File = filepath.Join(t.TempDir(), "demand.csv")
	table, err := buildTable(c)
	require.NoError(t, err)
	assert.IsType(t, &sheets.FileTable{}, table)

	c = config.Default()
	c.Sheet.ID = "sheet-1"
	c.Sheet.BaseURL = "http://127.0.0.1:1"
	t.Setenv("GOOGLE_CREDENTIALS_JSON", "api-key")
	table, err = buildTable(c)
	require.NoError(t, err)
	client, ok := table.(*sheets.Client)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:1", client.BaseURL)
	assert.Equal(t, sheets.StaticToken("api-key"), client.Auth)
}

func TestBuildTable_RequiredCredentialMissing(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_JSON", "")
	t.Chdir(t.TempDir())

	c := config.Default()
	c.Sheet.ID = "sheet-1"
	c.Sheet.RequireCredential = true
	_, err := buildTable(c)
	assert.Error(t, err)
}

func TestWorkspace_PersistsEditsAndModels(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "demand.csv")
	require.NoError(t, writeSampleSheet(csv, 30))

	cfg = config.Default()
	cfg.Sheet.File = csv
	cfg.State.Path = filepath.Join(dir, "state", "forecast.db")

	w, err := openWorkspace(t.Context())
	require.NoError(t, err)
	_, err = w.session.Pull(t.Context())
	require.NoError(t, err)
	require.NoError(t, w.session.Edit("2024-01-02", "peak_demand", "999"))
	_, err = w.session.Train(t.Context(), "peak")
	require.NoError(t, err)
	require.NoError(t, w.save())
	require.NoError(t, w.saveModel("peak"))
	w.close()

	w, err = openWorkspace(t.Context())
	require.NoError(t, err)
	defer w.close()

	assert.Equal(t, 1, w.session.Diff().Len())
	rec, ok := w.session.Store().Record("2024-01-02")
	require.True(t, ok)
	assert.Equal(t, 999.0, rec.PeakDemand)

	m, ok := w.session.Model("peak")
	require.True(t, ok)
	assert.NotEmpty(t, m.ID)
	_, ok = w.session.Model("gas")
	assert.False(t, ok)
}

func writeSampleSheet(path string, n int) error {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]model.DailyRecord, n)
	for i := range records {
		d := start.AddDate(0, 0, i)
		avg := 3 + 5*math.Cos(float64(i)/4)
		r := model.NewDailyRecord(d)
		r.AvgTemp = avg
		r.HighTemp = avg + 4
		r.LowTemp = avg - 4
		r.PeakDemand = 850 - 10*avg
		r.MinDemand = 560 - 7*avg
		r.DayOfWeek = d.Weekday().String()
		r.Weekday = model.WeekdayFlag(model.IsWorkingDay(d.Weekday()))
		records[i] = r
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ingest.WriteCSV(f, ingest.Encode(ingest.DefaultLayout(), records))
}

func TestIssueToken(t *testing.T) {
	secret := "0123456789abcdef-cli"

	tok, err := issueToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	claims, err := server.NewAuthenticator(secret).Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	_, err = issueToken("", "ops", time.Hour)
	assert.Error(t, err)
	_, err = issueToken(secret, "ops", 0)
	assert.Error(t, err)
}
