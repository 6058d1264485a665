package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sheetsapi "google.golang.org/api/sheets/v4"

	"demand_forecast/internal/model"
)

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{0, "A"}, {1, "B"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {51, "AZ"}, {52, "BA"}, {701, "ZZ"}, {702, "AAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnLetter(tt.col), "col %d", tt.col)
	}
}

func TestRangeUpdate_A1(t *testing.T) {
	single := RangeUpdate{Row: 2, Col: 4, Values: [][]string{{"1"}}}
	assert.Equal(t, "E3", single.A1(""))
	assert.Equal(t, "Sheet1!E3", single.A1("Sheet1"))

	rect := RangeUpdate{Row: 3, Col: 1, Values: [][]string{{"a", "b"}, {"c", "d"}}}
	assert.Equal(t, "B4:C5", rect.A1(""))
	assert.Equal(t, 4, rect.Cells())
	assert.Equal(t, "'수요 데이터'!B4:C5", rect.A1("수요 데이터"))
	assert.Equal(t, "'it''s'!B4:C5", rect.A1("it's"))
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient("sheet-id", "Sheet1", StaticToken("secret"))
	c.BaseURL = srv.URL
	return c
}

func TestClient_FetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v4/spreadsheets/sheet-id/values/Sheet1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "ROWS", r.URL.Query().Get("majorDimension"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"range":"Sheet1!A1:C3","majorDimension":"ROWS","values":[["날짜","최대수요"],["2024-01-01",81234],["2024-01-02"]]}`))
	}))
	defer srv.Close()

	rows, err := newTestClient(srv).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"날짜", "최대수요"}, rows[0])
	assert.Equal(t, []string{"2024-01-01", "81234"}, rows[1])
	assert.Equal(t, []string{"2024-01-02"}, rows[2])
}

func TestClient_UpdateCellsSingleBatch(t *testing.T) {
	calls := 0
	var got sheetsapi.BatchUpdateValuesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v4/spreadsheets/sheet-id/values:batchUpdate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := newTestClient(srv).UpdateCells(context.Background(), []RangeUpdate{
		{Row: 1, Col: 4, Values: [][]string{{"100"}, {"110"}}},
		{Row: 5, Col: 1, Values: [][]string{{"3", "1.5"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "USER_ENTERED", got.ValueInputOption)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "Sheet1!E2:E3", got.Data[0].Range)
	assert.Equal(t, "Sheet1!B6:C6", got.Data[1].Range)
	assert.Equal(t, []any{"3", "1.5"}, got.Data[1].Values[0])
}

func TestClient_UpdateCellsEmptyMakesNoCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected remote call")
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv).UpdateCells(context.Background(), nil))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Quota exceeded"}}`, func(t *testing.T, err error) {
			var rl *model.RateLimitedError
			require.True(t, errors.As(err, &rl))
			assert.Equal(t, "Quota exceeded", rl.Message)
		}},
		{"server error", http.StatusInternalServerError, "boom", func(t *testing.T, err error) {
			var re *model.RemoteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, 500, re.StatusCode)
			assert.Equal(t, "boom", re.Message)
		}},
		{"unauthorized", http.StatusUnauthorized, "", func(t *testing.T, err error) {
			var re *model.RemoteError
			require.True(t, errors.As(err, &re))
			assert.Contains(t, re.Message, "credential")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).FetchAll(context.Background())
			tt.check(t, err)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(srv)
	c.Timeout = 50 * time.Millisecond

	_, err := c.FetchAll(context.Background())
	var te *model.TimeoutError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.True(t, te.Retryable())
	assert.Equal(t, "fetch", te.Op)
}

func TestFileTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,peak_demand\n2024-01-01,100\n2024-01-02,110\n"), 0o644))

	table := NewFileTable(path)
	ctx := context.Background()

	require.NoError(t, table.UpdateCells(ctx, []RangeUpdate{
		{Row: 2, Col: 1, Values: [][]string{{"111"}}},
		{Row: 3, Col: 0, Values: [][]string{{"2024-01-03", "120"}}},
		{Row: 0, Col: 2, Values: [][]string{{"gas_demand"}}},
	}))

	rows, err := table.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"date", "peak_demand", "gas_demand"},
		{"2024-01-01", "100", ""},
		{"2024-01-02", "111", ""},
		{"2024-01-03", "120", ""},
	}, rows)
}

func TestFileTable_MissingFile(t *testing.T) {
	table := NewFileTable(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := table.FetchAll(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
