package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand_forecast/internal/config"
	"demand_forecast/internal/ingest"
	"demand_forecast/internal/model"
	"demand_forecast/internal/predictor"
	"demand_forecast/internal/report"
	"demand_forecast/internal/session"
	"demand_forecast/internal/sheets"
	"demand_forecast/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func sheetRecords(n int) []model.DailyRecord {
	records := make([]model.DailyRecord, n)
	for i := range records {
		d := day0.AddDate(0, 0, i)
		avg := 2 + 6*math.Sin(float64(i)/5)
		r := model.NewDailyRecord(d)
		r.AvgTemp = avg
		r.HighTemp = avg + 5
		r.LowTemp = avg - 4
		r.PeakDemand = 900 - 12*avg
		r.MinDemand = 600 - 8*avg
		records[i] = r
	}
	return records
}

func newTestServer(t *testing.T, n int) (*Server, *session.Session) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ingest.WriteCSV(&buf, ingest.Encode(ingest.DefaultLayout(), sheetRecords(n))))
	path := filepath.Join(t.TempDir(), "daily.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	hub := ws.NewHub()
	opts := session.DefaultOptions()
	opts.Sink = report.Multi{report.LogSink{}, ws.NewBridge(hub)}
	sess := session.New(sheets.NewFileTable(path), opts)
	_, err := sess.Pull(context.Background())
	require.NoError(t, err)

	return New(sess, hub, config.Server{CORSOrigins: []string{"*"}}), sess
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 5)
	w := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, 5.0, body["rows"])
}

func TestRecordsAndEdits(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	w := do(t, srv, http.MethodGet, "/records", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Records []recordJSON `json:"records"`
	}
	decode(t, w, &list)
	require.Len(t, list.Records, 5)
	assert.Equal(t, "2024-01-01", list.Records[0].Date)
	assert.NotContains(t, list.Records[0].Cells, "gas_demand", "missing values are omitted")

	w = do(t, srv, http.MethodPatch, "/records/2024-01-02", editRequest{Column: "peak_demand", Value: "1000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec recordJSON
	decode(t, w, &rec)
	assert.Equal(t, "1000", rec.Cells["peak_demand"])

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPatch, "/records/2024-01-02", editRequest{Column: "high_temp", Value: "warm"}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPatch, "/records/2030-01-01", editRequest{Column: "high_temp", Value: "1"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPatch, "/records/2024-01-02", map[string]string{"value": "1"}).Code, "column required")

	w = do(t, srv, http.MethodPost, "/records", insertRequest{Date: "2024-01-06"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &rec)
	assert.Equal(t, 5, rec.Position)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/records", insertRequest{Date: "2024-01-06"}).Code, "duplicate date")
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/records", insertRequest{Date: "6/1/2024"}).Code)

	w = do(t, srv, http.MethodGet, "/edits", nil)
	var edits struct {
		Edits []editJSON `json:"edits"`
	}
	decode(t, w, &edits)
	assert.Len(t, edits.Edits, 1+len(model.Columns))
	assert.Equal(t, editJSON{Date: "2024-01-02", Column: "peak_demand", Value: "1000"}, edits.Edits[0])

	w = do(t, srv, http.MethodPost, "/sync/push", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pushed map[string]int
	decode(t, w, &pushed)
	assert.Equal(t, 1+len(model.Columns), pushed["cells"])

	w = do(t, srv, http.MethodPost, "/sync/pull", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pulled map[string]any
	decode(t, w, &pulled)
	assert.Equal(t, 6.0, pulled["rows"])
}

func TestTrainPredictExport(t *testing.T) {
	srv, _ := newTestServer(t, 30)

	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/predict/peak", predictRequest{Date: "2024-01-10"}).Code)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodGet, "/reports/peak", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/train/water", nil).Code)

	w := do(t, srv, http.MethodPost, "/train/peak", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rep predictor.EvaluationReport
	decode(t, w, &rep)
	assert.Equal(t, model.TargetPeak, rep.Target)
	assert.Equal(t, 6, rep.TestRows)

	w = do(t, srv, http.MethodGet, "/reports/peak", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/predict/peak", predictRequest{Date: "2024-01-10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p predictor.Prediction
	decode(t, w, &p)
	assert.Equal(t, rep.ModelID, p.ModelID)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/predict/peak", predictRequest{Date: "2024-01-01"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, http.MethodPost, "/predict/peak", predictRequest{Values: map[string]float64{"avg_temp": 1}}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/predict/peak", predictRequest{}).Code)

	w = do(t, srv, http.MethodPost, "/predict/peak", predictRequest{Manual: map[string]string{
		"day_of_week": "Wednesday", "month": "1", "high_temp": "4", "low_temp": "-3",
		"prev_demand": "880", "prev_solar_share": "0",
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, srv, http.MethodPost, "/predict/peak", predictRequest{Manual: map[string]string{
		"day_of_week": "Wednesday", "month": "1", "high_temp": "4", "low_temp": "-3",
		"prev_demand": "880",
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "solar share not given")
	assert.Contains(t, w.Body.String(), "prev_solar_share")

	w = do(t, srv, http.MethodGet, "/models/peak", nil)
	require.Equal(t, http.StatusOK, w.Code)
	m, err := predictor.LoadModel(w.Body)
	require.NoError(t, err)
	assert.Equal(t, rep.ModelID, m.ID)

	w = do(t, srv, http.MethodPost, "/train/gas", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "no gas demand recorded")
}

func TestTrainAll(t *testing.T) {
	srv, _ := newTestServer(t, 20)
	w := do(t, srv, http.MethodPost, "/train/all", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Reports map[model.Target]predictor.EvaluationReport `json:"reports"`
		Error   string                                      `json:"error"`
	}
	decode(t, w, &body)
	assert.Len(t, body.Reports, 2)
	assert.Contains(t, body.Error, "gas")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&model.ValidationError{}, http.StatusBadRequest},
		{&model.UnknownKeyError{}, http.StatusNotFound},
		{&model.UnknownDateError{}, http.StatusNotFound},
		{&model.MissingFeatureError{}, http.StatusUnprocessableEntity},
		{&model.InsufficientHistoryError{}, http.StatusUnprocessableEntity},
		{&model.EmptyTrainingSetError{}, http.StatusUnprocessableEntity},
		{&model.EmptyTestSetError{}, http.StatusUnprocessableEntity},
		{&session.NotTrainedError{}, http.StatusConflict},
		{&model.RateLimitedError{Attempts: 3}, http.StatusTooManyRequests},
		{&model.RemoteError{Op: "fetch", StatusCode: 500}, http.StatusBadGateway},
		{&model.TimeoutError{Op: "fetch", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{fmt.Errorf("wrapped: %w", &model.RateLimitedError{}), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 5)
	w := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "forecast_sync_pulls_total")
}

func TestWebSocketReceivesTrainingReport(t *testing.T) {
	srv, sess := newTestServer(t, 20)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() ws.Envelope {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	}

	env := read()
	require.Equal(t, ws.TypeState, env.Type)
	var st ws.StatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &st))
	assert.Equal(t, 20, st.Rows)
	assert.Equal(t, "2024-01-20", st.TimeRange.End)

	_, err = sess.Train(context.Background(), model.TargetMin)
	require.NoError(t, err)

	env = read()
	assert.Equal(t, ws.TypeReport, env.Type)
}
