package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"demand_forecast/internal/features"
	"demand_forecast/internal/model"
	"demand_forecast/internal/predictor"
	"demand_forecast/internal/session"
	"demand_forecast/internal/ws"
)

type recordJSON struct {
	Date     string            `json:"date"`
	Position int               `json:"position"`
	Cells    map[string]string `json:"cells"`
}

type editJSON struct {
	Date   string `json:"date"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

type editRequest struct {
	Column string `json:"column" binding:"required"`
	Value  string `json:"value"`
}

type insertRequest struct {
	Date string `json:"date" binding:"required"`
}

// predictRequest holds either a date present in the table, feature values
// by name, or a manual day description such as {"day_of_week": "Friday",
// "high_temp": "31", ...}.
type predictRequest struct {
	Date   string             `json:"date"`
	Values map[string]float64 `json:"values"`
	Manual map[string]string  `json:"manual"`
}

func toRecordJSON(row model.SheetRow) recordJSON {
	cells := make(map[string]string, len(model.Columns))
	for _, col := range model.Columns {
		if v := row.Record.CellValue(col); v != "" {
			cells[string(col)] = v
		}
	}
	return recordJSON{Date: row.Record.Key(), Position: row.Position, Cells: cells}
}

func (s *Server) listRecords(c *gin.Context) {
	rows := s.session.Store().Rows()
	out := make([]recordJSON, len(rows))
	for i, r := range rows {
		out[i] = toRecordJSON(r)
	}
	c.JSON(http.StatusOK, gin.H{"records": out})
}

func (s *Server) insertRecord(c *gin.Context) {
	var req insertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	date, err := time.Parse(model.DateLayout, req.Date)
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}
	rec, err := s.session.Insert(date)
	if err != nil {
		writeError(c, err)
		return
	}
	pos, _ := s.session.Store().Position(rec.Key())
	c.JSON(http.StatusCreated, toRecordJSON(model.SheetRow{Position: pos, Record: rec}))
}

func (s *Server) editRecord(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	key := c.Param("date")
	if err := s.session.Edit(key, req.Column, req.Value); err != nil {
		writeError(c, err)
		return
	}
	rec, _ := s.session.Store().Record(key)
	pos, _ := s.session.Store().Position(key)
	c.JSON(http.StatusOK, toRecordJSON(model.SheetRow{Position: pos, Record: rec}))
}

func (s *Server) listEdits(c *gin.Context) {
	diff := s.session.Diff()
	out := make([]editJSON, 0, diff.Len())
	for _, cell := range diff.Cells() {
		out = append(out, editJSON{Date: cell.Key, Column: string(cell.Column), Value: diff[cell]})
	}
	c.JSON(http.StatusOK, gin.H{"edits": out})
}

func (s *Server) pull(c *gin.Context) {
	res, err := s.session.Pull(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) push(c *gin.Context) {
	res, err := s.session.Push(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) train(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Param("target") == "all" {
		reports, err := s.session.TrainAll(ctx)
		body := gin.H{"reports": reports}
		if err != nil {
			body["error"] = err.Error()
		}
		status := http.StatusOK
		if len(reports) == 0 && err != nil {
			status = statusFor(err)
		}
		c.JSON(status, body)
		return
	}

	target, ok := parseTarget(c)
	if !ok {
		return
	}
	rep, err := s.session.Train(ctx, target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) getReport(c *gin.Context) {
	target, ok := parseTarget(c)
	if !ok {
		return
	}
	rep, found := s.session.Report(target)
	if !found {
		writeError(c, &session.NotTrainedError{Target: target})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) predict(c *gin.Context) {
	target, ok := parseTarget(c)
	if !ok {
		return
	}
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	var q session.Query
	switch {
	case req.Date != "":
		date, err := time.Parse(model.DateLayout, req.Date)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		q.Date = &date
	case req.Manual != nil:
		day, err := features.ParseManualDay(req.Manual)
		if err != nil {
			writeError(c, err)
			return
		}
		q.Values = day.Values(target)
	case req.Values != nil:
		q.Values = req.Values
	default:
		badRequest(c, "provide date, values or manual")
		return
	}

	p, err := s.session.Predict(c.Request.Context(), target, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) exportModel(c *gin.Context) {
	target, ok := parseTarget(c)
	if !ok {
		return
	}
	m, found := s.session.Model(target)
	if !found {
		writeError(c, &session.NotTrainedError{Target: target})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+string(target)+"-model.json\"")
	c.JSON(http.StatusOK, m)
}

func parseTarget(c *gin.Context) (model.Target, bool) {
	t, err := model.ParseTarget(c.Param("target"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return t, true
}

// liveSource adapts the session to what the WebSocket handler reads.
type liveSource struct {
	s *session.Session
}

func (l liveSource) State() ws.StatePayload {
	st := l.s.Status()
	out := ws.StatePayload{
		Rows:         st.Rows,
		PendingEdits: st.PendingEdits,
		Reports:      l.s.Reports(),
	}
	if out.Reports == nil {
		out.Reports = []predictor.EvaluationReport{}
	}
	if st.TimeRange != nil {
		out.TimeRange = &ws.TimeRangeInfo{
			Start: st.TimeRange.Start.Format(model.DateLayout),
			End:   st.TimeRange.End.Format(model.DateLayout),
		}
	}
	return out
}

func (l liveSource) PredictDate(ctx context.Context, target model.Target, date time.Time) (predictor.Prediction, error) {
	return l.s.PredictDate(ctx, target, date)
}
