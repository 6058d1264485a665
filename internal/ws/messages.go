package ws

import (
	"encoding/json"

	"demand_forecast/internal/predictor"
	"demand_forecast/internal/report"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> Server messages

type PredictRequestPayload struct {
	Target string `json:"target"`
	Date   string `json:"date"`
}

// Server -> Client messages

type TimeRangeInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// StatePayload describes the working table and the latest evaluation per target.
type StatePayload struct {
	Rows         int                          `json:"rows"`
	PendingEdits int                          `json:"pending_edits"`
	TimeRange    *TimeRangeInfo               `json:"time_range,omitempty"`
	Reports      []predictor.EvaluationReport `json:"reports"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Message type constants
const (
	// Client -> Server
	TypeStateRequest   = "state:request"
	TypePredictRequest = "prediction:request"

	// Server -> Client
	TypeState      = "state:snapshot"
	TypeReport     = report.TypeReport
	TypePrediction = report.TypePrediction
	TypeError      = "error"
)

// NewEnvelope creates a JSON-encoded envelope message.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
