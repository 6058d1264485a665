package ws

import (
	"context"
	"fmt"

	"demand_forecast/internal/metrics"
	"demand_forecast/internal/predictor"
)

// Bridge implements report.Sink and broadcasts events to the WebSocket hub.
type Bridge struct {
	hub *Hub
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

func (b *Bridge) Report(ctx context.Context, r predictor.EvaluationReport) error {
	return b.broadcast(TypeReport, r)
}

func (b *Bridge) Prediction(ctx context.Context, p predictor.Prediction) error {
	return b.broadcast(TypePrediction, p)
}

func (b *Bridge) broadcast(msgType string, payload any) error {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", msgType, err)
	}
	b.hub.Broadcast(msg)
	metrics.ReportsPublished.WithLabelValues("websocket").Inc()
	return nil
}
