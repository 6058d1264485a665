package report

import (
	"context"
	"errors"
	"log"

	"demand_forecast/internal/predictor"
)

// Message types shared by every sink that serializes events.
const (
	TypeReport     = "report:evaluation"
	TypePrediction = "prediction:result"
)

// Sink receives evaluation reports and single-row predictions for display.
type Sink interface {
	Report(ctx context.Context, r predictor.EvaluationReport) error
	Prediction(ctx context.Context, p predictor.Prediction) error
}

// LogSink writes reports and predictions to the standard logger.
type LogSink struct{}

func (LogSink) Report(ctx context.Context, r predictor.EvaluationReport) error {
	log.Printf("report: %s %s: mae %.2f, r2 %.3f, confidence %.0f%% (%d train / %d test rows)",
		r.Target, r.Model, r.MAE, r.R2, r.Confidence, r.TrainRows, r.TestRows)
	return nil
}

func (LogSink) Prediction(ctx context.Context, p predictor.Prediction) error {
	if p.Date != nil {
		log.Printf("prediction: %s for %s = %.1f", p.Target, p.Date.Format("2006-01-02"), p.Value)
		return nil
	}
	log.Printf("prediction: %s (manual) = %.1f", p.Target, p.Value)
	return nil
}

// Multi fans events out to every sink. A failing sink does not stop the others.
type Multi []Sink

func (m Multi) Report(ctx context.Context, r predictor.EvaluationReport) error {
	var errs []error
	for _, s := range m {
		if err := s.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Prediction(ctx context.Context, p predictor.Prediction) error {
	var errs []error
	for _, s := range m {
		if err := s.Prediction(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
