package predictor

import (
	"time"

	"demand_forecast/internal/features"
	"demand_forecast/internal/model"
)

// Prediction is a single-row point estimate.
type Prediction struct {
	Target   model.Target       `json:"target"`
	Date     *time.Time         `json:"date,omitempty"`
	Value    float64            `json:"value"`
	ModelID  string             `json:"model_id"`
	Features map[string]float64 `json:"features"`
}

// PredictDate synthesizes the feature vector for date from its record and
// the previous day's record, the same way training rows are built.
func PredictDate(m *TrainedModel, eng *features.Engineer, records []model.DailyRecord, date time.Time) (Prediction, error) {
	vec, err := eng.Vector(records, date, m.Target)
	if err != nil {
		return Prediction{}, err
	}
	p, err := PredictManual(m, vec.Map())
	if err != nil {
		return Prediction{}, err
	}
	p.Date = &date
	return p, nil
}

// PredictManual predicts from named feature values. Every model feature must
// be present and finite; extra names are ignored.
func PredictManual(m *TrainedModel, values map[string]float64) (Prediction, error) {
	vec, err := features.Resolve(m.Target, m.Features, values)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Target:   m.Target,
		Value:    m.Predict(vec.Values),
		ModelID:  m.ID,
		Features: vec.Map(),
	}, nil
}
