package predictor

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"demand_forecast/internal/features"
	"demand_forecast/internal/model"
)

// EvaluationReport holds held-out accuracy of one model.
type EvaluationReport struct {
	Target     model.Target `json:"target"`
	ModelID    string       `json:"model_id"`
	Model      string       `json:"model"`
	MAE        float64      `json:"mae"`
	R2         float64      `json:"r2"`
	Confidence float64      `json:"confidence"`
	TrainRows  int          `json:"train_rows"`
	TestRows   int          `json:"test_rows"`
	Skipped    int          `json:"skipped,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Evaluate predicts every test row with the model's own feature order and
// scores the predictions.
func Evaluate(m *TrainedModel, test *features.Dataset) (EvaluationReport, error) {
	if test == nil || len(test.Rows) == 0 {
		return EvaluationReport{}, &model.EmptyTestSetError{Target: m.Target}
	}
	order, err := reorder(m, test.Features)
	if err != nil {
		return EvaluationReport{}, err
	}

	preds := make([]float64, len(test.Rows))
	actual := make([]float64, len(test.Rows))
	x := make([]float64, len(order))
	for i, row := range test.Rows {
		for j, src := range order {
			x[j] = row.Features[src]
		}
		preds[i] = m.Predict(x)
		actual[i] = row.Target
	}

	mae, r2 := Score(preds, actual)
	return EvaluationReport{
		Target:     m.Target,
		ModelID:    m.ID,
		Model:      m.Describe(),
		MAE:        mae,
		R2:         r2,
		Confidence: Confidence(r2),
		TrainRows:  m.TrainRows,
		TestRows:   len(test.Rows),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Score returns the mean absolute error and coefficient of determination of
// preds against actual. A constant actual scores R² 1 when matched exactly
// and 0 otherwise.
func Score(preds, actual []float64) (mae, r2 float64) {
	n := float64(len(actual))
	mae = floats.Distance(preds, actual, 1) / n

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		if floats.Distance(preds, actual, 2) == 0 {
			return mae, 1
		}
		return mae, 0
	}
	return mae, stat.RSquaredFrom(preds, actual, nil)
}

// Confidence maps R² to a 60-95 percentage shown next to predictions.
func Confidence(r2 float64) float64 {
	if math.IsNaN(r2) {
		return 60
	}
	return math.Max(60, math.Min(95, r2*100))
}

// reorder maps each model feature to its column in names.
func reorder(m *TrainedModel, names []string) ([]int, error) {
	pos := make(map[string]int, len(names))
	for i, n := range names {
		pos[n] = i
	}
	order := make([]int, len(m.Features))
	var missing []string
	for i, f := range m.Features {
		j, ok := pos[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		order[i] = j
	}
	if len(missing) > 0 {
		return nil, &model.MissingFeatureError{Target: m.Target, Features: missing}
	}
	return order, nil
}
