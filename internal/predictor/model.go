package predictor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"demand_forecast/internal/model"
)

// Kind names a regressor family.
type Kind string

const (
	KindRidge Kind = "ridge"
	KindMLP   Kind = "mlp"
	KindMean  Kind = "mean"
)

// Params records the hyperparameters a model was fitted with.
type Params struct {
	Lambda float64 `json:"lambda,omitempty"`
	Hidden []int   `json:"hidden,omitempty"`
	Epochs int     `json:"epochs,omitempty"`
}

// TrainedModel is a fitted regressor bound to its exact feature order.
// It is never modified after Fit returns it.
type TrainedModel struct {
	ID        string       `json:"id"`
	Target    model.Target `json:"target"`
	Features  []string     `json:"features"`
	Kind      Kind         `json:"kind"`
	Params    Params       `json:"params"`
	Scaler    Scaler       `json:"scaler"`
	Coef      []float64    `json:"coef,omitempty"`
	Intercept float64      `json:"intercept"`
	Network   *Network     `json:"network,omitempty"`
	TrainRows int          `json:"train_rows"`
	TrainedAt time.Time    `json:"trained_at"`
	// SolarScale is the solar calibration the training rows were built
	// with. Date predictions reuse it.
	SolarScale float64 `json:"solar_scale,omitempty"`
}

// Predict returns the estimate for a feature vector in the model's order.
func (m *TrainedModel) Predict(x []float64) float64 {
	switch m.Kind {
	case KindRidge:
		return ridgePredict(m.Coef, m.Intercept, m.Scaler.Transform(x))
	case KindMLP:
		return m.Scaler.unscaleTarget(m.Network.Predict(m.Scaler.Transform(x)))
	}
	return m.Intercept
}

// Describe returns a short label such as "ridge(λ=1)".
func (m *TrainedModel) Describe() string {
	return Candidate{Kind: m.Kind, Lambda: m.Params.Lambda, Hidden: m.Params.Hidden}.String()
}

func (m *TrainedModel) validate() error {
	if _, err := model.ParseTarget(string(m.Target)); err != nil {
		return err
	}
	if len(m.Features) == 0 {
		return fmt.Errorf("model has no features")
	}
	k := len(m.Features)
	if m.Kind != KindMean && (len(m.Scaler.Mean) != k || len(m.Scaler.Std) != k) {
		return fmt.Errorf("scaler has %d columns, want %d", len(m.Scaler.Mean), k)
	}
	switch m.Kind {
	case KindRidge:
		if len(m.Coef) != k {
			return fmt.Errorf("ridge model has %d coefficients, want %d", len(m.Coef), k)
		}
	case KindMLP:
		if m.Network == nil || len(m.Network.Layers) == 0 || len(m.Network.Layers[0].Weights[0]) != k {
			return fmt.Errorf("network input does not match %d features", k)
		}
	case KindMean:
	default:
		return fmt.Errorf("unknown model kind %q", m.Kind)
	}
	return nil
}

// Save writes the model as JSON.
func (m *TrainedModel) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// SaveFile writes the model to path.
func (m *TrainedModel) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// LoadModel reads a model written by Save.
func LoadModel(r io.Reader) (*TrainedModel, error) {
	var m TrainedModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &m, nil
}

// LoadModelFile reads a model from path.
func LoadModelFile(path string) (*TrainedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return LoadModel(f)
}
