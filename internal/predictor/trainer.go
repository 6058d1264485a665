package predictor

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"demand_forecast/internal/features"
	"demand_forecast/internal/model"
)

// Candidate is one point of the hyperparameter grid.
type Candidate struct {
	Kind   Kind
	Lambda float64
	Hidden []int
}

func (c Candidate) String() string {
	switch c.Kind {
	case KindRidge:
		return fmt.Sprintf("ridge(λ=%g)", c.Lambda)
	case KindMLP:
		parts := make([]string, len(c.Hidden))
		for i, h := range c.Hidden {
			parts[i] = fmt.Sprint(h)
		}
		return "mlp(" + strings.Join(parts, "x") + ")"
	}
	return string(c.Kind)
}

// DefaultGrid is the fixed search space of the trainer.
var DefaultGrid = []Candidate{
	{Kind: KindRidge, Lambda: 0.01},
	{Kind: KindRidge, Lambda: 0.1},
	{Kind: KindRidge, Lambda: 1},
	{Kind: KindRidge, Lambda: 10},
	{Kind: KindMLP, Hidden: []int{16}},
	{Kind: KindMLP, Hidden: []int{32, 16}},
}

// fallback is used when there are too few rows to score the grid.
var fallback = Candidate{Kind: KindRidge, Lambda: 1}

// MinSearchRows is the smallest training set the grid is searched on.
const MinSearchRows = 5

// Trainer fits one model per call from a bounded grid.
type Trainer struct {
	Grid []Candidate
	Seed uint64
	NN   TrainConfig
}

func NewTrainer(seed uint64) *Trainer {
	return &Trainer{Grid: DefaultGrid, Seed: seed, NN: DefaultTrainConfig()}
}

// Fit scores every grid candidate on a seeded inner hold-out and refits the
// best one on all rows. Below MinSearchRows it fits ridge(λ=1) directly.
func (t *Trainer) Fit(ds *features.Dataset) (*TrainedModel, error) {
	if ds == nil || len(ds.Rows) == 0 {
		return nil, &model.EmptyTrainingSetError{Target: targetOf(ds)}
	}
	X, y := matrix(ds)
	rng := rand.New(rand.NewPCG(t.Seed, 0))

	best := fallback
	if len(t.Grid) > 0 && len(y) >= MinSearchRows {
		trainIdx, valIdx := shuffleSplit(len(y), rng)
		tx, ty := pick(X, y, trainIdx)
		vx, vy := pick(X, y, valIdx)

		bestScore := math.Inf(1)
		for _, c := range t.Grid {
			m, err := t.fit(c, ds, tx, ty, rng)
			if err != nil {
				log.Printf("train: %s: %s skipped: %v", ds.Target, c, err)
				continue
			}
			score := mse(m, vx, vy)
			if score < bestScore {
				best, bestScore = c, score
			}
		}
		log.Printf("train: %s: picked %s (validation mse %.4g on %d rows)", ds.Target, best, bestScore, len(vy))
	}

	return t.fit(best, ds, X, y, rng)
}

func (t *Trainer) fit(c Candidate, ds *features.Dataset, X [][]float64, y []float64, rng *rand.Rand) (*TrainedModel, error) {
	scaler := fitScaler(X, y)
	m := newModel(ds, c.Kind, len(y))
	m.Scaler = scaler

	switch c.Kind {
	case KindRidge:
		coef, intercept, err := fitRidge(scaler.transformAll(X), y, c.Lambda)
		if err != nil {
			return nil, err
		}
		m.Coef, m.Intercept = coef, intercept
		m.Params = Params{Lambda: c.Lambda}
	case KindMLP:
		sizes := append([]int{len(ds.Features)}, c.Hidden...)
		sizes = append(sizes, 1)
		Z := scaler.transformAll(X)
		yz := scaler.scaleTarget(y)
		net := NewNetwork(sizes, rng)
		tz, ty, vz, vy := earlyStopSplit(Z, yz, rng)
		losses := net.Train(tz, ty, vz, vy, t.NN, rng)
		m.Network = net
		m.Params = Params{Hidden: append([]int(nil), c.Hidden...), Epochs: len(losses)}
	case KindMean:
		m.Intercept = stat.Mean(y, nil)
	default:
		return nil, fmt.Errorf("unknown model kind %q", c.Kind)
	}
	return m, nil
}

// FitMean returns a model that predicts the training-set mean for every row.
func FitMean(ds *features.Dataset) (*TrainedModel, error) {
	if ds == nil || len(ds.Rows) == 0 {
		return nil, &model.EmptyTrainingSetError{Target: targetOf(ds)}
	}
	m := newModel(ds, KindMean, len(ds.Rows))
	m.Intercept = stat.Mean(ds.Targets(), nil)
	return m, nil
}

func newModel(ds *features.Dataset, kind Kind, rows int) *TrainedModel {
	return &TrainedModel{
		ID:        uuid.NewString(),
		Target:    ds.Target,
		Features:  append([]string(nil), ds.Features...),
		Kind:      kind,
		TrainRows: rows,
		TrainedAt: time.Now().UTC(),
	}
}

func targetOf(ds *features.Dataset) model.Target {
	if ds == nil {
		return ""
	}
	return ds.Target
}

func matrix(ds *features.Dataset) ([][]float64, []float64) {
	X := make([][]float64, len(ds.Rows))
	y := make([]float64, len(ds.Rows))
	for i, r := range ds.Rows {
		X[i] = r.Features
		y[i] = r.Target
	}
	return X, y
}

func pick(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	px := make([][]float64, len(idx))
	py := make([]float64, len(idx))
	for i, j := range idx {
		px[i], py[i] = X[j], y[j]
	}
	return px, py
}

// earlyStopSplit holds out a shuffled tenth of the rows to pick the epoch
// at which network training stops. Below MinSearchRows every row is used
// for both.
func earlyStopSplit(X [][]float64, y []float64, rng *rand.Rand) (tx [][]float64, ty []float64, vx [][]float64, vy []float64) {
	if len(y) < MinSearchRows {
		return X, y, X, y
	}
	trainIdx, valIdx := shuffleSplit(len(y), rng)
	tx, ty = pick(X, y, trainIdx)
	vx, vy = pick(X, y, valIdx)
	return tx, ty, vx, vy
}

func mse(m *TrainedModel, X [][]float64, y []float64) float64 {
	var sum float64
	for i := range X {
		d := m.Predict(X[i]) - y[i]
		sum += d * d
	}
	return sum / float64(len(X))
}
