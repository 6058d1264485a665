package predictor

import "gonum.org/v1/gonum/stat"

// Scaler holds z-score parameters for the features and the target.
type Scaler struct {
	Mean       []float64 `json:"mean"`
	Std        []float64 `json:"std"`
	TargetMean float64   `json:"target_mean"`
	TargetStd  float64   `json:"target_std"`
}

// fitScaler computes population z-score parameters. Constant columns get a
// unit std.
func fitScaler(X [][]float64, y []float64) Scaler {
	k := 0
	if len(X) > 0 {
		k = len(X[0])
	}
	s := Scaler{Mean: make([]float64, k), Std: make([]float64, k)}
	col := make([]float64, len(X))
	for j := 0; j < k; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.Mean[j], s.Std[j] = stat.PopMeanStdDev(col, nil)
		s.Std[j] = guardStd(s.Std[j])
	}
	s.TargetMean, s.TargetStd = stat.PopMeanStdDev(y, nil)
	s.TargetStd = guardStd(s.TargetStd)
	return s
}

func guardStd(v float64) float64 {
	if v < 1e-10 {
		return 1
	}
	return v
}

// Transform returns the z-scored copy of x.
func (s Scaler) Transform(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return z
}

func (s Scaler) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = s.Transform(x)
	}
	return out
}

func (s Scaler) scaleTarget(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = (v - s.TargetMean) / s.TargetStd
	}
	return out
}

func (s Scaler) unscaleTarget(v float64) float64 {
	return v*s.TargetStd + s.TargetMean
}
