package predictor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// fitRidge solves (ZᵀZ + λI)β = Zᵀ(y - ȳ) for z-scored features Z. The
// intercept is ȳ since Z is centred.
func fitRidge(Z [][]float64, y []float64, lambda float64) (coef []float64, intercept float64, err error) {
	n := len(Z)
	if n == 0 {
		return nil, 0, fmt.Errorf("ridge: no rows")
	}
	k := len(Z[0])

	data := make([]float64, 0, n*k)
	for _, row := range Z {
		data = append(data, row...)
	}
	x := mat.NewDense(n, k, data)

	intercept = stat.Mean(y, nil)
	centred := make([]float64, n)
	copy(centred, y)
	floats.AddConst(-intercept, centred)

	var a mat.Dense
	a.Mul(x.T(), x)
	for i := 0; i < k; i++ {
		a.Set(i, i, a.At(i, i)+lambda)
	}
	var b mat.VecDense
	b.MulVec(x.T(), mat.NewVecDense(n, centred))

	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		// A Condition error still carries a usable solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, 0, fmt.Errorf("ridge: solving normal equations: %w", err)
		}
	}
	return mat.Col(nil, 0, &beta), intercept, nil
}

func ridgePredict(coef []float64, intercept float64, z []float64) float64 {
	return floats.Dot(coef, z) + intercept
}
