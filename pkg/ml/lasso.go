package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const lassoTol = 1e-4

// Lasso minimizes (1/2n)‖y − Xw − b‖² + α‖w‖₁ by cyclic coordinate descent.
type Lasso struct {
	Alpha     float64   `json:"alpha"`
	MaxIter   int       `json:"max_iter"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *Lasso) Fit(x *mat.Dense, y []float64) error {
	n, d := x.Dims()
	if n != len(y) {
		return fmt.Errorf("x has %d rows, y has %d", n, len(y))
	}
	if n == 0 {
		return errors.New("no training rows")
	}
	iters := m.MaxIter
	if iters <= 0 {
		iters = 1000
	}

	xc, means := center(x)
	ymean := stat.Mean(y, nil)
	resid := make([]float64, n)
	for i, v := range y {
		resid[i] = v - ymean
	}

	cols := make([][]float64, d)
	norms := make([]float64, d)
	for j := 0; j < d; j++ {
		cols[j] = mat.Col(nil, j, xc)
		norms[j] = floats.Dot(cols[j], cols[j])
	}

	w := make([]float64, d)
	penalty := m.Alpha * float64(n)
	for iter := 0; iter < iters; iter++ {
		var maxStep, maxW float64
		for j := 0; j < d; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			rho := floats.Dot(cols[j], resid) + norms[j]*old
			w[j] = softThreshold(rho, penalty) / norms[j]
			if delta := w[j] - old; delta != 0 {
				floats.AddScaled(resid, -delta, cols[j])
				maxStep = math.Max(maxStep, math.Abs(delta))
			}
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		if maxW == 0 || maxStep/maxW < lassoTol {
			break
		}
	}

	m.Coef = w
	m.Intercept = ymean - floats.Dot(w, means)
	return nil
}

func (m *Lasso) Predict(x *mat.Dense) ([]float64, error) {
	return linearPredict(x, m.Coef, m.Intercept)
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	}
	return 0
}
