package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// linearJitter keeps the normal equations positive definite when one-hot
// columns are collinear with the intercept.
const linearJitter = 1e-8

// Linear is least squares with an L2 penalty on the coefficients (not the intercept).
type Linear struct {
	Alpha     float64   `json:"alpha"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *Linear) Fit(x *mat.Dense, y []float64) error {
	coef, intercept, err := ridge(x, y, m.Alpha)
	if err != nil {
		return err
	}
	m.Coef, m.Intercept = coef, intercept
	return nil
}

func (m *Linear) Predict(x *mat.Dense) ([]float64, error) {
	return linearPredict(x, m.Coef, m.Intercept)
}

// ridge solves (XcᵀXc + αI)w = Xcᵀyc on column-centered data.
func ridge(x *mat.Dense, y []float64, alpha float64) ([]float64, float64, error) {
	n, d := x.Dims()
	if n != len(y) {
		return nil, 0, fmt.Errorf("x has %d rows, y has %d", n, len(y))
	}
	if n == 0 {
		return nil, 0, errors.New("no training rows")
	}
	ymean := stat.Mean(y, nil)
	if d == 0 {
		return []float64{}, ymean, nil
	}
	xc, means := center(x)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - ymean
	}

	gram := mat.NewSymDense(d, nil)
	gram.SymOuterK(1, xc.T())
	reg := alpha
	if reg < linearJitter {
		reg = linearJitter
	}
	for j := 0; j < d; j++ {
		gram.SetSym(j, j, gram.At(j, j)+reg)
	}

	var xty mat.VecDense
	xty.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, 0, errors.New("normal equations are not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, 0, fmt.Errorf("failed to solve normal equations: %w", err)
		}
	}

	coef := make([]float64, d)
	intercept := ymean
	for j := 0; j < d; j++ {
		coef[j] = w.AtVec(j)
		intercept -= coef[j] * means[j]
	}
	return coef, intercept, nil
}

// center returns x with each column's mean subtracted, plus the means.
func center(x *mat.Dense) (*mat.Dense, []float64) {
	n, d := x.Dims()
	means := make([]float64, d)
	out := mat.NewDense(n, d, nil)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			out.Set(i, j, col[i]-means[j])
		}
	}
	return out, means
}

func linearPredict(x *mat.Dense, coef []float64, intercept float64) ([]float64, error) {
	if coef == nil {
		return nil, ErrNotFitted
	}
	n, d := x.Dims()
	if d != len(coef) {
		return nil, fmt.Errorf("model expects %d features, got %d", len(coef), d)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = intercept + floats.Dot(x.RawRowView(i), coef)
	}
	return out, nil
}
