package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// KNN predicts the mean target of the K nearest training rows (Euclidean distance).
type KNN struct {
	K int         `json:"k"`
	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`
}

func (m *KNN) Fit(x *mat.Dense, y []float64) error {
	n, _ := x.Dims()
	if n != len(y) {
		return fmt.Errorf("x has %d rows, y has %d", n, len(y))
	}
	if n == 0 {
		return errors.New("no training rows")
	}
	m.X = make([][]float64, n)
	for i := 0; i < n; i++ {
		m.X[i] = mat.Row(nil, i, x)
	}
	m.Y = append([]float64(nil), y...)
	return nil
}

func (m *KNN) Predict(x *mat.Dense) ([]float64, error) {
	if len(m.X) == 0 {
		return nil, ErrNotFitted
	}
	n, d := x.Dims()
	if d != len(m.X[0]) {
		return nil, fmt.Errorf("model expects %d features, got %d", len(m.X[0]), d)
	}
	k := m.K
	if k <= 0 || k > len(m.X) {
		k = len(m.X)
	}

	type neighbour struct {
		dist float64
		idx  int
	}
	out := make([]float64, n)
	nb := make([]neighbour, len(m.X))
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j, train := range m.X {
			nb[j] = neighbour{dist: floats.Distance(row, train, 2), idx: j}
		}
		sort.SliceStable(nb, func(a, b int) bool { return nb[a].dist < nb[b].dist })
		var sum float64
		for _, v := range nb[:k] {
			sum += m.Y[v.idx]
		}
		out[i] = sum / float64(k)
	}
	return out, nil
}
