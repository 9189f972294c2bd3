package ml

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Forest averages bootstrap-trained regression trees.
type Forest struct {
	Trees   int        `json:"n_estimators"`
	Config  TreeConfig `json:"config"`
	Seed    int64      `json:"random_state"`
	Members []*Tree    `json:"members"`
}

func (f *Forest) Fit(x *mat.Dense, y []float64) error {
	n, _ := x.Dims()
	if n != len(y) {
		return fmt.Errorf("x has %d rows, y has %d", n, len(y))
	}
	if n == 0 {
		return errors.New("no training rows")
	}
	count := f.Trees
	if count <= 0 {
		count = 100
	}

	rng := rand.New(rand.NewSource(f.Seed))
	f.Members = make([]*Tree, count)
	for t := 0; t < count; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		tree := &Tree{Config: f.Config}
		if err := tree.fit(x, y, sample, rng); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		f.Members[t] = tree
	}
	return nil
}

func (f *Forest) Predict(x *mat.Dense) ([]float64, error) {
	if len(f.Members) == 0 {
		return nil, ErrNotFitted
	}
	n, _ := x.Dims()
	out := make([]float64, n)
	for _, tree := range f.Members {
		pred, err := tree.Predict(x)
		if err != nil {
			return nil, err
		}
		for i, v := range pred {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(f.Members))
	}
	return out, nil
}
