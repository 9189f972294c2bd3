package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SearchOptions control the hyperparameter search.
type SearchOptions struct {
	Grid map[string][]float64
	// Random samples NIter candidates instead of the full grid.
	Random bool
	NIter  int
	Folds  int
	Seed   int64
}

// SearchResult is the refitted winner of a search.
type SearchResult struct {
	Name   string
	Params Params
	// Score is the mean cross-validated R2 of the winning candidate.
	Score float64
	Model Regressor
}

// Search scores every candidate with k-fold cross-validation (R2), then refits the best
// candidate on all rows. Ties keep the earlier candidate.
func Search(ctx context.Context, name string, x *mat.Dense, y []float64, opts SearchOptions) (*SearchResult, error) {
	if !Known(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	n, _ := x.Dims()
	folds := opts.Folds
	if folds < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", folds)
	}
	if folds > n {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", n, folds)
	}

	candidates := expandGrid(opts.Grid)
	if opts.Random && opts.NIter > 0 && opts.NIter < len(candidates) {
		rng := rand.New(rand.NewSource(opts.Seed))
		picked := rng.Perm(len(candidates))[:opts.NIter]
		sort.Ints(picked)
		sampled := make([]Params, len(picked))
		for i, idx := range picked {
			sampled[i] = candidates[idx]
		}
		candidates = sampled
	}

	splits := kFold(n, folds)
	best := -1
	bestScore := math.Inf(-1)
	for i, params := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := crossValidate(name, params, x, y, splits)
		if err != nil {
			return nil, err
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, errors.New("no candidate could be scored")
	}

	model, err := New(name, candidates[best])
	if err != nil {
		return nil, err
	}
	if err := model.Fit(x, y); err != nil {
		return nil, fmt.Errorf("%s: refit failed: %w", name, err)
	}
	return &SearchResult{Name: name, Params: candidates[best], Score: bestScore, Model: model}, nil
}

func crossValidate(name string, params Params, x *mat.Dense, y []float64, splits [][2][]int) (float64, error) {
	var total float64
	for _, s := range splits {
		train, test := s[0], s[1]
		model, err := New(name, params)
		if err != nil {
			return 0, err
		}
		if err := model.Fit(rows(x, train), pick(y, train)); err != nil {
			return 0, fmt.Errorf("%s: fit failed: %w", name, err)
		}
		pred, err := model.Predict(rows(x, test))
		if err != nil {
			return 0, err
		}
		total += R2(pick(y, test), pred)
	}
	return total / float64(len(splits)), nil
}

// kFold splits 0..n-1 into k contiguous folds; the first n%k folds get one extra row.
func kFold(n, k int) [][2][]int {
	out := make([][2][]int, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		var train, test []int
		for i := 0; i < n; i++ {
			if i >= start && i < start+size {
				test = append(test, i)
			} else {
				train = append(train, i)
			}
		}
		out[f] = [2][]int{train, test}
		start += size
	}
	return out
}

// expandGrid returns the cartesian product of the grid in sorted key order.
// An empty grid yields a single empty candidate.
func expandGrid(grid map[string][]float64) []Params {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []Params{{}}
	for _, k := range keys {
		var next []Params
		for _, base := range out {
			for _, v := range grid[k] {
				p := base.Clone()
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

func rows(x *mat.Dense, idx []int) *mat.Dense {
	_, d := x.Dims()
	out := mat.NewDense(len(idx), d, nil)
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
	}
	return out
}

func pick(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
