// Package ml holds the numerical collaborators of the pipeline: feature preprocessing,
// the regressor family, hyperparameter search and regression metrics.
package ml

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Regressor is a supervised model producing one continuous value per row.
type Regressor interface {
	Fit(x *mat.Dense, y []float64) error
	Predict(x *mat.Dense) ([]float64, error)
}

// Params are hyperparameter values keyed by name.
type Params map[string]float64

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ErrUnknownModel is returned for display names missing from the registry.
var ErrUnknownModel = errors.New("unknown model")

// ErrNotFitted is returned by Predict before Fit succeeded.
var ErrNotFitted = errors.New("model is not fitted")

type entry struct {
	kind    string
	allowed []string
	build   func(p Params) (Regressor, error)
}

// Model display names.
const (
	LinearRegression = "Linear Regression"
	RidgeRegression  = "Ridge"
	LassoRegression  = "Lasso"
	KNeighbors       = "K-Neighbors Regressor"
	DecisionTree     = "Decision Tree"
	RandomForest     = "Random Forest Regressor"
)

var registry = map[string]entry{
	LinearRegression: {kind: "linear", build: func(Params) (Regressor, error) {
		return &Linear{Alpha: linearJitter}, nil
	}},
	RidgeRegression: {kind: "ridge", allowed: []string{"alpha"}, build: func(p Params) (Regressor, error) {
		alpha := p.get("alpha", 1)
		if alpha < 0 {
			return nil, fmt.Errorf("alpha must not be negative, got %g", alpha)
		}
		return &Linear{Alpha: alpha}, nil
	}},
	LassoRegression: {kind: "lasso", allowed: []string{"alpha", "max_iter"}, build: func(p Params) (Regressor, error) {
		alpha := p.get("alpha", 1)
		if alpha < 0 {
			return nil, fmt.Errorf("alpha must not be negative, got %g", alpha)
		}
		iters, err := p.count("max_iter", 1000, 1)
		if err != nil {
			return nil, err
		}
		return &Lasso{Alpha: alpha, MaxIter: iters}, nil
	}},
	KNeighbors: {kind: "knn", allowed: []string{"n_neighbors"}, build: func(p Params) (Regressor, error) {
		k, err := p.count("n_neighbors", 5, 1)
		if err != nil {
			return nil, err
		}
		return &KNN{K: k}, nil
	}},
	DecisionTree: {kind: "tree", allowed: []string{"max_depth", "min_samples_split", "min_samples_leaf"}, build: func(p Params) (Regressor, error) {
		cfg, err := treeConfigFrom(p)
		if err != nil {
			return nil, err
		}
		return &Tree{Config: cfg}, nil
	}},
	RandomForest: {kind: "forest", allowed: []string{"n_estimators", "max_depth", "min_samples_split", "min_samples_leaf", "random_state"}, build: func(p Params) (Regressor, error) {
		cfg, err := treeConfigFrom(p)
		if err != nil {
			return nil, err
		}
		n, err := p.count("n_estimators", 100, 1)
		if err != nil {
			return nil, err
		}
		return &Forest{Trees: n, Config: cfg, Seed: int64(p.get("random_state", 0))}, nil
	}},
}

// Models returns every registered display name, sorted.
func Models() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a registered model.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// New builds an unfitted regressor by display name.
func New(name string, p Params) (Regressor, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	for key := range p {
		if !slices.Contains(e.allowed, key) {
			return nil, fmt.Errorf("%s does not accept parameter %q", name, key)
		}
	}
	reg, err := e.build(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return reg, nil
}

// emptyForKind returns a zero regressor used to decode persisted state.
func emptyForKind(kind string) (Regressor, error) {
	switch kind {
	case "linear", "ridge":
		return &Linear{}, nil
	case "lasso":
		return &Lasso{}, nil
	case "knn":
		return &KNN{}, nil
	case "tree":
		return &Tree{}, nil
	case "forest":
		return &Forest{}, nil
	}
	return nil, fmt.Errorf("%w kind %q", ErrUnknownModel, kind)
}

func kindOf(name string) string {
	return registry[name].kind
}

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// count reads a whole-number parameter no smaller than min.
func (p Params) count(key string, def, min int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	if v != math.Trunc(v) || v < float64(min) {
		return 0, fmt.Errorf("%s must be a whole number >= %d, got %g", key, min, v)
	}
	return int(v), nil
}
