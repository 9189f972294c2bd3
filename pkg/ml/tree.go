package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeConfig bounds tree growth. MaxDepth 0 means unlimited.
type TreeConfig struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
	// MaxFeatures limits the candidate features per split; 0 means all.
	MaxFeatures int `json:"max_features"`
}

func treeConfigFrom(p Params) (TreeConfig, error) {
	depth, err := p.count("max_depth", 0, 0)
	if err != nil {
		return TreeConfig{}, err
	}
	split, err := p.count("min_samples_split", 2, 2)
	if err != nil {
		return TreeConfig{}, err
	}
	leaf, err := p.count("min_samples_leaf", 1, 1)
	if err != nil {
		return TreeConfig{}, err
	}
	return TreeConfig{MaxDepth: depth, MinSamplesSplit: split, MinSamplesLeaf: leaf}, nil
}

// Node is one tree node. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a CART regression tree minimizing squared error.
type Tree struct {
	Config    TreeConfig `json:"config"`
	Nodes     []Node     `json:"nodes"`
	NFeatures int        `json:"n_features"`
}

func (t *Tree) Fit(x *mat.Dense, y []float64) error {
	return t.fit(x, y, nil, nil)
}

// fit grows the tree over the given sample indices (all rows when nil).
// rng is only used when MaxFeatures restricts the candidates.
func (t *Tree) fit(x *mat.Dense, y []float64, samples []int, rng *rand.Rand) error {
	n, d := x.Dims()
	if n != len(y) {
		return fmt.Errorf("x has %d rows, y has %d", n, len(y))
	}
	if n == 0 {
		return errors.New("no training rows")
	}
	if samples == nil {
		samples = make([]int, n)
		for i := range samples {
			samples[i] = i
		}
	}
	cfg := t.Config
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}

	b := &treeBuilder{x: x, y: y, cfg: cfg, rng: rng, d: d}
	b.grow(samples, 0)
	t.Nodes = b.nodes
	t.NFeatures = d
	return nil
}

func (t *Tree) Predict(x *mat.Dense) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	n, d := x.Dims()
	if d != t.NFeatures {
		return nil, fmt.Errorf("model expects %d features, got %d", t.NFeatures, d)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = t.predictRow(x.RawRowView(i))
	}
	return out, nil
}

func (t *Tree) predictRow(row []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.Feature < 0 {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

type treeBuilder struct {
	x     *mat.Dense
	y     []float64
	cfg   TreeConfig
	rng   *rand.Rand
	d     int
	nodes []Node
}

type split struct {
	feature   int
	threshold float64
	score     float64
}

// grow appends the subtree for samples and returns its root index.
func (b *treeBuilder) grow(samples []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.mean(samples)})

	if len(samples) < b.cfg.MinSamplesSplit || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return idx
	}
	best, ok := b.bestSplit(samples)
	if !ok {
		return idx
	}

	var left, right []int
	for _, s := range samples {
		if b.x.At(s, best.feature) <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) mean(samples []int) float64 {
	var s float64
	for _, i := range samples {
		s += b.y[i]
	}
	return s / float64(len(samples))
}

func (b *treeBuilder) candidates() []int {
	features := make([]int, b.d)
	for j := range features {
		features[j] = j
	}
	if b.cfg.MaxFeatures <= 0 || b.cfg.MaxFeatures >= b.d || b.rng == nil {
		return features
	}
	b.rng.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
	features = features[:b.cfg.MaxFeatures]
	sort.Ints(features)
	return features
}

// bestSplit scans every threshold between distinct sorted values and keeps the one with the
// largest reduction in squared error that honours MinSamplesLeaf.
func (b *treeBuilder) bestSplit(samples []int) (split, bool) {
	n := len(samples)
	var total, totalSq float64
	for _, s := range samples {
		total += b.y[s]
		totalSq += b.y[s] * b.y[s]
	}
	parentSSE := totalSq - total*total/float64(n)

	best := split{score: math.Inf(-1)}
	found := false
	order := make([]int, n)
	for _, f := range b.candidates() {
		copy(order, samples)
		sort.SliceStable(order, func(i, j int) bool { return b.x.At(order[i], f) < b.x.At(order[j], f) })

		var leftSum, leftSq float64
		for i := 0; i < n-1; i++ {
			yi := b.y[order[i]]
			leftSum += yi
			leftSq += yi * yi
			nl := i + 1
			nr := n - nl
			cur, next := b.x.At(order[i], f), b.x.At(order[i+1], f)
			if cur == next || nl < b.cfg.MinSamplesLeaf || nr < b.cfg.MinSamplesLeaf {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			gain := parentSSE - sse
			if gain > best.score+1e-12 {
				best = split{feature: f, threshold: (cur + next) / 2, score: gain}
				found = true
			}
		}
	}
	return best, found && best.score > 0
}
