package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"mlengine/pkg/dataset"
	"mlengine/pkg/utils"
)

// Preprocessing modes.
const (
	ModeJoint    = "joint"
	ModeDisjoint = "disjoint"
)

// ErrUnknownCategory is returned by Transform for a categorical value not seen during fit.
var ErrUnknownCategory = errors.New("unknown category")

// rfeAlpha is the ridge penalty of the estimator that ranks features during elimination.
const rfeAlpha = 1.0

// NumericColumn holds the imputation and scaling state of a numeric input.
type NumericColumn struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// CategoricalColumn holds the fill value and the known categories of a string input.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Fill       string   `json:"fill"`
	Categories []string `json:"categories"`
}

// PrepOptions configure FitPreprocessor.
type PrepOptions struct {
	Mode string
	// NFeatures is the number of features kept by elimination in joint mode; 0 keeps half.
	NFeatures int
}

// Preprocessor imputes, scales and one-hot encodes a feature frame. Numeric outputs come
// first, then one column per category. In joint mode only the Selected outputs are kept.
type Preprocessor struct {
	Mode        string              `json:"mode"`
	Numeric     []NumericColumn     `json:"numeric"`
	Categorical []CategoricalColumn `json:"categorical"`
	Features    []string            `json:"features"`
	Selected    []int               `json:"selected,omitempty"`
}

// FitPreprocessor learns the transformation from x. y is required in joint mode and
// ignored otherwise.
func FitPreprocessor(x *dataset.Frame, y []float64, opts PrepOptions) (*Preprocessor, error) {
	if x.Len() == 0 {
		return nil, errors.New("cannot fit a preprocessor on an empty frame")
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeDisjoint
	}
	if mode != ModeJoint && mode != ModeDisjoint {
		return nil, fmt.Errorf("unknown preprocessing mode %q", mode)
	}

	p := &Preprocessor{Mode: mode}
	for _, name := range x.Header {
		cells, _ := x.Column(name)
		if numericColumn(cells) {
			p.Numeric = append(p.Numeric, fitNumeric(name, cells))
		} else {
			p.Categorical = append(p.Categorical, fitCategorical(name, cells))
		}
	}
	for _, c := range p.Numeric {
		p.Features = append(p.Features, c.Name)
	}
	for _, c := range p.Categorical {
		for _, cat := range c.Categories {
			p.Features = append(p.Features, c.Name+"_"+cat)
		}
	}

	if mode == ModeDisjoint {
		return p, nil
	}
	if len(y) != x.Len() {
		return nil, fmt.Errorf("joint mode needs one target per row: have %d rows and %d targets", x.Len(), len(y))
	}
	full, err := p.expand(x)
	if err != nil {
		return nil, err
	}
	keep := opts.NFeatures
	if keep <= 0 {
		keep = len(p.Features) / 2
	}
	keep = max(1, min(keep, len(p.Features)))
	selected, err := eliminate(full, y, keep)
	if err != nil {
		return nil, err
	}
	p.Selected = selected
	return p, nil
}

// OutputNames lists the names of the columns Transform produces.
func (p *Preprocessor) OutputNames() []string {
	if len(p.Selected) == 0 {
		return append([]string(nil), p.Features...)
	}
	out := make([]string, len(p.Selected))
	for i, idx := range p.Selected {
		out[i] = p.Features[idx]
	}
	return out
}

// Transform applies the fitted steps. Columns are looked up by name; extra columns are ignored.
func (p *Preprocessor) Transform(x *dataset.Frame) (*mat.Dense, error) {
	full, err := p.expand(x)
	if err != nil {
		return nil, err
	}
	if len(p.Selected) == 0 {
		return full, nil
	}
	return columns(full, p.Selected), nil
}

func (p *Preprocessor) expand(x *dataset.Frame) (*mat.Dense, error) {
	n := x.Len()
	if n == 0 {
		return nil, errors.New("no rows to transform")
	}
	out := mat.NewDense(n, len(p.Features), nil)
	col := 0
	for _, c := range p.Numeric {
		cells, err := x.Column(c.Name)
		if err != nil {
			return nil, err
		}
		for i, cell := range cells {
			v := c.Mean
			if s := strings.TrimSpace(cell); s != "" {
				if v, err = strconv.ParseFloat(s, 64); err != nil {
					return nil, fmt.Errorf("column %s row %d: %w", c.Name, i+1, err)
				}
			}
			out.Set(i, col, (v-c.Mean)/c.Scale)
		}
		col++
	}
	for _, c := range p.Categorical {
		cells, err := x.Column(c.Name)
		if err != nil {
			return nil, err
		}
		for i, cell := range cells {
			v := strings.TrimSpace(cell)
			if v == "" {
				v = c.Fill
			}
			k := sort.SearchStrings(c.Categories, v)
			if k == len(c.Categories) || c.Categories[k] != v {
				return nil, fmt.Errorf("column %s row %d: %w %q", c.Name, i+1, ErrUnknownCategory, v)
			}
			out.Set(i, col+k, 1)
		}
		col += len(c.Categories)
	}
	return out, nil
}

// eliminate drops the feature with the smallest absolute ridge coefficient until keep remain.
func eliminate(x *mat.Dense, y []float64, keep int) ([]int, error) {
	_, d := x.Dims()
	active := make([]int, d)
	for j := range active {
		active[j] = j
	}
	for len(active) > keep {
		coef, _, err := ridge(columns(x, active), y, rfeAlpha)
		if err != nil {
			return nil, fmt.Errorf("feature elimination failed: %w", err)
		}
		weakest := 0
		for j := range coef {
			if math.Abs(coef[j]) < math.Abs(coef[weakest]) {
				weakest = j
			}
		}
		active = append(active[:weakest], active[weakest+1:]...)
	}
	return active, nil
}

func columns(x *mat.Dense, idx []int) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, len(idx), nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j, c := range idx {
			out.Set(i, j, row[c])
		}
	}
	return out
}

func numericColumn(cells []string) bool {
	for _, c := range cells {
		s := strings.TrimSpace(c)
		if s == "" {
			continue
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return false
		}
	}
	return true
}

func fitNumeric(name string, cells []string) NumericColumn {
	var present []float64
	for _, c := range cells {
		if s := strings.TrimSpace(c); s != "" {
			v, _ := strconv.ParseFloat(s, 64)
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return NumericColumn{Name: name, Scale: 1}
	}
	mean := stat.Mean(present, nil)
	imputed := make([]float64, len(cells))
	for i, c := range cells {
		imputed[i] = mean
		if s := strings.TrimSpace(c); s != "" {
			imputed[i], _ = strconv.ParseFloat(s, 64)
		}
	}
	_, variance := stat.PopMeanVariance(imputed, nil)
	scale := math.Sqrt(variance)
	if scale == 0 || math.IsNaN(scale) {
		scale = 1
	}
	return NumericColumn{Name: name, Mean: mean, Scale: scale}
}

func fitCategorical(name string, cells []string) CategoricalColumn {
	counts := make(map[string]int)
	for _, c := range cells {
		if s := strings.TrimSpace(c); s != "" {
			counts[s]++
		}
	}
	cats := make([]string, 0, len(counts))
	for k := range counts {
		cats = append(cats, k)
	}
	sort.Strings(cats)

	fill := ""
	for _, k := range cats {
		if fill == "" || counts[k] > counts[fill] {
			fill = k
		}
	}
	if len(cats) == 0 {
		cats = []string{""}
	}
	return CategoricalColumn{Name: name, Fill: fill, Categories: cats}
}

// Save writes the preprocessor as JSON, replacing path.
func (p *Preprocessor) Save(path string) error {
	return writeJSON(path, p)
}

// LoadPreprocessor reads a preprocessor written by Save.
func LoadPreprocessor(path string) (*Preprocessor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Preprocessor
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode preprocessor %s: %w", path, err)
	}
	if len(p.Features) == 0 {
		return nil, fmt.Errorf("preprocessor %s has no features", path)
	}
	return &p, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, data, 0644)
}
