package stages

import (
	"encoding/json"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"mlengine/pkg/dataset"
	"mlengine/pkg/ml"
	"mlengine/pkg/utils"
)

// splitInputs locates one feature file and its target file.
type splitInputs struct {
	X string
	Y string
}

// readTarget reads a single-column target file.
func readTarget(path string) ([]float64, error) {
	frame, err := dataset.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(frame.Header) != 1 {
		return nil, fmt.Errorf("%s: expected one target column, found %d", path, len(frame.Header))
	}
	return frame.Floats(frame.Header[0])
}

// loadFeatures reads X and y and applies a fitted preprocessor to X.
func loadFeatures(in splitInputs, prep *ml.Preprocessor) (*mat.Dense, []float64, error) {
	frame, err := dataset.ReadFile(in.X)
	if err != nil {
		return nil, nil, err
	}
	y, err := readTarget(in.Y)
	if err != nil {
		return nil, nil, err
	}
	if frame.Len() != len(y) {
		return nil, nil, fmt.Errorf("%s has %d rows but %s has %d", in.X, frame.Len(), in.Y, len(y))
	}
	x, err := prep.Transform(frame)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// writeJSON writes v as indented JSON with a trailing newline, replacing path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, append(data, '\n'), 0644)
}

func sortedNames(r Report) []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
