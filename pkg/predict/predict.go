// Package predict serves single predictions from the persisted preprocessor and best model.
package predict

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mlengine/pkg/config"
	"mlengine/pkg/dataset"
	"mlengine/pkg/faults"
	"mlengine/pkg/ml"
)

// ErrInvalidScore is returned by ParseScore for values that are not numbers in [0, 100].
var ErrInvalidScore = errors.New("score must be a number between 0 and 100")

// ErrInvalidInput marks requests the fitted preprocessor cannot encode.
var ErrInvalidInput = errors.New("invalid prediction input")

// StudentFeatures is one prediction request.
type StudentFeatures struct {
	Gender                   string
	RaceEthnicity            string
	ParentalLevelOfEducation string
	Lunch                    string
	TestPreparationCourse    string
	ReadingScore             float64
	WritingScore             float64
}

func (f StudentFeatures) cells() map[string]string {
	return map[string]string{
		"gender":                      f.Gender,
		"race_ethnicity":              f.RaceEthnicity,
		"parental_level_of_education": f.ParentalLevelOfEducation,
		"lunch":                       f.Lunch,
		"test_preparation_course":     f.TestPreparationCourse,
		"reading_score":               strconv.FormatFloat(f.ReadingScore, 'f', -1, 64),
		"writing_score":               strconv.FormatFloat(f.WritingScore, 'f', -1, 64),
	}
}

// ParseScore parses a form score.
func ParseScore(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScore, s)
	}
	return v, nil
}

// Service predicts math scores. It is safe for concurrent use after construction.
type Service struct {
	prep  *ml.Preprocessor
	model *ml.Model
}

// NewService loads the artifacts written by the preprocessing and testing stages.
func NewService(s *config.Settings) (*Service, error) {
	return Load(s.ModelPreprocessing.PipelinePath(), s.ModelTesting.BestModelPath())
}

// Load reads a preprocessor and a model. Any failure is reported as PRD_EX_001.
func Load(prepPath, modelPath string) (*Service, error) {
	prep, err := ml.LoadPreprocessor(prepPath)
	if err != nil {
		return nil, artifactsMissing(err)
	}
	model, err := ml.LoadModel(modelPath)
	if err != nil {
		return nil, artifactsMissing(err)
	}
	return &Service{prep: prep, model: model}, nil
}

func artifactsMissing(err error) error {
	return &faults.CodedError{
		Code:    faults.CodePredictionArtifacts,
		Message: "Model file or preprocessor file missing.",
		Err:     err,
	}
}

// ModelName is the display name of the loaded model.
func (s *Service) ModelName() string {
	return s.model.Name
}

// Predict runs one record through the preprocessor and the model.
func (s *Service) Predict(f StudentFeatures) (float64, error) {
	cells := f.cells()
	var header []string
	for _, c := range s.prep.Numeric {
		header = append(header, c.Name)
	}
	for _, c := range s.prep.Categorical {
		header = append(header, c.Name)
	}
	row := make([]string, len(header))
	for i, name := range header {
		v, ok := cells[name]
		if !ok {
			return 0, fmt.Errorf("preprocessor expects unknown input %q", name)
		}
		row[i] = v
	}

	frame, err := dataset.New(header, [][]string{row})
	if err != nil {
		return 0, err
	}
	x, err := s.prep.Transform(frame)
	if errors.Is(err, ml.ErrUnknownCategory) {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return 0, err
	}
	pred, err := s.model.Predict(x)
	if err != nil {
		return 0, err
	}
	return pred[0], nil
}
