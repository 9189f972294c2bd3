package stages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"mlengine/pkg/config"
	"mlengine/pkg/faults"
	"mlengine/pkg/gate"
	"mlengine/pkg/logx"
	"mlengine/pkg/ml"
)

// Report maps model display names to their scores.
type Report map[string]ml.Scores

// ModelValidation scores every trained model on the validation split.
type ModelValidation struct {
	cfg      config.EvaluationConfig
	split    splitInputs
	prepPath string
	logger   *logx.Logger
}

func NewModelValidation(cfg config.EvaluationConfig, xValidate, yValidate, prepPath string) *ModelValidation {
	return &ModelValidation{
		cfg:      cfg,
		split:    splitInputs{X: xValidate, Y: yValidate},
		prepPath: prepPath,
		logger:   logx.NewLogger("model_validation"),
	}
}

func (s *ModelValidation) Run(_ context.Context) error {
	_, _, err := evaluate(s.cfg, s.split, s.prepPath, s.logger)
	return err
}

// ModelTesting scores every trained model on the test split and keeps the best one.
type ModelTesting struct {
	cfg      config.TestingConfig
	split    splitInputs
	prepPath string
	logger   *logx.Logger
}

func NewModelTesting(cfg config.TestingConfig, xTest, yTest, prepPath string) *ModelTesting {
	return &ModelTesting{
		cfg:      cfg,
		split:    splitInputs{X: xTest, Y: yTest},
		prepPath: prepPath,
		logger:   logx.NewLogger("model_testing"),
	}
}

func (s *ModelTesting) Run(_ context.Context) error {
	report, models, err := evaluate(s.cfg.EvaluationConfig, s.split, s.prepPath, s.logger)
	if err != nil {
		return err
	}

	best := BestModel(report, s.cfg.SelectedTestMetric)
	for _, m := range models {
		if m.Name != best {
			continue
		}
		if err := ml.SaveModel(s.cfg.BestModelPath(), m); err != nil {
			return fmt.Errorf("failed to save best model: %w", err)
		}
		s.logger.Info("Best model by %s: %s (%+v), saved to %s", s.cfg.SelectedTestMetric, best, report[best], s.cfg.BestModelPath())
		return nil
	}
	return fmt.Errorf("best model %q not found among loaded models", best)
}

// BestModel picks the winner under metric. Names are visited in sorted order, so ties go
// to the alphabetically first model.
func BestModel(report Report, metric string) string {
	var (
		best  string
		score ml.Scores
	)
	for _, name := range sortedNames(report) {
		if best == "" || ml.Better(metric, report[name], score) {
			best, score = name, report[name]
		}
	}
	return best
}

func evaluate(cfg config.EvaluationConfig, split splitInputs, prepPath string, logger *logx.Logger) (Report, []*ml.Model, error) {
	if err := gate.Validate(cfg.RequiredFiles(), cfg.RootDir.String(), cfg.StatusFile); err != nil {
		return nil, nil, err
	}

	models, err := ml.LoadModels(cfg.ModelsDir.String())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}
	if len(models) == 0 {
		return nil, nil, faults.MissingCriticalFile(faults.CodeNoModels,
			fmt.Sprintf("No models found in %s. Run the model training stage first.", cfg.ModelsDir))
	}

	prep, err := ml.LoadPreprocessor(prepPath)
	if err != nil {
		return nil, nil, err
	}
	x, y, err := loadFeatures(split, prep)
	if err != nil {
		return nil, nil, err
	}

	report := make(Report, len(models))
	for _, m := range models {
		pred, err := m.Predict(x)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		scores, err := ml.Evaluate(y, pred)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		report[m.Name] = scores
		logger.Info("%s: RMSE=%.4f MAE=%.4f R2=%.4f", m.Name, scores.RMSE, scores.MAE, scores.R2)
	}

	if err := os.MkdirAll(cfg.RootDir.String(), 0755); err != nil {
		return nil, nil, err
	}
	if err := writeJSON(cfg.MetricsPath(), report); err != nil {
		return nil, nil, fmt.Errorf("failed to write metrics: %w", err)
	}
	return report, models, nil
}
