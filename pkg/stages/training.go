package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"mlengine/pkg/config"
	"mlengine/pkg/gate"
	"mlengine/pkg/logx"
	"mlengine/pkg/ml"
	"mlengine/pkg/utils"
)

// ModelTraining searches hyperparameters for every configured model and saves the winners.
type ModelTraining struct {
	cfg       config.TrainingConfig
	modelType string
	train     splitInputs
	prepPath  string
	logger    *logx.Logger
}

func NewModelTraining(cfg config.TrainingConfig, modelType, xTrain, yTrain, prepPath string) *ModelTraining {
	return &ModelTraining{
		cfg:       cfg,
		modelType: modelType,
		train:     splitInputs{X: xTrain, Y: yTrain},
		prepPath:  prepPath,
		logger:    logx.NewLogger("model_training"),
	}
}

func (s *ModelTraining) Run(ctx context.Context) error {
	required := append(s.cfg.RequiredFiles(), s.cfg.ParamsFile.String())
	if err := gate.Validate(required, s.cfg.RootDir.String(), s.cfg.StatusFile); err != nil {
		return err
	}
	if s.modelType != config.ModelTypeRegression {
		return &config.LoadError{
			Kind:   config.ErrInvalid,
			Source: "model.model_type",
			Err:    fmt.Errorf("training supports %q models only, got %q", config.ModelTypeRegression, s.modelType),
		}
	}

	params, err := config.LoadParams(s.cfg.ParamsFile.String())
	if err != nil {
		return err
	}
	for _, name := range params.Models() {
		if !ml.Known(name) {
			return &config.LoadError{
				Kind:   config.ErrInvalid,
				Source: s.cfg.ParamsFile.String(),
				Err:    fmt.Errorf("%w: %q (known: %v)", ml.ErrUnknownModel, name, ml.Models()),
			}
		}
	}

	prep, err := ml.LoadPreprocessor(s.prepPath)
	if err != nil {
		return err
	}
	x, y, err := loadFeatures(s.train, prep)
	if err != nil {
		return err
	}

	// Models left over from an earlier params file must not reach evaluation.
	if err := utils.CleanDirectoryContents(s.cfg.ModelsDir.String()); err != nil {
		return err
	}
	for _, name := range params.Models() {
		spec := params[name]
		grid := spec.Grid()
		if name == ml.RandomForest {
			grid = withSeed(grid, s.cfg.RandomState)
		}
		res, err := ml.Search(ctx, name, x, y, ml.SearchOptions{
			Grid:   grid,
			Random: spec.Random(),
			NIter:  spec.NIter,
			Folds:  spec.CV,
			Seed:   s.cfg.RandomState,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		path := filepath.Join(s.cfg.ModelsDir.String(), ml.FileName(name))
		if err := ml.SaveModel(path, &ml.Model{Name: name, Params: res.Params, Regressor: res.Model}); err != nil {
			return fmt.Errorf("failed to save %s: %w", name, err)
		}
		s.logger.Info("%s: best cv R2 %.4f with %v, saved to %s", name, res.Score, res.Params, path)
	}
	return nil
}

// withSeed pins random_state in the grid unless the document already varies it.
func withSeed(grid map[string][]float64, seed int64) map[string][]float64 {
	if _, ok := grid["random_state"]; ok {
		return grid
	}
	out := make(map[string][]float64, len(grid)+1)
	for k, v := range grid {
		out[k] = v
	}
	out["random_state"] = []float64{float64(seed)}
	return out
}
