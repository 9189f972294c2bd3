package stages

import (
	"context"
	"fmt"

	"mlengine/pkg/config"
	"mlengine/pkg/dataset"
	"mlengine/pkg/gate"
	"mlengine/pkg/logx"
	"mlengine/pkg/ml"
)

// ModelPreprocessing fits the feature pipeline on the training split.
type ModelPreprocessing struct {
	cfg    config.PreprocessingConfig
	train  splitInputs
	logger *logx.Logger
}

func NewModelPreprocessing(cfg config.PreprocessingConfig, xTrain, yTrain string) *ModelPreprocessing {
	return &ModelPreprocessing{
		cfg:    cfg,
		train:  splitInputs{X: xTrain, Y: yTrain},
		logger: logx.NewLogger("model_preprocessing"),
	}
}

func (s *ModelPreprocessing) Run(_ context.Context) error {
	if err := gate.Validate(s.cfg.RequiredFiles(), s.cfg.RootDir.String(), s.cfg.StatusFile); err != nil {
		return err
	}
	x, err := dataset.ReadFile(s.train.X)
	if err != nil {
		return err
	}
	var y []float64
	if s.cfg.Mode == config.PrepModeJoint {
		if y, err = readTarget(s.train.Y); err != nil {
			return err
		}
	}

	prep, err := ml.FitPreprocessor(x, y, ml.PrepOptions{Mode: s.cfg.Mode, NFeatures: s.cfg.NFeaturesToSelect})
	if err != nil {
		return fmt.Errorf("failed to fit preprocessor: %w", err)
	}
	if err := prep.Save(s.cfg.PipelinePath()); err != nil {
		return fmt.Errorf("failed to save preprocessor: %w", err)
	}
	s.logger.Info("Saved %s preprocessor with %d output features to %s", prep.Mode, len(prep.OutputNames()), s.cfg.PipelinePath())
	return nil
}
