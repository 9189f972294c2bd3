package stages

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"mlengine/pkg/config"
	"mlengine/pkg/dataset"
	"mlengine/pkg/gate"
	"mlengine/pkg/logx"
)

// DataSplit separates features from the target and writes train, validate and test splits.
type DataSplit struct {
	cfg    config.DataSplitConfig
	target string
	logger *logx.Logger
}

func NewDataSplit(cfg config.DataSplitConfig, target string) *DataSplit {
	return &DataSplit{cfg: cfg, target: target, logger: logx.NewLogger("data_split")}
}

// SplitSizes returns the train, validate and test row counts for n rows.
// The held-out share is rounded up, then divided between test (rounded up) and validate.
func SplitSizes(n int, testSize, validateSize float64) (train, validate, test int) {
	hold := int(math.Ceil(testSize * float64(n)))
	hold = min(hold, n)
	test = int(math.Ceil(validateSize * float64(hold)))
	test = min(test, hold)
	return n - hold, hold - test, test
}

func (s *DataSplit) Run(_ context.Context) error {
	if err := gate.Validate(s.cfg.RequiredFiles(), s.cfg.RootDir.String(), s.cfg.StatusFile); err != nil {
		return err
	}
	frame, err := dataset.ReadFile(s.cfg.DataFile.String())
	if err != nil {
		return err
	}
	if dropped := s.cfg.Dropped(); len(dropped) > 0 {
		if frame, err = frame.Drop(dropped...); err != nil {
			return err
		}
	}
	y, err := frame.Select(s.target)
	if err != nil {
		return fmt.Errorf("target column: %w", err)
	}
	x, err := frame.Drop(s.target)
	if err != nil {
		return err
	}

	nTrain, nValidate, nTest := SplitSizes(frame.Len(), s.cfg.TestSize, s.cfg.ValidateSize)
	if nTrain == 0 || nTest == 0 {
		return errors.New("not enough rows to split: every split needs at least one row")
	}
	perm := rand.New(rand.NewSource(s.cfg.RandomState)).Perm(frame.Len())
	parts := [][]int{
		perm[:nTrain],
		perm[nTrain : nTrain+nValidate],
		perm[nTrain+nValidate:],
	}

	paths := s.cfg.SplitPaths()
	outputs := []*dataset.Frame{
		x.Take(parts[0]), x.Take(parts[1]), x.Take(parts[2]),
		y.Take(parts[0]), y.Take(parts[1]), y.Take(parts[2]),
	}
	for i, out := range outputs {
		if err := out.WriteFile(paths[i]); err != nil {
			return fmt.Errorf("failed to write %s: %w", paths[i], err)
		}
	}
	s.logger.Info("Split %d rows into train=%d validate=%d test=%d", frame.Len(), nTrain, nValidate, nTest)
	return nil
}
