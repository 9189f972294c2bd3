package pipeline

import (
	"context"
	"fmt"

	"mlengine/pkg/config"
	"mlengine/pkg/datacheck"
	"mlengine/pkg/ingest"
	"mlengine/pkg/stages"
)

type constructor func(s *config.Settings, d *Dispatcher) (Stage, error)

// table maps every stage name to its constructor. Constructors may create directories,
// so lookups happen before any construction.
var table = map[StageName]constructor{
	DataIngestion: func(s *config.Settings, d *Dispatcher) (Stage, error) {
		return stages.NewDataIngestion(s.DataIngestion, d.downloader)
	},
	DataValidationPreT: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		return stages.NewDataValidation(s.DataValidationPreT, datacheck.StudentRecord)
	},
	DataTransformation: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		return stages.NewDataTransformation(s.DataTransformation), nil
	},
	DataValidationPostT: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		return stages.NewDataValidation(s.DataValidationPostT, datacheck.TransformedRecord)
	},
	DataSplit: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		return stages.NewDataSplit(s.DataSplit, s.Model.Target), nil
	},
	ModelPreprocessing: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		p := s.DataSplit.SplitPaths()
		return stages.NewModelPreprocessing(s.ModelPreprocessing, p[config.SplitXTrain], p[config.SplitYTrain]), nil
	},
	ModelTraining: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		p := s.DataSplit.SplitPaths()
		return stages.NewModelTraining(s.ModelTraining, s.Model.ModelType,
			p[config.SplitXTrain], p[config.SplitYTrain], s.ModelPreprocessing.PipelinePath()), nil
	},
	ModelValidation: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		p := s.DataSplit.SplitPaths()
		return stages.NewModelValidation(s.ModelValidation,
			p[config.SplitXValidate], p[config.SplitYValidate], s.ModelPreprocessing.PipelinePath()), nil
	},
	ModelTesting: func(s *config.Settings, _ *Dispatcher) (Stage, error) {
		p := s.DataSplit.SplitPaths()
		return stages.NewModelTesting(s.ModelTesting,
			p[config.SplitXTest], p[config.SplitYTest], s.ModelPreprocessing.PipelinePath()), nil
	},
}

// Dispatcher resolves stage names and runs them through a Runner.
// It keeps no state between calls.
type Dispatcher struct {
	settings   *config.Settings
	runner     *Runner
	downloader *ingest.Downloader
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRunner replaces the default runner.
func WithRunner(r *Runner) DispatcherOption {
	return func(d *Dispatcher) {
		d.runner = r
	}
}

// WithDownloader replaces the downloader used by the ingestion stage.
func WithDownloader(dl *ingest.Downloader) DispatcherOption {
	return func(d *Dispatcher) {
		d.downloader = dl
	}
}

// NewDispatcher binds the validated settings to the stage table.
func NewDispatcher(settings *config.Settings, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{settings: settings}
	for _, opt := range opts {
		opt(d)
	}
	if d.runner == nil {
		d.runner = NewRunner()
	}
	return d
}

// Runner returns the runner stages are executed with.
func (d *Dispatcher) Runner() *Runner {
	return d.runner
}

// Run constructs and executes the named stage inside the runner. Unknown names fail
// with faults.ErrInvalidOption before anything is constructed or logged.
func (d *Dispatcher) Run(ctx context.Context, name string) error {
	stageName, err := ParseStageName(name)
	if err != nil {
		return err
	}
	build, ok := table[stageName]
	if !ok {
		return fmt.Errorf("stage %s has no constructor", stageName)
	}
	stage := StageFunc(func(ctx context.Context) error {
		st, err := build(d.settings, d)
		if err != nil {
			return err
		}
		return st.Run(ctx)
	})
	return d.runner.execute(ctx, stageName, stageName.Label(), stage)
}

// RunAll runs names in the given order and stops at the first failure.
// Every name is validated before the first stage starts.
func (d *Dispatcher) RunAll(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := ParseStageName(name); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := d.Run(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
