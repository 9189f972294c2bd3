package stages

import (
	"context"
	"fmt"

	"mlengine/pkg/config"
	"mlengine/pkg/datacheck"
	"mlengine/pkg/gate"
	"mlengine/pkg/logx"
)

// DataValidation checks every row of a CSV file against a record schema and rules.
type DataValidation struct {
	cfg     config.DataValidationConfig
	checker *datacheck.Checker
	logger  *logx.Logger
}

// NewDataValidation compiles the schema for kind (datacheck.StudentRecord or
// datacheck.TransformedRecord) together with the configured row rules.
func NewDataValidation(cfg config.DataValidationConfig, kind string) (*DataValidation, error) {
	checker, err := datacheck.New(kind, cfg.Rules())
	if err != nil {
		return nil, err
	}
	return &DataValidation{cfg: cfg, checker: checker, logger: logx.NewLogger("data_validation")}, nil
}

func (s *DataValidation) Run(_ context.Context) error {
	if err := gate.Validate(s.cfg.RequiredFiles(), s.cfg.RootDir.String(), s.cfg.StatusFile); err != nil {
		return err
	}
	n, err := s.checker.CheckFile(s.cfg.DataFile.String())
	if err != nil {
		return fmt.Errorf("%s validation failed: %w", s.checker.Kind(), err)
	}
	s.logger.Info("Validated %d %s rows in %s", n, s.checker.Kind(), s.cfg.DataFile)
	return nil
}
