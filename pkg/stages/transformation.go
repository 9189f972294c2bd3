package stages

import (
	"context"
	"fmt"
	"strconv"

	"mlengine/pkg/config"
	"mlengine/pkg/dataset"
	"mlengine/pkg/gate"
	"mlengine/pkg/logx"
)

// Derived column names.
const (
	TotalScoreColumn = "total_score"
	AverageColumn    = "average"
)

var scoreColumns = []string{"math_score", "reading_score", "writing_score"}

// DataTransformation adds the total and average score columns.
type DataTransformation struct {
	cfg    config.DataTransformationConfig
	logger *logx.Logger
}

func NewDataTransformation(cfg config.DataTransformationConfig) *DataTransformation {
	return &DataTransformation{cfg: cfg, logger: logx.NewLogger("data_transformation")}
}

func (s *DataTransformation) Run(_ context.Context) error {
	if err := gate.Validate(s.cfg.RequiredFiles(), s.cfg.RootDir.String(), s.cfg.StatusFile); err != nil {
		return err
	}
	frame, err := dataset.ReadFile(s.cfg.DataFile.String())
	if err != nil {
		return err
	}

	totals := make([]float64, frame.Len())
	for _, col := range scoreColumns {
		values, err := frame.Floats(col)
		if err != nil {
			return err
		}
		for i, v := range values {
			totals[i] += v
		}
	}

	totalCells := make([]string, len(totals))
	averageCells := make([]string, len(totals))
	for i, t := range totals {
		totalCells[i] = strconv.FormatFloat(t, 'f', -1, 64)
		averageCells[i] = dataset.FormatFloat(t / float64(len(scoreColumns)))
	}

	out, err := frame.WithColumn(TotalScoreColumn, totalCells)
	if err != nil {
		return err
	}
	if out, err = out.WithColumn(AverageColumn, averageCells); err != nil {
		return err
	}
	if err := out.WriteFile(s.cfg.DataFileTransformed.String()); err != nil {
		return fmt.Errorf("failed to write transformed data: %w", err)
	}
	s.logger.Info("Wrote %d transformed rows to %s", out.Len(), s.cfg.DataFileTransformed)
	return nil
}
