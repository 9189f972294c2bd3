// Package stages implements the nine pipeline stages. Each stage gates its inputs,
// acts and persists its outputs, and is driven by the pipeline dispatcher.
package stages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"mlengine/pkg/config"
	"mlengine/pkg/gate"
	"mlengine/pkg/ingest"
	"mlengine/pkg/logx"
)

// DataIngestion downloads the dataset archive and extracts it.
type DataIngestion struct {
	cfg        config.DataIngestionConfig
	downloader *ingest.Downloader
	logger     *logx.Logger
}

// NewDataIngestion creates root_dir and prepares the stage.
// A nil downloader selects the default scheme set.
func NewDataIngestion(cfg config.DataIngestionConfig, downloader *ingest.Downloader) (*DataIngestion, error) {
	if err := os.MkdirAll(cfg.RootDir.String(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.RootDir, err)
	}
	if downloader == nil {
		downloader = ingest.NewDownloader()
	}
	return &DataIngestion{cfg: cfg, downloader: downloader, logger: logx.NewLogger("data_ingestion")}, nil
}

func (s *DataIngestion) Run(ctx context.Context) error {
	zipPath := s.cfg.ZipPath()
	_, err := os.Stat(zipPath)
	switch {
	case err == nil:
		s.logger.Info("File already exists: %s", zipPath)
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("Downloading %s to %s", s.cfg.SourceURL, zipPath)
		if err := s.downloader.Download(ctx, s.cfg.SourceURL, zipPath); err != nil {
			return err
		}
	default:
		return err
	}

	files, err := ingest.Unzip(zipPath, s.cfg.UnzipDir.String())
	if err != nil {
		return err
	}
	s.logger.Info("Extracted %d file(s) into %s", len(files), s.cfg.UnzipDir)

	return gate.Validate([]string{s.cfg.DataPath()}, s.cfg.RootDir.String(), s.cfg.StatusFile)
}
