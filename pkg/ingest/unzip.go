package ingest

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeEntry is returned for archive members that would land outside the target directory.
var ErrUnsafeEntry = errors.New("archive entry escapes target directory")

// Unzip extracts every member of archive into dir, overwriting existing files.
// It returns the extracted file paths in archive order.
func Unzip(archive, dir string) ([]string, error) {
	r, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = r.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsafeEntry, archive)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer func() { _ = r.Close() }()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, member := range r.File {
		target := filepath.Join(root, filepath.FromSlash(member.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return nil, fmt.Errorf("%w: %s", ErrUnsafeEntry, member.Name)
		}
		if member.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, err
			}
			continue
		}
		if err := extract(member, target); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", member.Name, err)
		}
		files = append(files, filepath.Join(dir, filepath.FromSlash(member.Name)))
	}
	return files, nil
}

func extract(member *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
