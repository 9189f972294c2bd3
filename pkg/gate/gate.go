// Package gate checks that the files a stage depends on exist before the stage acts,
// and records the outcome in a status file next to the stage's artifacts.
package gate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mlengine/pkg/faults"
	"mlengine/pkg/logx"
)

// Result is the outcome for a single required file.
type Result struct {
	Path   string
	Exists bool
}

// Report is the outcome of a gate check.
type Report struct {
	Results    []Result
	StatusPath string
}

// OK reports whether every required file exists. An empty report passes.
func (r Report) OK() bool {
	for _, res := range r.Results {
		if !res.Exists {
			return false
		}
	}
	return true
}

// Missing returns the paths that failed the check.
func (r Report) Missing() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Exists {
			out = append(out, res.Path)
		}
	}
	return out
}

// Render formats the status file body: one line per file then the overall line.
// There is no trailing newline.
func (r Report) Render() string {
	lines := make([]string, 0, len(r.Results)+1)
	for _, res := range r.Results {
		lines = append(lines, fmt.Sprintf("Validation status: %s for file: %s", statusWord(res.Exists), res.Path))
	}
	lines = append(lines, fmt.Sprintf("Overall status: %s", statusWord(r.OK())))
	return strings.Join(lines, "\n")
}

func statusWord(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

var logger = logx.NewLogger("gate")

// Check creates rootDir, tests every required file and writes the status file.
// Missing files are reported, not returned as errors; I/O failures are returned as is.
func Check(requiredFiles []string, rootDir, statusFileName string) (Report, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return Report{}, err
	}

	report := Report{
		Results:    make([]Result, 0, len(requiredFiles)),
		StatusPath: filepath.Join(rootDir, statusFileName),
	}
	for _, path := range requiredFiles {
		exists, err := isFile(path)
		if err != nil {
			return Report{}, err
		}
		logger.Info("Validation status: %s for file: %s", statusWord(exists), path)
		report.Results = append(report.Results, Result{Path: path, Exists: exists})
	}

	if err := os.WriteFile(report.StatusPath, []byte(report.Render()), 0644); err != nil {
		return Report{}, err
	}
	return report, nil
}

// Validate runs Check and fails with VLD_EX_001 when any required file is missing.
func Validate(requiredFiles []string, rootDir, statusFileName string) error {
	report, err := Check(requiredFiles, rootDir, statusFileName)
	if err != nil {
		return err
	}
	if report.OK() {
		return nil
	}
	return faults.MissingCriticalFile(faults.CodeMissingCriticalFile,
		fmt.Sprintf("Critical files are missing. Check the status file for details: %s", report.StatusPath))
}

// isFile follows symlinks; directories do not count.
func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}
