package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlengine/pkg/logx"
	"mlengine/pkg/testkit"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// project writes a settings file under a fresh project dir and returns the dir.
func project(t *testing.T, sourceURL string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	root := t.TempDir()
	testkit.Settings(t, root, sourceURL)
	path := filepath.Join(root, "config", "settings.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(testkit.SettingsYAML(root, sourceURL)), 0644))
	return root
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "mlengine dev"))
}

func TestUsageErrors(t *testing.T) {
	code, _, errOut := runCLI(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "Usage:")

	code, _, errOut = runCLI(t, "train")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, `unknown command "train"`)

	code, _, _ = runCLI(t, "run", "-nosuchflag")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "serve", "extra")
	assert.Equal(t, exitUsage, code)
}

func TestStages(t *testing.T) {
	code, out, _ := runCLI(t, "stages")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], "data_ingestion"))
	assert.Contains(t, lines[8], "Model Testing Stage")
}

func TestRunRejectsUnknownStage(t *testing.T) {
	root := project(t, "https://example.invalid/stud.zip")
	code, _, errOut := runCLI(t, "run", "-projectdir", root, "data_ingestion", "foo")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "Incorrect option: foo.")
	assert.NoDirExists(t, filepath.Join(root, "artifacts"))
	assert.NoDirExists(t, filepath.Join(root, "logs"))
}

func TestRunRejectsMalformedRowRule(t *testing.T) {
	srv := testkit.NewArchiveServer(nil)
	defer srv.Close()
	root := project(t, srv.ArchiveURL())
	path := filepath.Join(root, "config", "settings.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	broken := strings.Replace(string(data), `"row.total_score == row.math_score + row.reading_score + row.writing_score"`, `"row.total_score =="`, 1)
	require.NotEqual(t, string(data), broken)
	require.NoError(t, os.WriteFile(path, []byte(broken), 0644))

	code, _, errOut := runCLI(t, "run", "-projectdir", root)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "data_validation_post_t.row_rules")
	assert.Zero(t, srv.Hits())
	assert.NoDirExists(t, filepath.Join(root, "artifacts"))
}

type fakeDigester struct {
	digest string
	err    error
}

func (f fakeDigester) Digest() (string, error) { return f.digest, f.err }

func TestLogDigest(t *testing.T) {
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	t.Cleanup(func() { logx.SetOutput(nil) })
	logger := logx.NewLogger("mlengine")

	logDigest(logger, fakeDigester{digest: "abc123"})
	assert.Contains(t, buf.String(), "INFO: Settings digest abc123")

	buf.Reset()
	logDigest(logger, fakeDigester{err: errors.New("unsupported value")})
	assert.Contains(t, buf.String(), "WARN: Failed to compute settings digest: unsupported value")
}

func TestRunMissingSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	code, _, errOut := runCLI(t, "run", "-config", "missing.yaml", "data_split")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "missing.yaml")
}

func TestRunStages(t *testing.T) {
	archive, err := testkit.ZipArchive(map[string]string{"stud.csv": testkit.StudentCSV(40, 5)})
	require.NoError(t, err)
	srv := testkit.NewArchiveServer(archive)
	defer srv.Close()

	root := project(t, srv.ArchiveURL())
	code, _, errOut := runCLI(t, "run", "-projectdir", root, "data_ingestion", "data_validation_pre_t")
	require.Equal(t, exitOK, code, errOut)

	testkit.AssertStatusFile(t, filepath.Join(root, "artifacts", "data_validation_pre_t", "status.txt"), 1, true)
	logs, err := os.ReadDir(filepath.Join(root, "logs"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NoError(t, os.Remove(filepath.Join(root, "artifacts", "data_ingestion", "stud.csv")))
	code, _, errOut = runCLI(t, "run", "-projectdir", root, "data_validation_pre_t")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "VLD_EX_001")
}

func TestServeWithoutArtifacts(t *testing.T) {
	root := project(t, "https://example.invalid/stud.zip")
	code, _, errOut := runCLI(t, "serve", "-projectdir", root, "-addr", "127.0.0.1:0")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "PRD_EX_001")
}
