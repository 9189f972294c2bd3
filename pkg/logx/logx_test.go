package logx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestLogger sets up a logger with a bytes.Buffer for testing.
func setupTestLogger() *bytes.Buffer {
	var buf bytes.Buffer
	SetOutput(&buf)
	return &buf
}

// resetTestLogger resets the logger to default stderr.
func resetTestLogger() {
	SetOutput(nil)
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("runner")

	if logger.Component() != "runner" {
		t.Errorf("Expected component 'runner', got '%s'", logger.Component())
	}
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	logger := NewLogger("dispatcher")
	logger.Info("Test message with %s", "formatting")

	output := buf.String()

	if !strings.Contains(output, "[dispatcher]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected log level in output, got: %s", output)
	}
	if !strings.Contains(output, "Test message with formatting") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	logger := NewLogger("test")

	tests := []struct {
		level    Level
		logFunc  func(string, ...any)
		expected string
	}{
		{LevelDebug, logger.Debug, "DEBUG"},
		{LevelInfo, logger.Info, "INFO"},
		{LevelWarn, logger.Warn, "WARN"},
		{LevelError, logger.Error, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := setupTestLogger()
			defer resetTestLogger()

			if tt.level == LevelDebug {
				SetDebug(true)
				defer SetDebug(false)
			}

			tt.logFunc("test message")

			assert.Contains(t, buf.String(), tt.expected)
		})
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	SetDebug(false)
	NewLogger("quiet").Debug("hidden")

	assert.Empty(t, buf.String())
}

func TestWithComponent(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	original := NewLogger("stages")
	derived := original.WithComponent("stages.split")

	original.Info("one")
	derived.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[stages]")
	assert.Contains(t, lines[1], "[stages.split]")
	assert.Equal(t, "stages", original.Component())
}

func TestTimestampFormat(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	NewLogger("test").Info("timestamp test")

	output := buf.String()
	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if start == -1 || end == -1 || end <= start {
		t.Fatalf("Could not find timestamp in output: %s", output)
	}

	_, err := time.Parse(TimestampFormat, output[start+1:end])
	assert.NoError(t, err)
}

func TestInitializeLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	path, err := InitializeLogFile(dir, false)
	require.NoError(t, err)
	defer func() { _ = CloseLogFile() }()

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".log"))

	NewLogger("file").Info("written to file")
	require.NoError(t, CloseLogFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[file] INFO: written to file")
}

func TestWrap(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	base := errors.New("boom")
	err := Wrap(base, "load settings")

	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "load settings: boom", err.Error())
	assert.Contains(t, buf.String(), "load settings: boom")
	assert.NoError(t, Wrap(nil, "ignored"))
}
