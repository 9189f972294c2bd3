// Package logx provides leveled, component-scoped logging for the pipeline.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Logger writes lines tagged with the component that produced them.
type Logger struct {
	component string
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// TimestampFormat is the UTC layout used for every log line.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// LogFileLayout names log files after the time the process started.
const LogFileLayout = "01_02_2006_15_04_05"

var levelColors = map[Level]string{
	LevelDebug: "\x1b[34m",
	LevelInfo:  "\x1b[32m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

//nolint:gochecknoglobals // process-wide sink shared by every component logger
var (
	logWriter     io.Writer // nil means stderr
	logWriterLock sync.Mutex
	logFile       *os.File
	useColor      bool

	debugEnabled bool
	debugMutex   sync.RWMutex
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
	useColor = term.IsTerminal(int(os.Stderr.Fd()))
}

// initDebugFromEnv enables debug output when DEBUG=1 or DEBUG=true.
func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debug := os.Getenv("DEBUG")
	debugEnabled = debug == "1" || strings.EqualFold(debug, "true")
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// SetDebug toggles debug output for all loggers.
func SetDebug(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugEnabled
}

// SetOutput redirects all log output to w. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	logWriterLock.Lock()
	defer logWriterLock.Unlock()
	logWriter = w
}

// InitializeLogFile creates logDir and routes output to a new timestamped log file inside it.
// With tee set, lines are mirrored to stderr as well.
func InitializeLogFile(logDir string, tee bool) (string, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	path := filepath.Join(logDir, time.Now().Format(LogFileLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logWriterLock.Lock()
	defer logWriterLock.Unlock()

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	if tee {
		logWriter = io.MultiWriter(f, os.Stderr)
	} else {
		logWriter = f
	}
	return path, nil
}

// CloseLogFile closes the file opened by InitializeLogFile and restores stderr output.
func CloseLogFile() error {
	logWriterLock.Lock()
	defer logWriterLock.Unlock()

	logWriter = nil
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format(TimestampFormat)
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] [%s] %s: %s\n", timestamp, l.component, level, message)

	logWriterLock.Lock()
	defer logWriterLock.Unlock()

	if logWriter == nil {
		writeConsole(os.Stderr, level, line)
		return
	}
	_, _ = io.WriteString(logWriter, line)
}

// writeConsole colours the line by level when stderr is a terminal.
func writeConsole(w io.Writer, level Level, line string) {
	if !useColor {
		_, _ = io.WriteString(w, line)
		return
	}
	_, _ = io.WriteString(w, levelColors[level]+strings.TrimSuffix(line, "\n")+colorReset+"\n")
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

func (l *Logger) Component() string {
	return l.component
}

// WithComponent returns a logger sharing the sink but tagged differently.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component}
}

// Global logging functions for convenience.
var defaultLogger = NewLogger("system")

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
//
//	err := logx.Errorf("setup failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}
