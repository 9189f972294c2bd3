package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mlengine/pkg/faults"
	"mlengine/pkg/logx"
)

// Status values reported to hooks.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// separator closes every completed stage banner.
var separator = strings.Repeat("*", 30)

// Record describes one finished stage execution.
type Record struct {
	RunID    string
	Stage    string
	Label    string
	Started  time.Time
	Finished time.Time
	Err      error
}

// Duration is the wall time the stage took.
func (r Record) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Status is StatusSuccess or StatusFailure.
func (r Record) Status() string {
	if r.Err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// ErrorCode is the stable code of a coded failure, or "".
func (r Record) ErrorCode() string {
	return faults.CodeOf(r.Err)
}

// Hook observes finished stages. Hook errors are logged and never change the outcome.
type Hook interface {
	StageFinished(ctx context.Context, rec Record) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, rec Record) error

func (f HookFunc) StageFinished(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Runner executes stages one at a time, bracketing each with banner log lines.
type Runner struct {
	runID  string
	logger *logx.Logger
	tracer trace.Tracer
	hooks  []Hook
	now    func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithHooks appends hooks notified after every stage.
func WithHooks(hooks ...Hook) RunnerOption {
	return func(r *Runner) {
		r.hooks = append(r.hooks, hooks...)
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		r.runID = id
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// WithLogger overrides the runner's logger.
func WithLogger(l *logx.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner with a fresh run id.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		runID:  uuid.NewString(),
		logger: logx.NewLogger("runner"),
		tracer: otel.Tracer("mlengine/pipeline"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID identifies every stage executed by this runner.
func (r *Runner) RunID() string {
	return r.runID
}

// Execute runs stage under label. The stage's error is logged and returned unchanged.
func (r *Runner) Execute(ctx context.Context, stage Stage, label string) error {
	return r.execute(ctx, "", label, stage)
}

func (r *Runner) execute(ctx context.Context, name StageName, label string, stage Stage) error {
	stageID := name.String()
	if stageID == "" {
		stageID = label
	}

	ctx, span := r.tracer.Start(ctx, "stage "+stageID, trace.WithAttributes(
		attribute.String("stage.name", stageID),
		attribute.String("run.id", r.runID),
	))
	defer span.End()

	rec := Record{RunID: r.runID, Stage: stageID, Label: label, Started: r.now()}
	r.logger.Info("===== %s started =====", label)

	err := stage.Run(ctx)
	rec.Finished = r.now()
	rec.Err = err

	if err != nil {
		r.logger.Error("%s failed: %v", label, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := rec.ErrorCode(); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
	} else {
		r.logger.Info("===== %s completed =====", label)
		r.logger.Info("%s", separator)
		span.SetStatus(codes.Ok, "")
	}

	r.notify(ctx, rec)
	return err
}

func (r *Runner) notify(ctx context.Context, rec Record) {
	for _, h := range r.hooks {
		if hookErr := h.StageFinished(ctx, rec); hookErr != nil {
			r.logger.Warn("stage hook failed for %s: %v", rec.Stage, hookErr)
		}
	}
}
