package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mlengine/pkg/faults"
	"mlengine/pkg/logx"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	t.Cleanup(func() { logx.SetOutput(nil) })
	return &buf
}

func TestRunnerBannersOnSuccess(t *testing.T) {
	logs := captureLogs(t)
	r := NewRunner(WithRunID("run-1"))

	err := r.Execute(context.Background(), StageFunc(func(context.Context) error { return nil }), "Demo Stage")
	require.NoError(t, err)

	out := logs.String()
	started := strings.Index(out, "===== Demo Stage started =====")
	completed := strings.Index(out, "===== Demo Stage completed =====")
	require.GreaterOrEqual(t, started, 0)
	require.Greater(t, completed, started)
	assert.Contains(t, out[completed:], strings.Repeat("*", 30))
	assert.Equal(t, "run-1", r.RunID())
}

func TestRunnerReturnsSameError(t *testing.T) {
	logs := captureLogs(t)
	want := faults.MissingCriticalFile(faults.CodeMissingCriticalFile, "Critical files are missing.")

	err := NewRunner().Execute(context.Background(), StageFunc(func(context.Context) error { return want }), "Demo Stage")
	assert.Same(t, want, err)

	out := logs.String()
	assert.Contains(t, out, "Demo Stage failed: [VLD_EX_001]")
	assert.NotContains(t, out, "completed")
}

func TestRunnerHooks(t *testing.T) {
	captureLogs(t)
	var got []Record
	record := HookFunc(func(_ context.Context, rec Record) error {
		got = append(got, rec)
		return nil
	})
	broken := HookFunc(func(context.Context, Record) error { return errors.New("sink down") })
	r := NewRunner(WithRunID("run-2"), WithHooks(broken, record))

	boom := errors.New("boom")
	require.NoError(t, r.execute(context.Background(), DataSplit, DataSplit.Label(), StageFunc(func(context.Context) error { return nil })))
	require.ErrorIs(t, r.execute(context.Background(), ModelTesting, ModelTesting.Label(), StageFunc(func(context.Context) error { return boom })), boom)

	require.Len(t, got, 2)
	assert.Equal(t, "data_split", got[0].Stage)
	assert.Equal(t, StatusSuccess, got[0].Status())
	assert.Equal(t, "run-2", got[0].RunID)
	assert.False(t, got[0].Finished.Before(got[0].Started))
	assert.Equal(t, StatusFailure, got[1].Status())
	assert.Equal(t, "", got[1].ErrorCode())
}

func TestRunnerSpans(t *testing.T) {
	captureLogs(t)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	r := NewRunner(WithRunID("run-3"), WithTracer(provider.Tracer("test")))

	missing := faults.MissingCriticalFile(faults.CodeNoModels, "No models found.")
	_ = r.execute(context.Background(), ModelValidation, ModelValidation.Label(), StageFunc(func(context.Context) error { return missing }))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "stage model_validation", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "model_validation", attrs["stage.name"])
	assert.Equal(t, "run-3", attrs["run.id"])
	assert.Equal(t, "VLD_EX_002", attrs["error.code"])
}
