package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlengine/pkg/pipeline"
)

func record(stage string, err error) pipeline.Record {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return pipeline.Record{
		RunID:    "run",
		Stage:    stage,
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Err:      err,
	}
}

func TestRecorderCountsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	ctx := context.Background()

	require.NoError(t, r.StageFinished(ctx, record("data_split", nil)))
	require.NoError(t, r.StageFinished(ctx, record("data_split", nil)))
	require.NoError(t, r.StageFinished(ctx, record("model_training", errors.New("boom"))))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("data_split", pipeline.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("model_training", pipeline.StatusFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.lastSuccess))

	finished := record("data_split", nil).Finished
	assert.InDelta(t, float64(finished.UnixNano())/1e9, testutil.ToFloat64(r.lastSuccess.WithLabelValues("data_split")), 1e-3)
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder(nil)
	require.NoError(t, r.StageFinished(context.Background(), record("data_ingestion", nil)))

	path := filepath.Join(t.TempDir(), "metrics", "mlengine.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE stage_runs_total counter")
	assert.Contains(t, text, `stage_runs_total{stage="data_ingestion",status="success"} 1`)
	assert.Contains(t, text, `stage_duration_seconds_sum{stage="data_ingestion"} 1.5`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))
}

func TestRecorderIsHook(t *testing.T) {
	var _ pipeline.Hook = NewRecorder(nil)
}
