// Package metrics records stage outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"mlengine/pkg/pipeline"
	"mlengine/pkg/utils"
)

// Recorder implements pipeline.Hook using Prometheus metrics.
type Recorder struct {
	gatherer    prometheus.Gatherer
	runsTotal   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder registers the stage metrics with reg. A nil reg creates a private registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stage_runs_total",
				Help: "Total number of stage executions by stage and status",
			},
			[]string{"stage", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stage_duration_seconds",
				Help:    "Duration of stage executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stage_last_success_timestamp_seconds",
				Help: "Unix time of the last successful execution of each stage",
			},
			[]string{"stage"},
		),
	}
}

// StageFinished records one stage execution.
func (r *Recorder) StageFinished(_ context.Context, rec pipeline.Record) error {
	r.runsTotal.WithLabelValues(rec.Stage, rec.Status()).Inc()
	r.duration.WithLabelValues(rec.Stage).Observe(rec.Duration().Seconds())
	if rec.Err == nil {
		r.lastSuccess.WithLabelValues(rec.Stage).Set(float64(rec.Finished.UnixNano()) / 1e9)
	}
	return nil
}

// Gatherer exposes the registry for HTTP handlers.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// WriteTextfile writes the registry in text exposition format for a node_exporter
// textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	families, err := r.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	return utils.WriteAtomic(path, 0644, func(w io.Writer) error {
		enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
			}
		}
		return nil
	})
}
