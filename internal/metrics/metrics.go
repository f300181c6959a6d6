// Package metrics exposes prometheus counters and histograms for the
// write dispatcher and backup mirror: per-job success/failure counts
// and write latency, registered via promauto the way this stack's
// gateway layer registers its own metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder bundles the metrics the dispatcher and backup mirror emit.
type Recorder struct {
	jobsTotal    *prometheus.CounterVec
	writeLatency *prometheus.HistogramVec
}

// NewRecorder returns a Recorder whose metrics are registered against
// reg, or left unregistered if reg is nil. Production callers pass
// prometheus.DefaultRegisterer; tests pass a fresh
// prometheus.NewRegistry() to avoid collisions across test runs.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cubeplace_jobs_total",
			Help: "Total number of sub-array write jobs processed, by mode and outcome.",
		}, []string{"mode", "outcome"}),

		writeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cubeplace_write_duration_seconds",
			Help:    "Duration of individual sub-array write operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

// ObserveJob records one completed job's outcome and latency. A nil
// Recorder is a no-op, so callers that run without a registered
// Recorder (e.g. in unit tests) can pass nil unconditionally.
func (r *Recorder) ObserveJob(mode string, succeeded bool, duration time.Duration) {
	if r == nil {
		return
	}

	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}

	r.jobsTotal.WithLabelValues(mode, outcome).Inc()
	r.writeLatency.WithLabelValues(mode).Observe(duration.Seconds())
}
