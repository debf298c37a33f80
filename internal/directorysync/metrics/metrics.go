package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dirsync/internal/directorysync/models"
)

// Metrics provides observability for directory sync runs.
// Tracks per-record outcomes, run results and run durations.
type Metrics struct {
	RecordsProcessed *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	LastSuccess      prometheus.Gauge
	RunInProgress    prometheus.Gauge
}

// New registers the directory sync metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dirsync_records_total",
			Help: "Directory records reconciled, by sync mode, outcome and reason",
		}, []string{"mode", "outcome", "reason"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dirsync_runs_total",
			Help: "Sync runs by trigger and result (success, failed, skipped)",
		}, []string{"trigger", "result"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dirsync_run_duration_seconds",
			Help:    "Duration of sync phases (import, refresh, run)",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"phase"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dirsync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync run",
		}),
		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dirsync_run_in_progress",
			Help: "1 while a sync run holds the run lock",
		}),
	}
}

// ObserveOutcome counts one reconciled record.
func (m *Metrics) ObserveOutcome(mode models.SyncMode, o models.Outcome) {
	m.RecordsProcessed.WithLabelValues(string(mode), string(o.Kind), string(o.Reason)).Inc()
}

// ObservePhase records the duration of a phase.
// Call with time.Now() at the start of the phase.
func (m *Metrics) ObservePhase(phase string, start time.Time) {
	m.RunDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// RecordRun counts a finished run and stamps the last success time.
func (m *Metrics) RecordRun(trigger, result string, finished time.Time) {
	m.Runs.WithLabelValues(trigger, result).Inc()
	if result == "success" {
		m.LastSuccess.Set(float64(finished.Unix()))
	}
}
