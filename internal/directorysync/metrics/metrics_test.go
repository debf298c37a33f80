package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"dirsync/internal/directorysync/models"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOutcome(models.ModeImport, models.Created("u1"))
	m.ObserveOutcome(models.ModeImport, models.Created("u2"))
	m.ObserveOutcome(models.ModeRefresh, models.Skipped(models.ReasonNotFound))
	m.ObserveOutcome(models.ModeImport, models.Failed(models.ReasonHostStore, errors.New("boom")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("import", "created", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("refresh", "skipped", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("import", "failed", "host_store")))

	finished := time.Unix(1_800_000_000, 0)
	m.RecordRun("schedule", "failed", finished)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccess))
	m.RecordRun("schedule", "success", finished)
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("schedule", "success")))
}

func TestNewOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
