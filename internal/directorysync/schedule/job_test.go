package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsync/internal/directorysync/metrics"
	"dirsync/internal/directorysync/models"
)

type fakeRunner struct {
	release chan struct{}
	started chan string
	err     error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{started: make(chan string, 8)}
}

func (f *fakeRunner) run(trigger, mode string) (*models.RunReport, error) {
	f.started <- mode
	if f.release != nil {
		<-f.release
	}
	return &models.RunReport{RunID: mode + "-run", Trigger: trigger}, f.err
}

func (f *fakeRunner) Run(_ context.Context, trigger string) (*models.RunReport, error) {
	return f.run(trigger, "full")
}

func (f *fakeRunner) Import(_ context.Context, trigger string) (*models.RunReport, error) {
	return f.run(trigger, "import")
}

func TestJobRun(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the last report and selects the mode", func(t *testing.T) {
		runner := newFakeRunner()
		job := NewJob(runner, NewLocalLocker())

		report, err := job.Run(ctx, "manual", ModeImportOnly)

		require.NoError(t, err)
		assert.Equal(t, "import-run", report.RunID)
		assert.Equal(t, report, job.Last())
		assert.Equal(t, "import", <-runner.started)
		assert.False(t, job.Running())
	})

	t.Run("failed runs still record their report", func(t *testing.T) {
		runner := newFakeRunner()
		runner.err = errors.New("directory unavailable")
		job := NewJob(runner, NewLocalLocker())

		_, err := job.Run(ctx, "manual", ModeFull)

		assert.Error(t, err)
		require.NotNil(t, job.Last())
		assert.Equal(t, "full-run", job.Last().RunID)
	})

	t.Run("lock errors are unavailable", func(t *testing.T) {
		job := NewJob(newFakeRunner(), failingLocker{})

		_, err := job.Run(ctx, "manual", ModeFull)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrRunInProgress)
	})
}

type failingLocker struct{}

func (failingLocker) TryLock(context.Context, string, time.Duration) (Unlock, bool, error) {
	return nil, false, errors.New("redis: connection refused")
}

func TestJobStartRejectsOverlap(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	m := metrics.New(prometheus.NewRegistry())
	job := NewJob(runner, NewLocalLocker(), WithJobMetrics(m))

	require.NoError(t, job.Start(context.Background(), "admin", ModeFull))
	<-runner.started
	assert.True(t, job.Running())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunInProgress))

	err := job.Start(context.Background(), "admin", ModeFull)
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = job.Run(context.Background(), "schedule", ModeFull)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.release)
	job.Wait()

	assert.False(t, job.Running())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunInProgress))
	require.NoError(t, job.Start(context.Background(), "admin", ModeFull), "lock is released after the run")
	job.Wait()
}

func TestStartSurvivesCallerCancellation(t *testing.T) {
	runner := newFakeRunner()
	job := NewJob(runner, NewLocalLocker())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, job.Start(ctx, "admin", ModeFull))
	cancel()
	job.Wait()

	require.NotNil(t, job.Last())
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = l.TryLock(ctx, "other", time.Minute)
	assert.True(t, ok, "keys are independent")

	require.NoError(t, unlock(ctx))
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

type recordingScheduler struct {
	registered    map[string]cron.Schedule
	jobs          map[string]func()
	registrations int
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{registered: map[string]cron.Schedule{}, jobs: map[string]func(){}}
}

func (r *recordingScheduler) Register(name string, s cron.Schedule, job func()) error {
	r.registered[name] = s
	r.jobs[name] = job
	r.registrations++
	return nil
}

func (r *recordingScheduler) Deregister(name string) {
	delete(r.registered, name)
	delete(r.jobs, name)
}

func (r *recordingScheduler) IsScheduled(name string) bool {
	_, ok := r.registered[name]
	return ok
}

func TestControllerApply(t *testing.T) {
	sched := newRecordingScheduler()
	runner := newFakeRunner()
	job := NewJob(runner, NewLocalLocker())
	c := NewController(context.Background(), sched, job, nil)

	require.NoError(t, c.Apply(true, "Every 24 hours"))
	require.True(t, sched.IsScheduled(JobName))

	require.NoError(t, c.Apply(true, "Every 24 hours"))
	assert.Equal(t, 1, sched.registrations, "unchanged interval keeps the registration")

	assert.Error(t, c.Apply(true, "whenever"))
	assert.True(t, sched.IsScheduled(JobName), "invalid interval keeps the previous schedule")

	sched.jobs[JobName]()
	assert.Equal(t, "full", <-runner.started)
	assert.Equal(t, "schedule", job.Last().Trigger)

	require.NoError(t, c.Apply(false, "Every 24 hours"))
	assert.False(t, sched.IsScheduled(JobName))
}

func TestCronScheduler(t *testing.T) {
	s := NewCronScheduler(slogDiscard())
	every, err := ParseInterval("every 1 hour")
	require.NoError(t, err)

	require.NoError(t, s.Register(JobName, every, func() {}))
	require.NoError(t, s.Register(JobName, every, func() {}))
	assert.True(t, s.IsScheduled(JobName))
	assert.Len(t, s.cron.Entries(), 1, "re-registering replaces the entry")

	s.Deregister(JobName)
	assert.False(t, s.IsScheduled(JobName))
	assert.Empty(t, s.cron.Entries())
}
