package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"dirsync/internal/directorysync/metrics"
	"dirsync/internal/directorysync/models"
	dErrors "dirsync/pkg/domain-errors"
)

const (
	// JobName is the well-known name of the background directory sync.
	JobName = "directory_sync"

	lockKey        = "dirsync:lock:" + JobName
	defaultLockTTL = time.Hour
)

// Mode selects which driver entry point a run uses.
type Mode string

const (
	ModeFull       Mode = "full"
	ModeImportOnly Mode = "import"
)

// Runner is the sync driver.
type Runner interface {
	Run(ctx context.Context, trigger string) (*models.RunReport, error)
	Import(ctx context.Context, trigger string) (*models.RunReport, error)
}

// ErrRunInProgress is returned when another run holds the lock.
var ErrRunInProgress = dErrors.New(dErrors.CodeConflict, "a directory sync run is already in progress")

// Job runs the driver under the run lock and remembers the last report.
type Job struct {
	runner  Runner
	locker  Locker
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	last    *models.RunReport
	running bool
	wg      sync.WaitGroup
}

type JobOption func(j *Job)

func WithJobLogger(logger *slog.Logger) JobOption {
	return func(j *Job) {
		j.logger = logger
	}
}

func WithJobMetrics(m *metrics.Metrics) JobOption {
	return func(j *Job) {
		j.metrics = m
	}
}

// WithLockTTL bounds how long a run may hold the lock.
func WithLockTTL(ttl time.Duration) JobOption {
	return func(j *Job) {
		if ttl > 0 {
			j.ttl = ttl
		}
	}
}

func NewJob(runner Runner, locker Locker, opts ...JobOption) *Job {
	j := &Job{runner: runner, locker: locker, ttl: defaultLockTTL}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return j
}

// Run executes a run synchronously. It returns ErrRunInProgress without running
// when the lock is held.
func (j *Job) Run(ctx context.Context, trigger string, mode Mode) (*models.RunReport, error) {
	unlock, err := j.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return j.execute(ctx, trigger, mode, unlock)
}

// Start takes the lock and runs in the background, detached from ctx cancellation.
func (j *Job) Start(ctx context.Context, trigger string, mode Mode) error {
	unlock, err := j.acquire(ctx)
	if err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		_, _ = j.execute(runCtx, trigger, mode, unlock)
	}()
	return nil
}

// Wait blocks until background runs finish.
func (j *Job) Wait() {
	j.wg.Wait()
}

// Last returns the report of the most recent finished run, or nil.
func (j *Job) Last() *models.RunReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

// Running reports whether this instance is executing a run.
func (j *Job) Running() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.running
}

func (j *Job) acquire(ctx context.Context) (Unlock, error) {
	unlock, ok, err := j.locker.TryLock(ctx, lockKey, j.ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to acquire run lock")
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	j.setRunning(true)
	return unlock, nil
}

func (j *Job) execute(ctx context.Context, trigger string, mode Mode, unlock Unlock) (*models.RunReport, error) {
	defer func() {
		j.setRunning(false)
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			j.logger.WarnContext(ctx, "failed to release run lock", "error", err)
		}
	}()

	run := j.runner.Run
	if mode == ModeImportOnly {
		run = j.runner.Import
	}
	report, err := run(ctx, trigger)
	if report != nil {
		j.mu.Lock()
		j.last = report
		j.mu.Unlock()
	}
	return report, err
}

func (j *Job) setRunning(running bool) {
	j.mu.Lock()
	j.running = running
	j.mu.Unlock()
	if j.metrics != nil {
		if running {
			j.metrics.RunInProgress.Set(1)
		} else {
			j.metrics.RunInProgress.Set(0)
		}
	}
}
