package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Controller keeps the background job registration in line with the settings.
type Controller struct {
	ctx       context.Context
	scheduler Scheduler
	job       *Job
	logger    *slog.Logger

	mu       sync.Mutex
	interval string
}

// NewController binds scheduled runs to ctx.
func NewController(ctx context.Context, scheduler Scheduler, job *Job, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{ctx: ctx, scheduler: scheduler, job: job, logger: logger}
}

// Apply registers the sync job on interval when enabled and removes it otherwise.
// An invalid interval leaves the current registration untouched.
func (c *Controller) Apply(enabled bool, interval string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !enabled {
		if c.scheduler.IsScheduled(JobName) {
			c.scheduler.Deregister(JobName)
			c.logger.InfoContext(c.ctx, "background directory sync disabled")
		}
		c.interval = ""
		return nil
	}
	if interval == c.interval && c.scheduler.IsScheduled(JobName) {
		return nil
	}

	schedule, err := ParseInterval(interval)
	if err != nil {
		return err
	}
	if err := c.scheduler.Register(JobName, schedule, c.runScheduled); err != nil {
		return err
	}
	c.interval = interval
	c.logger.InfoContext(c.ctx, "background directory sync scheduled", "interval", interval)
	return nil
}

func (c *Controller) runScheduled() {
	_, err := c.job.Run(c.ctx, "schedule", ModeFull)
	if errors.Is(err, ErrRunInProgress) {
		c.logger.InfoContext(c.ctx, "skipping scheduled directory sync, a run is in progress")
	}
}
