package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dirsync/internal/directorysync/metrics"
	"dirsync/internal/directorysync/models"
	dErrors "dirsync/pkg/domain-errors"
	audit "dirsync/pkg/platform/audit"
	"dirsync/pkg/platform/sentinel"
)

const (
	defaultProgressEvery = 1000
	tracerName           = "dirsync/directorysync"
)

// Reconciler is the per-record engine the driver feeds.
type Reconciler interface {
	Reconcile(ctx context.Context, settings *models.Settings, c Candidate) models.Outcome
	Record(ctx context.Context, c Candidate, o models.Outcome)
}

// SettingsSource hands out the settings snapshot for a run.
type SettingsSource interface {
	Load() *models.Settings
}

// Driver runs whole import and refresh passes over the directory.
type Driver struct {
	directory      DirectoryClient
	users          UserStore
	reconciler     Reconciler
	settings       SettingsSource
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	progressEvery  int
	now            func() time.Time
}

type DriverOption func(d *Driver)

func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

func WithDriverMetrics(m *metrics.Metrics) DriverOption {
	return func(d *Driver) {
		d.metrics = m
	}
}

func WithDriverAuditPublisher(publisher AuditPublisher) DriverOption {
	return func(d *Driver) {
		d.auditPublisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) DriverOption {
	return func(d *Driver) {
		d.tracer = tracer
	}
}

// WithProgressEvery sets how many records pass between progress log lines.
func WithProgressEvery(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.progressEvery = n
		}
	}
}

// NewDriver constructs a Driver.
func NewDriver(directory DirectoryClient, users UserStore, reconciler Reconciler, settings SettingsSource, opts ...DriverOption) (*Driver, error) {
	if directory == nil || users == nil || reconciler == nil || settings == nil {
		return nil, errors.New("directory client, user store, reconciler and settings are required")
	}
	d := &Driver{
		directory:     directory,
		users:         users,
		reconciler:    reconciler,
		settings:      settings,
		progressEvery: defaultProgressEvery,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d, nil
}

// Run is the full sync: snapshot linked users, import new ones, refresh the
// snapshot. Disabled settings make it a no-op. Only directory unavailability and
// search failures return an error; record problems are counted in the report.
func (d *Driver) Run(ctx context.Context, trigger string) (*models.RunReport, error) {
	settings := d.settings.Load()
	report := d.newReport(trigger)
	if !settings.Enabled {
		report.Skipped = true
		report.FinishedAt = d.now()
		d.logger.InfoContext(ctx, "directory sync disabled, skipping run", "run_id", report.RunID, "trigger", trigger)
		d.recordRun(report, "skipped")
		return report, nil
	}

	ctx, span := d.startSpan(ctx, "directorysync.run", report)
	defer span.End()
	start := d.now()
	d.logger.InfoContext(ctx, "directory sync started", "run_id", report.RunID, "trigger", trigger)

	session, err := d.connect(ctx)
	if err != nil {
		return d.fail(ctx, span, report, err)
	}
	defer d.closeSession(ctx, session, report.RunID)

	var linked []*models.LocalUser
	if settings.KeepExistingUsersUpdated {
		linked, err = d.users.ListDirectoryUsers(ctx)
		if err != nil {
			return d.fail(ctx, span, report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list directory users"))
		}
	}

	if settings.ImportNewUsers {
		report.Import, err = d.importWith(ctx, session, settings, report.RunID)
		if err != nil {
			return d.fail(ctx, span, report, err)
		}
	}

	if settings.KeepExistingUsersUpdated {
		report.Refresh = d.refreshWith(ctx, session, settings, report.RunID, linked)
	}

	if d.metrics != nil {
		d.metrics.ObservePhase("run", start)
	}
	return d.succeed(ctx, report), nil
}

// Import streams every directory record through the reconciler in import mode.
func (d *Driver) Import(ctx context.Context, trigger string) (*models.RunReport, error) {
	settings := d.settings.Load()
	report := d.newReport(trigger)
	if !settings.Enabled {
		report.Skipped = true
		report.FinishedAt = d.now()
		d.recordRun(report, "skipped")
		return report, nil
	}

	ctx, span := d.startSpan(ctx, "directorysync.import_only", report)
	defer span.End()

	session, err := d.connect(ctx)
	if err != nil {
		return d.fail(ctx, span, report, err)
	}
	defer d.closeSession(ctx, session, report.RunID)

	report.Import, err = d.importWith(ctx, session, settings, report.RunID)
	if err != nil {
		return d.fail(ctx, span, report, err)
	}
	return d.succeed(ctx, report), nil
}

// Refresh fetches each linked user from the directory and reconciles it in refresh
// mode. Users missing from the directory are skipped, never fatal.
func (d *Driver) Refresh(ctx context.Context, users []*models.LocalUser) (*models.RunStats, error) {
	settings := d.settings.Load()
	if !settings.Enabled {
		return models.NewRunStats(), nil
	}
	session, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer d.closeSession(ctx, session, "")
	return d.refreshWith(ctx, session, settings, "", users), nil
}

func (d *Driver) importWith(ctx context.Context, session DirectorySession, settings *models.Settings, runID string) (*models.RunStats, error) {
	ctx, span := d.tracer.Start(ctx, "directorysync.import")
	defer span.End()
	start := d.now()

	stats := models.NewRunStats()
	err := session.SearchAll(ctx, func(page []*models.DirectoryRecord) error {
		for _, record := range page {
			outcome := d.reconciler.Reconcile(ctx, settings, Candidate{
				Record: record,
				Mode:   models.ModeImport,
				RunID:  runID,
			})
			stats.Record(outcome)
			d.logProgress(ctx, "import", runID, stats.Processed)
		}
		return ctx.Err()
	})
	span.SetAttributes(attribute.Int("records", stats.Processed))
	if d.metrics != nil {
		d.metrics.ObservePhase("import", start)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directory search failed")
		return stats, dErrors.Wrap(err, dErrors.CodeUnavailable, "directory search failed")
	}

	d.logger.InfoContext(ctx, "directory import finished",
		"run_id", runID,
		"processed", stats.Processed,
		"created", stats.Created,
		"merged", stats.Merged,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (d *Driver) refreshWith(ctx context.Context, session DirectorySession, settings *models.Settings, runID string, users []*models.LocalUser) *models.RunStats {
	ctx, span := d.tracer.Start(ctx, "directorysync.refresh")
	defer span.End()
	start := d.now()

	stats := models.NewRunStats()
	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		stats.Record(d.refreshOne(ctx, session, settings, runID, user))
		d.logProgress(ctx, "refresh", runID, stats.Processed)
	}

	span.SetAttributes(attribute.Int("users", stats.Processed))
	if d.metrics != nil {
		d.metrics.ObservePhase("refresh", start)
	}
	d.logger.InfoContext(ctx, "directory refresh finished",
		"run_id", runID,
		"processed", stats.Processed,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats
}

func (d *Driver) refreshOne(ctx context.Context, session DirectorySession, settings *models.Settings, runID string, user *models.LocalUser) models.Outcome {
	var (
		record *models.DirectoryRecord
		err    error
	)
	if stored := user.StoredIdentity(); stored != nil {
		record, err = session.GetByID(ctx, stored.Value, stored.Attribute)
	} else {
		record, err = session.GetByUsername(ctx, user.Username)
	}

	c := Candidate{Mode: models.ModeRefresh, Known: user, RunID: runID}
	if err != nil {
		outcome := models.Failed(models.ReasonDirectory, err)
		if errors.Is(err, sentinel.ErrNotFound) {
			d.logger.WarnContext(ctx, "can't sync user, not found in directory",
				"run_id", runID,
				"user_id", user.ID,
				"username", user.Username,
			)
			outcome = models.Skipped(models.ReasonNotFound)
		}
		outcome.UserID = user.ID
		d.reconciler.Record(ctx, c, outcome)
		return outcome
	}

	c.Record = record
	return d.reconciler.Reconcile(ctx, settings, c)
}

func (d *Driver) connect(ctx context.Context) (DirectorySession, error) {
	session, err := d.directory.Connect(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "directory unavailable")
	}
	return session, nil
}

func (d *Driver) closeSession(ctx context.Context, session DirectorySession, runID string) {
	if err := session.Close(); err != nil {
		d.logger.WarnContext(ctx, "failed to close directory session", "run_id", runID, "error", err)
	}
}

func (d *Driver) logProgress(ctx context.Context, phase, runID string, processed int) {
	if processed%d.progressEvery == 0 {
		d.logger.InfoContext(ctx, "directory sync progress",
			"run_id", runID,
			"phase", phase,
			"processed", processed,
		)
	}
}

func (d *Driver) newReport(trigger string) *models.RunReport {
	return &models.RunReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: d.now(),
	}
}

func (d *Driver) startSpan(ctx context.Context, name string, report *models.RunReport) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("dirsync.run_id", report.RunID),
		attribute.String("dirsync.trigger", report.Trigger),
	))
}

func (d *Driver) fail(ctx context.Context, span trace.Span, report *models.RunReport, err error) (*models.RunReport, error) {
	report.FinishedAt = d.now()
	report.Error = err.Error()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	d.logger.ErrorContext(ctx, "directory sync failed",
		"run_id", report.RunID,
		"trigger", report.Trigger,
		"error", err,
	)
	d.recordRun(report, "failed")
	d.emit(ctx, report, audit.EventDirectorySyncFailed)
	return report, err
}

func (d *Driver) succeed(ctx context.Context, report *models.RunReport) *models.RunReport {
	report.FinishedAt = d.now()
	d.logger.InfoContext(ctx, "directory sync finished",
		"run_id", report.RunID,
		"trigger", report.Trigger,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	d.recordRun(report, "success")
	d.emit(ctx, report, audit.EventDirectorySyncCompleted)
	return report
}

func (d *Driver) recordRun(report *models.RunReport, result string) {
	if d.metrics != nil {
		d.metrics.RecordRun(report.Trigger, result, report.FinishedAt)
	}
}

func (d *Driver) emit(ctx context.Context, report *models.RunReport, event audit.AuditEvent) {
	if d.auditPublisher == nil {
		return
	}
	decision := "success"
	if report.Error != "" {
		decision = "failed"
	}
	err := d.auditPublisher.Emit(ctx, audit.Event{
		Action:   string(event),
		RunID:    report.RunID,
		Subject:  report.Trigger,
		Decision: decision,
		Reason:   report.Error,
	})
	if err != nil {
		d.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
	}
}
