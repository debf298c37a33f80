package service

import (
	"context"
	"errors"
	"strings"

	"dirsync/internal/directorysync/identity"
	"dirsync/internal/directorysync/models"
	dErrors "dirsync/pkg/domain-errors"
	audit "dirsync/pkg/platform/audit"
	"dirsync/pkg/platform/sentinel"
)

// Candidate is one directory record to reconcile. Known is the local user the
// record was fetched for during a refresh, nil on import.
type Candidate struct {
	Record *models.DirectoryRecord
	Mode   models.SyncMode
	Known  *models.LocalUser
	RunID  string
}

// Reconcile decides what one directory record means for the user store and applies
// it. Record-level problems are reported as the returned Outcome, never as a panic
// or an aborted batch.
func (s *Service) Reconcile(ctx context.Context, settings *models.Settings, c Candidate) models.Outcome {
	outcome := s.reconcile(ctx, settings, c)
	s.Record(ctx, c, outcome)
	return outcome
}

func (s *Service) reconcile(ctx context.Context, settings *models.Settings, c Candidate) models.Outcome {
	if settings.SyncUserData && settings.FieldMappingErr != nil {
		return models.Failed(models.ReasonConfiguration, settings.FieldMappingErr)
	}

	id, ok := identity.ResolveUniqueIdentity(c.Record, settings)
	if !ok {
		return models.Skipped(models.ReasonNoIdentity)
	}

	user, err := s.users.FindByDirectoryID(ctx, id.Value)
	switch {
	case err == nil:
		return s.syncExisting(ctx, settings, c.Record, user, id, models.Updated)
	case !errors.Is(err, sentinel.ErrNotFound):
		return models.Failed(models.ReasonHostStore, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user by directory id"))
	}

	if c.Mode == models.ModeRefresh {
		if c.Known == nil {
			return models.Skipped(models.ReasonNotFound)
		}
		return s.syncExisting(ctx, settings, c.Record, c.Known, id, models.Updated)
	}

	username, hasUsername := identity.ResolveUsername(c.Record, settings)
	if settings.MergeExistingUsers && hasUsername {
		existing, err := s.users.FindByUsername(ctx, username)
		switch {
		case err == nil && !isDirectoryUser(existing):
			return s.syncExisting(ctx, settings, c.Record, existing, id, models.Merged)
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return models.Failed(models.ReasonHostStore, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user by username"))
		}
	}

	return s.create(ctx, settings, c.Record, id, username)
}

// syncExisting refuses to relink a user whose stored identity has the same
// attribute but another value, then syncs it.
func (s *Service) syncExisting(
	ctx context.Context,
	settings *models.Settings,
	record *models.DirectoryRecord,
	user *models.LocalUser,
	id *models.UniqueIdentity,
	success func(userID string) models.Outcome,
) models.Outcome {
	if stored := user.StoredIdentity(); stored != nil && stored.Attribute == id.Attribute && stored.Value != id.Value {
		o := models.Skipped(models.ReasonIdentityConflict)
		o.UserID = user.ID
		return o
	}
	if err := s.syncUser(ctx, settings, record, user); err != nil {
		o := models.Failed(models.ReasonHostStore, err)
		o.UserID = user.ID
		return o
	}
	return success(user.ID)
}

func (s *Service) create(ctx context.Context, settings *models.Settings, record *models.DirectoryRecord, id *models.UniqueIdentity, username string) models.Outcome {
	email, ok := s.accountEmail(record, settings, id, username)
	if !ok {
		return models.Failed(models.ReasonConfiguration,
			dErrors.New(dErrors.CodeConfiguration, "no email source available to create account"))
	}

	userID, err := s.users.CreateAccount(ctx, models.NewAccount{Username: username, Email: email})
	if err != nil {
		return models.Failed(models.ReasonHostStore, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account"))
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		o := models.Failed(models.ReasonHostStore, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload created account"))
		o.UserID = userID
		return o
	}
	if err := s.syncUser(ctx, settings, record, user); err != nil {
		o := models.Failed(models.ReasonHostStore, err)
		o.UserID = userID
		return o
	}
	return models.Created(userID)
}

// accountEmail picks the address for a new account: the first mapped email, then
// the first mail value that looks like an address, then <local>@DefaultDomain.
func (s *Service) accountEmail(record *models.DirectoryRecord, settings *models.Settings, id *models.UniqueIdentity, username string) (string, bool) {
	if delta := s.mapper.ComputeDelta(record, nil, settings); delta != nil && len(delta.Emails) > 0 {
		return delta.Emails[0].Address, true
	}
	for _, mail := range record.Values("mail") {
		if strings.Contains(mail, "@") {
			return mail, true
		}
	}
	if settings.DefaultDomain != "" {
		local := username
		if local == "" {
			local = id.Value
		}
		return local + "@" + settings.DefaultDomain, true
	}
	return "", false
}

func isDirectoryUser(u *models.LocalUser) bool {
	return u.LinkedToDirectory || u.StoredIdentity() != nil
}

// Record logs, counts and audits one outcome. The driver calls it directly for
// outcomes decided before reconciliation (directory misses).
func (s *Service) Record(ctx context.Context, c Candidate, o models.Outcome) {
	if s.metrics != nil {
		s.metrics.ObserveOutcome(c.Mode, o)
	}

	args := []any{
		"run_id", c.RunID,
		"mode", string(c.Mode),
		"outcome", string(o.Kind),
	}
	if c.Record != nil {
		args = append(args, "dn", c.Record.DN)
	}
	if o.UserID != "" {
		args = append(args, "user_id", o.UserID)
	}
	if o.Reason != models.ReasonNone {
		args = append(args, "reason", string(o.Reason))
	}

	switch o.Kind {
	case models.OutcomeFailed:
		args = append(args, "error", o.Err)
		s.logger.ErrorContext(ctx, "directory record failed", args...)
	case models.OutcomeSkipped:
		s.logger.WarnContext(ctx, "directory record skipped", args...)
	default:
		s.logger.InfoContext(ctx, "directory record reconciled", args...)
	}

	s.emitAudit(ctx, c, o)
}

var outcomeEvents = map[models.OutcomeKind]audit.AuditEvent{
	models.OutcomeCreated: audit.EventDirectoryUserCreated,
	models.OutcomeMerged:  audit.EventDirectoryUserMerged,
	models.OutcomeUpdated: audit.EventDirectoryUserUpdated,
	models.OutcomeSkipped: audit.EventDirectoryUserSkipped,
	models.OutcomeFailed:  audit.EventDirectoryUserFailed,
}

func (s *Service) emitAudit(ctx context.Context, c Candidate, o models.Outcome) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{
		UserID:   o.UserID,
		Action:   string(outcomeEvents[o.Kind]),
		Decision: string(o.Kind),
		Reason:   string(o.Reason),
		RunID:    c.RunID,
	}
	if c.Record != nil {
		event.Subject = c.Record.DN
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"run_id", c.RunID,
			"error", err,
		)
	}
}
