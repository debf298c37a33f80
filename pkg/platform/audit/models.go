package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers account lifecycle changes: accounts created or
	// merged from the directory.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers failures and admin-triggered runs.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine refreshes, skips and run summaries.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// UserID is the local user affected, empty when no account was touched.
	UserID string `json:"user_id,omitempty"`
	// Subject is the directory entry involved (DN or identity value).
	Subject  string `json:"subject,omitempty"`
	Action   string `json:"action"`
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	// RequestID is the correlation ID of the admin request that triggered the run.
	RequestID string `json:"request_id,omitempty"`
	// ActorID tracks who triggered the action when it was not the scheduler.
	ActorID string `json:"actor_id,omitempty"`
}

type AuditEvent string

const (
	// Per-record outcomes
	EventDirectoryUserCreated AuditEvent = "directory_user_created"
	EventDirectoryUserMerged  AuditEvent = "directory_user_merged"
	EventDirectoryUserUpdated AuditEvent = "directory_user_updated"
	EventDirectoryUserSkipped AuditEvent = "directory_user_skipped"
	EventDirectoryUserFailed  AuditEvent = "directory_user_failed"

	// Run lifecycle
	EventDirectorySyncTriggered AuditEvent = "directory_sync_triggered"
	EventDirectorySyncCompleted AuditEvent = "directory_sync_completed"
	EventDirectorySyncFailed    AuditEvent = "directory_sync_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDirectoryUserCreated: CategoryCompliance,
	EventDirectoryUserMerged:  CategoryCompliance,

	EventDirectoryUserFailed:    CategorySecurity,
	EventDirectorySyncTriggered: CategorySecurity,
	EventDirectorySyncFailed:    CategorySecurity,

	EventDirectoryUserUpdated:   CategoryOperations,
	EventDirectoryUserSkipped:   CategoryOperations,
	EventDirectorySyncCompleted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by stores that can be queried.
type Reader interface {
	ListByUser(ctx context.Context, userID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
