package models

import "time"

// SyncMode says whether a reconciliation may create accounts.
type SyncMode string

const (
	// ModeImport may create or merge accounts.
	ModeImport SyncMode = "import"
	// ModeRefresh only updates accounts that are already linked.
	ModeRefresh SyncMode = "refresh"
)

// OutcomeKind is the terminal state of one reconciliation.
type OutcomeKind string

const (
	OutcomeCreated OutcomeKind = "created"
	OutcomeUpdated OutcomeKind = "updated"
	OutcomeMerged  OutcomeKind = "merged"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Reason distinguishes skips and failures in logs and metrics.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoIdentity       Reason = "no_identity"
	ReasonNotFound         Reason = "not_found"
	ReasonIdentityConflict Reason = "identity_conflict"
	ReasonConfiguration    Reason = "configuration"
	ReasonHostStore        Reason = "host_store"
	ReasonDirectory        Reason = "directory"
)

// Outcome is the result of reconciling one directory record.
type Outcome struct {
	Kind   OutcomeKind
	Reason Reason
	UserID string
	Err    error
}

// Created, Updated, Merged, Skipped and Failed build outcomes.
func Created(userID string) Outcome { return Outcome{Kind: OutcomeCreated, UserID: userID} }
func Updated(userID string) Outcome { return Outcome{Kind: OutcomeUpdated, UserID: userID} }
func Merged(userID string) Outcome  { return Outcome{Kind: OutcomeMerged, UserID: userID} }

func Skipped(reason Reason) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func Failed(reason Reason, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason, Err: err}
}

// RunStats counts outcomes for one import or refresh pass.
type RunStats struct {
	Processed int            `json:"processed"`
	Created   int            `json:"created"`
	Updated   int            `json:"updated"`
	Merged    int            `json:"merged"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Reasons   map[Reason]int `json:"reasons,omitempty"`
}

// NewRunStats returns zeroed stats.
func NewRunStats() *RunStats {
	return &RunStats{Reasons: make(map[Reason]int)}
}

// Record adds one outcome.
func (s *RunStats) Record(o Outcome) {
	s.Processed++
	switch o.Kind {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeMerged:
		s.Merged++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
	if o.Reason != ReasonNone {
		if s.Reasons == nil {
			s.Reasons = make(map[Reason]int)
		}
		s.Reasons[o.Reason]++
	}
}

// RunReport summarizes one sync run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Import     *RunStats `json:"import,omitempty"`
	Refresh    *RunStats `json:"refresh,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
}
