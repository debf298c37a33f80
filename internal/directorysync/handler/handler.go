// Package handler exposes the admin endpoints that trigger and inspect sync runs.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"dirsync/internal/directorysync/models"
	"dirsync/internal/directorysync/schedule"
	dErrors "dirsync/pkg/domain-errors"
	audit "dirsync/pkg/platform/audit"
	"dirsync/pkg/platform/httputil"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// Runs starts sync runs and reports on them.
type Runs interface {
	Start(ctx context.Context, trigger string, mode schedule.Mode) error
	Last() *models.RunReport
	Running() bool
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Handler wires the admin sync endpoints to the run job.
type Handler struct {
	runs           Runs
	events         audit.Reader
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

// New constructs a handler. events may be nil when the audit sink is write-only.
func New(runs Runs, events audit.Reader, publisher AuditPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		runs:           runs,
		events:         events,
		auditPublisher: publisher,
		logger:         logger,
	}
}

// Register mounts the sync endpoints on the router. Callers guard the router with
// the admin token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/directory-sync/run", h.HandleRun)
	r.Post("/admin/directory-sync/import", h.HandleImport)
	r.Get("/admin/directory-sync/status", h.HandleStatus)
	if h.events != nil {
		r.Get("/admin/directory-sync/events", h.HandleEvents)
	}
}

// HandleRun handles POST /admin/directory-sync/run: a full run in the background.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, schedule.ModeFull)
}

// HandleImport handles POST /admin/directory-sync/import: import new users only.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, schedule.ModeImportOnly)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request, mode schedule.Mode) {
	ctx := r.Context()
	requestID := chimw.GetReqID(ctx)

	if err := h.runs.Start(ctx, "admin", mode); err != nil {
		if errors.Is(err, schedule.ErrRunInProgress) {
			h.logger.InfoContext(ctx, "directory sync already running",
				"request_id", requestID,
				"mode", string(mode),
			)
		} else {
			h.logger.ErrorContext(ctx, "failed to start directory sync",
				"request_id", requestID,
				"mode", string(mode),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "directory sync triggered",
		"request_id", requestID,
		"mode", string(mode),
	)
	if h.auditPublisher != nil {
		if err := h.auditPublisher.Emit(ctx, audit.Event{
			Action:    string(audit.EventDirectorySyncTriggered),
			Subject:   string(mode),
			Decision:  "accepted",
			RequestID: requestID,
			ActorID:   "admin",
		}); err != nil {
			h.logger.WarnContext(ctx, "failed to emit audit event", "request_id", requestID, "error", err)
		}
	}

	httputil.WriteJSON(w, http.StatusAccepted, StartResponse{Status: "accepted", Mode: string(mode)})
}

// HandleStatus handles GET /admin/directory-sync/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Running: h.runs.Running(),
		LastRun: h.runs.Last(),
	})
}

// HandleEvents handles GET /admin/directory-sync/events?limit=N[&user_id=ID], newest first.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEventLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	events, err := h.listEvents(ctx, r.URL.Query().Get("user_id"), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", chimw.GetReqID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// listEvents returns the newest events, optionally only those about one user.
func (h *Handler) listEvents(ctx context.Context, userID string, limit int) ([]audit.Event, error) {
	if userID == "" {
		return h.events.ListRecent(ctx, limit)
	}
	events, err := h.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
