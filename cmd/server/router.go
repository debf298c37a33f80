package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dirsync/internal/directorysync/handler"
	"dirsync/internal/directorysync/schedule"
	httpmetrics "dirsync/internal/platform/metrics"
	audit "dirsync/pkg/platform/audit"
	"dirsync/pkg/platform/httputil"
	"dirsync/pkg/platform/middleware/admin"
)

type routerDeps struct {
	adminToken  string
	job         *schedule.Job
	auditReader audit.Reader
	publisher   handler.AuditPublisher
	metrics     *httpmetrics.Metrics
	checks      map[string]func(context.Context) error
	logger      *slog.Logger
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(d.metrics.Middleware)

	r.Get("/health", healthHandler(d.checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.adminToken, d.logger))
		handler.New(d.job, d.auditReader, d.publisher, d.logger).Register(r)
	})
	return r
}

func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
