package testutil

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// AdminTokenHeader is the header the admin middleware checks.
const AdminTokenHeader = "X-Admin-Token"

// WithAdminToken sets the admin token header on the request.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set(AdminTokenHeader, token)
	return req
}

// WithRequestID adds a request ID to the request context.
// This simulates what chi's RequestID middleware does.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := context.WithValue(req.Context(), chimw.RequestIDKey, requestID)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
