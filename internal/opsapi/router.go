// Package opsapi exposes a minimal chi-routed health and introspection
// surface: liveness, readiness, and a point-in-time status snapshot. It
// is not the business surface — channel and payment operations are
// invoked programmatically by internal/channel, not over HTTP.
package opsapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the ops router. All routes are exempt from auth: this
// surface carries no business data, only process and poll-cycle health.
func NewRouter(deps *Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogging)

	slog.Info("ops router initialized", "middleware", []string{"realIP", "recoverer", "requestLogging"})

	r.Get("/healthz", HealthHandler(deps))
	r.Get("/readyz", ReadyHandler(deps))
	r.Get("/statusz", StatusHandler(deps))

	return r
}
