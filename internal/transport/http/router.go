// Package httptransport assembles the public HTTP surface from the
// per-domain handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	archivehandler "entrypass/internal/archive/handler"
	entryhandler "entrypass/internal/entry/handler"
	submissionhandler "entrypass/internal/submission/handler"
	"entrypass/pkg/platform/httputil"
	"entrypass/pkg/platform/middleware/admin"
	"entrypass/pkg/platform/middleware/auth"
	"entrypass/pkg/platform/middleware/device"
	"entrypass/pkg/platform/middleware/request"
)

// Deps are the mounted handlers and the middleware they sit behind.
type Deps struct {
	Entries     *entryhandler.Handler
	Archive     *archivehandler.Handler
	Diagnostics *submissionhandler.Handler
	Validator   auth.JWTValidator
	AdminToken  string
	Gatherer    prometheus.Gatherer
	// Checks run on /readyz, keyed by dependency name.
	Checks      map[string]func(context.Context) error
	Logger      *slog.Logger
}

const readinessTimeout = 2 * time.Second

// NewRouter wires the versioned API. Traveler routes need a bearer token;
// maintenance and support routes need the operator token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(request.Logger(d.Logger))
	r.Use(device.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(d.Checks, d.Logger))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.Validator, d.Logger))
			d.Entries.Register(r)
			d.Archive.Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
			d.Diagnostics.Register(r)
			r.Route("/admin", d.Archive.RegisterAdmin)
		})
	})
	return r
}

func readiness(checks map[string]func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				result[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, result)
	}
}
