// Package httptransport assembles the HTTP router: shared middleware, the
// operational endpoints, and the authenticated validation API.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"validbus/internal/auth"
	"validbus/internal/platform/metrics"
	"validbus/internal/platform/middleware"
	"validbus/internal/validation/handler"
	"validbus/pkg/platform/httputil"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Handler     *handler.Handler
	Keys        *auth.KeyStore
	HTTPMetrics *metrics.HTTP
	Logger      *slog.Logger

	// Ready reports whether downstream dependencies are reachable. Nil means
	// always ready.
	Ready func(ctx context.Context) error
}

// NewRouter wires all endpoints. The validation API sits behind API-key auth;
// health and metrics stay open for the platform.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestMeta)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(auth.RequireAPIKey(deps.Keys, deps.Logger))
		deps.Handler.Register(api)
	})

	return r
}
