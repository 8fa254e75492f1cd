// Package httptransport assembles the HTTP surface: the shared middleware
// chain, liveness and metrics endpoints, and the per-module handler mounts.
// Route-level policy such as authentication lives with the handlers; this
// package only owns the chain every request passes through.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sieve/internal/platform/metrics"
	"sieve/internal/platform/middleware"
)

const requestTimeout = 30 * time.Second

// Registrar mounts one module's routes on the router. Implemented by the
// filters and consent handlers.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter builds the service router: recovery, correlation, logging,
// timeout, content-type and latency middleware, the operational endpoints,
// and every given module handler.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(m))

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
