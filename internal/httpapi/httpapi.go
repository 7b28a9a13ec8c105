// Package httpapi is the thin admin/observability HTTP surface: health,
// Prometheus /metrics, dashboard JSON export, and chaos admin endpoints.
// This is explicitly NOT a trading API — the full routing layer is out of
// scope. The middleware chain (CORS -> request id -> recoverer -> request
// logger) is grounded directly on the teacher's router.NewRouter.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edgearb/edge/internal/chaos"
	"github.com/edgearb/edge/internal/observability"
)

// Deps are the components the admin surface exposes read access to.
type Deps struct {
	Logger        zerolog.Logger
	Observability *observability.Coordinator
	Chaos         *chaos.Harness
}

// NewRouter builds the chi router for the admin/observability surface.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}}))
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(deps.Logger))

	r.Get("/healthz", healthHandler)
	r.Get("/ready", readyHandler)

	if deps.Observability != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Observability.Registry(), promhttp.HandlerOpts{}))
		r.Get("/dashboard", dashboardHandler(deps.Observability))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}
	if deps.Chaos != nil {
		r.Route("/admin/chaos", chaosRoutes(deps.Chaos))
	}

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("duration", time.Since(start)).Msg("http request")
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func dashboardHandler(obs *observability.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := 15 * time.Minute
		series := obs.DashboardJSON(window)
		writeJSON(w, http.StatusOK, series)
	}
}

func chaosRoutes(h *chaos.Harness) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			matches, injected := h.Counters()
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"enabled":  h.Enabled(),
				"matches":  matches,
				"injected": injected,
			})
		})
		r.Post("/enable", func(w http.ResponseWriter, req *http.Request) {
			h.SetEnabled(true)
			writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
		})
		r.Post("/disable", func(w http.ResponseWriter, req *http.Request) {
			h.SetEnabled(false)
			writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
