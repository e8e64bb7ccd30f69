package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"schedula/availability/internal/auth"
	"schedula/availability/internal/observability/metrics"
)

type Config struct {
	Service            availabilityService
	Verifier           *auth.Verifier
	Metrics            *metrics.AvailabilityMetrics
	MetricsHandler     http.Handler
	CORSOrigins        []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	Logger             *slog.Logger
}

// NewRouter builds the HTTP API. Everything under /api/admin requires an
// ADMIN bearer token.
func NewRouter(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.availability"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observeRequests(cfg.Metrics))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(
			cfg.RateLimitPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}),
		))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	h := NewAvailabilityHandler(cfg.Service, log)
	r.Route("/api/admin", func(admin chi.Router) {
		admin.Use(requireAdmin(cfg.Verifier, log))
		admin.Get("/availability", h.List)
		admin.Post("/availability", h.Upsert)
		admin.Put("/availability/batch", h.UpsertBatch)
	})

	return r
}
