package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Server  *Server
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	srv := cfg.Server
	r.Route("/providers/{providerID}", func(r chi.Router) {
		r.Get("/bookings", srv.listBookings)
		r.Post("/bookings", srv.createBooking)
		r.Patch("/bookings/{id}", srv.updateBooking)
		r.Delete("/bookings/{id}", srv.deleteBooking)

		r.Get("/calendar", srv.calendar)
		r.Post("/conflicts", srv.conflictCheck)

		// Suggestion generation walks the whole horizon; keep it from
		// being hammered.
		r.With(httprate.LimitByIP(30, time.Minute)).Post("/suggestions", srv.suggestions)
	})

	return r
}
