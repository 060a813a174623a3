package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/opencare/treatment-booking/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Offers and their bookable slots
	r.Post("/offers", createOfferHandler(cfg.Service))
	r.Put("/offers/{id}", updateOfferHandler(cfg.Service))
	r.Delete("/offers/{id}", deleteOfferHandler(cfg.Service))
	r.Get("/offers/{id}/slots", getFreeSlotsHandler(cfg.Service))

	// Bookings and cases
	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/cases/{id}", getCaseHandler(cfg.Service))
	r.Post("/cases/{id}/finalize", finalizeCaseHandler(cfg.Service))
	r.Post("/cases/{id}/cancel", cancelCaseHandler(cfg.Service))
	r.Post("/cases/{id}/notes", addNoteHandler(cfg.Service))

	// Appointment attendance
	r.Post("/appointments/{id}/attendance", markAttendanceHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	return r
}
