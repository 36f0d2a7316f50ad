package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
	"github.com/clinicdesk/walkin-scheduling/internal/booking"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service  *booking.Service
	Registry *patient.Registry
	Avail    *schedule.Availability
	Ledger   appointment.Ledger
	PgPool   *pgxpool.Pool // nil for the file backend
	Redis    *redis.Client // nil when the claim lock is disabled
	DataDir  string
	Env      string
	Version  string
	Logger   *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	handler := NewHandler(cfg.Service, cfg.Registry, cfg.Avail, cfg.Ledger, metrics, cfg.Logger)

	r.Use(RequestIDMiddleware)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(100, time.Minute))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.DataDir, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	r.Get("/providers", handler.ListProviders)
	r.Get("/providers/{provider}/slots", handler.ListSlots)
	r.Get("/days", handler.ListDays)

	r.Post("/bookings", handler.CreateBooking)
	r.Get("/appointments", handler.ListAppointments)
	r.Get("/appointments/{id}", handler.GetAppointment)

	r.Get("/patients/{id}", handler.GetPatient)
	r.Post("/patients/resolve", handler.ResolvePatient)

	r.Post("/reminders/run", handler.RunReminders)
	r.Post("/export", handler.RunExport)

	return r
}
