package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	"github.com/qzero-app/scheduling-engine/internal/scheduling"
)

type RouterConfig struct {
	Facade  *scheduling.Facade
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

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	f := cfg.Facade

	// Walk-in ticket queue
	r.Post("/queues/{queueID}/tickets", issueTicketHandler(f))
	r.Post("/queues/{queueID}/call-next", callNextHandler(f))
	r.Get("/tickets/{id}", ticketStatusHandler(f))
	r.Post("/tickets/{id}/start", ticketActionHandler(startTicket, f))
	r.Post("/tickets/{id}/complete", ticketActionHandler(completeTicket, f))
	r.Post("/tickets/{id}/cancel", ticketActionHandler(cancelTicket, f))
	r.Post("/tickets/{id}/rate", ticketActionHandler(rateTicket, f))

	// Appointment booking
	r.Get("/services/{id}/slots", slotsHandler(f))
	r.Post("/appointments", createAppointmentHandler(f))
	r.Get("/appointments/{id}", getAppointmentHandler(f))
	r.Post("/appointments/{id}/confirm", appointmentActionHandler(confirmAppointment, f))
	r.Post("/appointments/{id}/start", appointmentActionHandler(startAppointment, f))
	r.Post("/appointments/{id}/complete", appointmentActionHandler(completeAppointment, f))
	r.Post("/appointments/{id}/cancel", appointmentActionHandler(cancelAppointment, f))
	r.Post("/appointments/{id}/reschedule", appointmentActionHandler(rescheduleAppointment, f))
	r.Post("/appointments/{id}/rate", appointmentActionHandler(rateAppointment, f))

	return r
}

func startTicket(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*queue.Ticket, error) {
	return f.BeginService(r.Context(), id)
}

func completeTicket(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*queue.Ticket, error) {
	return f.CompleteTicket(r.Context(), id)
}

func cancelTicket(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*queue.Ticket, error) {
	return f.CancelTicket(r.Context(), id)
}

func confirmAppointment(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
	return f.ConfirmAppointment(r.Context(), id)
}

func startAppointment(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
	return f.StartAppointment(r.Context(), id)
}

func completeAppointment(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
	return f.CompleteAppointment(r.Context(), id)
}

func cancelAppointment(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
	return f.CancelAppointment(r.Context(), id)
}
