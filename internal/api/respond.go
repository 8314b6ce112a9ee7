package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	"github.com/qzero-app/scheduling-engine/internal/schedule"
	"github.com/qzero-app/scheduling-engine/internal/scheduling"
)

var errBadBody = errors.New("could not parse JSON request body")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the error taxonomy onto HTTP. Conflict details
// carry the blocking entity's id when the facade knows it.
func writeDomainError(w http.ResponseWriter, err error) {
	var conflictID string
	var ce *scheduling.ConflictError
	if errors.As(err, &ce) && ce.EntityID != uuid.Nil {
		conflictID = ce.EntityID.String()
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, queue.ErrQueueNotFound),
		errors.Is(err, queue.ErrTicketNotFound),
		errors.Is(err, booking.ErrServiceNotFound),
		errors.Is(err, booking.ErrAppointmentNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, scheduling.ErrAccessDenied):
		status, code = http.StatusForbidden, "access_denied"
	case errors.Is(err, errBadBody),
		errors.Is(err, schedule.ErrBadDate),
		errors.Is(err, schedule.ErrBadClock),
		errors.Is(err, queue.ErrInvalidRating),
		errors.Is(err, booking.ErrInvalidRating):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, queue.ErrQueueClosed):
		status, code = http.StatusConflict, "queue_closed"
	case errors.Is(err, queue.ErrCapacityExceeded),
		errors.Is(err, booking.ErrDailyLimitReached):
		status, code = http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, queue.ErrEmptyQueue):
		status, code = http.StatusConflict, "empty_queue"
	case errors.Is(err, queue.ErrPreviousTicketPending):
		status, code = http.StatusConflict, "previous_ticket_pending"
	case errors.Is(err, booking.ErrSlotConflict):
		status, code = http.StatusConflict, "slot_conflict"
	case errors.Is(err, booking.ErrOutsideHours):
		status, code = http.StatusConflict, "outside_working_hours"
	case errors.Is(err, booking.ErrServiceInactive):
		status, code = http.StatusConflict, "service_inactive"
	case errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, queue.ErrAlreadyRated),
		errors.Is(err, booking.ErrAlreadyRated):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, queue.ErrConcurrentWrite),
		errors.Is(err, booking.ErrConcurrentWrite):
		status, code = http.StatusConflict, "concurrent_write_conflict"
	}

	writeJSON(w, status, ErrorResponse{
		Error:      code,
		Details:    err.Error(),
		ConflictID: conflictID,
	})
}
