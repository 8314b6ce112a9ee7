package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	"github.com/qzero-app/scheduling-engine/internal/scheduling"
)

func urlUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// Ticket queue handlers

func issueTicketHandler(f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueID, ok := urlUUID(r, "queueID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_queue_id", "queueID must be a valid UUID")
			return
		}
		t, err := f.IssueTicket(r.Context(), queueID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ticketResponse(t))
	}
}

func callNextHandler(f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueID, ok := urlUUID(r, "queueID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_queue_id", "queueID must be a valid UUID")
			return
		}
		t, err := f.CallNext(r.Context(), queueID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticketResponse(t))
	}
}

func ticketStatusHandler(f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_ticket_id", "id must be a valid UUID")
			return
		}
		view, err := f.TicketStatus(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticketStatusResponse(view))
	}
}

func ticketActionHandler(apply func(*scheduling.Facade, *http.Request, uuid.UUID) (*queue.Ticket, error), f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_ticket_id", "id must be a valid UUID")
			return
		}
		t, err := apply(f, r, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticketResponse(t))
	}
}

func rateTicket(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*queue.Ticket, error) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errBadBody
	}
	return f.RateTicket(r.Context(), id, req.Rating, req.Feedback)
}

// Booking handlers

func slotsHandler(f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "id must be a valid UUID")
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}
		slots, err := f.Slots(r.Context(), serviceID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slotResponses(slots))
	}
}

func createAppointmentHandler(f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		appt, err := f.BookAppointment(r.Context(), scheduling.BookingRequest{
			ServiceID: serviceID,
			Date:      req.Date,
			Time:      req.Time,
			Notes:     req.Notes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, appointmentResponse(appt))
	}
}

func getAppointmentHandler(f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}
		a, err := f.GetAppointment(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentResponse(a))
	}
}

func appointmentActionHandler(apply func(*scheduling.Facade, *http.Request, uuid.UUID) (*booking.Appointment, error), f *scheduling.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}
		a, err := apply(f, r, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentResponse(a))
	}
}

func rescheduleAppointment(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errBadBody
	}
	return f.RescheduleAppointment(r.Context(), id, req.Date, req.Time)
}

func rateAppointment(f *scheduling.Facade, r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errBadBody
	}
	return f.RateAppointment(r.Context(), id, req.Rating, req.Feedback)
}
