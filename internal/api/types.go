package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	"github.com/qzero-app/scheduling-engine/internal/scheduling"
)

type TicketResponse struct {
	ID           uuid.UUID  `json:"id"`
	QueueID      uuid.UUID  `json:"queue_id"`
	TicketNumber int        `json:"ticket_number"`
	Status       string     `json:"status"`
	Position     int        `json:"position,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CalledAt     *time.Time `json:"called_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type TicketStatusResponse struct {
	TicketResponse
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
	CurrentNumber        int `json:"current_number"`
}

type RateRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

type SlotResponse struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

type CreateAppointmentRequest struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Notes     string `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   uuid.UUID `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Duration    int       `json:"duration"`
	BufferTime  int       `json:"buffer_time"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	ConflictID string `json:"conflict_id,omitempty"`
}

func ticketResponse(t *queue.Ticket) TicketResponse {
	return TicketResponse{
		ID:           t.ID,
		QueueID:      t.QueueID,
		TicketNumber: t.Number,
		Status:       string(t.Status),
		Position:     t.Position,
		CreatedAt:    t.CreatedAt,
		CalledAt:     t.CalledAt,
		CompletedAt:  t.CompletedAt,
	}
}

func ticketStatusResponse(v *scheduling.TicketView) TicketStatusResponse {
	resp := TicketStatusResponse{
		TicketResponse:       ticketResponse(&v.Ticket),
		EstimatedWaitMinutes: int(v.EstimatedWait.Minutes()),
		CurrentNumber:        v.CurrentNumber,
	}
	resp.Position = v.Position
	return resp
}

func appointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		ServiceID:   a.ServiceID,
		ServiceName: a.ServiceName,
		Date:        a.Date,
		Time:        a.Start.String(),
		Duration:    a.Duration,
		BufferTime:  a.BufferTime,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
	}
}

func slotResponses(slots []booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			Start:     s.Start.String(),
			End:       s.End.String(),
			Available: s.Available,
		})
	}
	return out
}
