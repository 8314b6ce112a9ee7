// Package booking implements the appointment calendar: slot computation
// from a service's working hours, overlap validation against existing
// appointments, and the appointment status state machine. Like the queue
// engine, the decision logic here is pure; the facade owns locking and
// persistence.
package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

// AppointmentStatus values keep the product's stored vocabulary.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "agendado"
	StatusConfirmed AppointmentStatus = "confirmado"
	StatusInService AppointmentStatus = "em_atendimento"
	StatusDone      AppointmentStatus = "concluido"
	StatusCancelled AppointmentStatus = "cancelado"
	StatusNoShow    AppointmentStatus = "falta"
)

// Occupying reports whether the appointment counts toward slot conflicts
// and the daily booking cap.
func (s AppointmentStatus) Occupying() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusInService:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Service struct {
	ID            uuid.UUID
	BusinessID    uuid.UUID
	Name          string
	Description   *string
	Duration      int // minutes, must be positive
	BufferTime    int // minutes inserted after each booking
	ToleranceTime int // minutes before a confirmed booking becomes a no-show
	MaxDailySlots int // 0 means unbounded
	IsActive      bool
	Hours         schedule.WeekSchedule
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Appointment snapshots Duration and BufferTime from the service at
// booking time, so later service edits never change the conflict
// accounting of existing bookings.
type Appointment struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	ServiceID    uuid.UUID
	ServiceName  string
	Date         string // YYYY-MM-DD
	Start        schedule.MinuteOfDay
	Duration     int
	BufferTime   int
	Status       AppointmentStatus
	Notes        *string
	Rating       *int
	Feedback     *string
	ReminderSent bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Interval is the half-open span the appointment occupies, including its
// stored buffer.
func (a *Appointment) Interval() (start schedule.MinuteOfDay, length int) {
	return a.Start, a.Duration + a.BufferTime
}

// Slot is one candidate start time on a service's calendar. Unavailable
// slots are kept in the list so callers can render them as disabled.
type Slot struct {
	Start     schedule.MinuteOfDay
	End       schedule.MinuteOfDay // end of the serviceable window, buffer excluded
	Available bool
}
