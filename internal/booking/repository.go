package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrConcurrentWrite     = errors.New("concurrent write conflict")
)

// ConfirmedAppointment pairs a confirmed appointment with its service's
// tolerance for the no-show sweep.
type ConfirmedAppointment struct {
	Appointment
	ToleranceTime int
}

// Repository is the persistence surface for services and appointments.
// Status writes are compare-and-swap on the previous status; a CAS miss
// surfaces as ErrConcurrentWrite.
type Repository interface {
	GetService(ctx context.Context, id uuid.UUID) (*Service, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListForDate returns every appointment of a service on a date,
	// any status, ordered by start time.
	ListForDate(ctx context.Context, serviceID uuid.UUID, date string) ([]Appointment, error)

	InsertAppointment(ctx context.Context, a *Appointment) error

	// UpdateAppointment writes the appointment's mutable fields if its
	// stored status still equals expect.
	UpdateAppointment(ctx context.Context, a *Appointment, expect AppointmentStatus) error

	// ListOverdueConfirmed finds confirmed appointments whose start
	// plus tolerance has elapsed, for the periodic no-show sweep.
	ListOverdueConfirmed(ctx context.Context, now time.Time) ([]ConfirmedAppointment, error)

	// ListUnsentReminders finds occupying appointments on a date with
	// the reminder flag still unset.
	ListUnsentReminders(ctx context.Context, date string) ([]Appointment, error)

	// MarkReminderSent flips the reminder flag; the boolean is false
	// when the flag was already set, so a reminder never fires twice.
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
}
