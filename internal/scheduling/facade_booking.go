package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	redisclient "github.com/qzero-app/scheduling-engine/internal/redis"
	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

// BookingRequest carries a booking attempt for a service's calendar.
type BookingRequest struct {
	ServiceID uuid.UUID
	Date      string // YYYY-MM-DD
	Time      string // HH:MM
	Notes     string
}

// Slots lists the candidate start times for a service on a date, each
// flagged available or not. An empty list is the documented
// no-availability answer for a disabled day, never an error. Reads do
// not pass the entitlement gate.
func (f *Facade) Slots(ctx context.Context, serviceID uuid.UUID, date string) ([]booking.Slot, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	svc, err := f.bookings.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, nil
	}
	existing, err := f.bookings.ListForDate(ctx, serviceID, date)
	if err != nil {
		return nil, err
	}
	return booking.SlotsForDate(svc, day, existing), nil
}

// BookAppointment creates an agendado appointment after re-validating
// the slot inside the per-(service, date) critical section. Of two
// concurrent attempts at overlapping times exactly one succeeds; the
// loser gets the slot conflict with the winning appointment's id.
func (f *Facade) BookAppointment(ctx context.Context, req BookingRequest) (*booking.Appointment, error) {
	day, err := schedule.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := schedule.ParseClock(req.Time)
	if err != nil {
		return nil, err
	}

	var appt *booking.Appointment
	var conflictID uuid.UUID

	attempt := func(ctx context.Context) error {
		appt = nil
		return f.locker.WithLock(ctx, redisclient.AgendaLockKey(req.ServiceID, req.Date), func(ctx context.Context) error {
			svc, err := f.bookings.GetService(ctx, req.ServiceID)
			if err != nil {
				return err
			}
			if err := f.authorize(ctx, svc.BusinessID); err != nil {
				return err
			}
			existing, err := f.bookings.ListForDate(ctx, req.ServiceID, req.Date)
			if err != nil {
				return err
			}
			if svc.MaxDailySlots > 0 && booking.CountOccupying(existing) >= svc.MaxDailySlots {
				return booking.ErrDailyLimitReached
			}
			conflict, err := booking.ValidateBooking(svc, svc.Hours.Day(day.Weekday()), start, existing, nil)
			if err != nil {
				if conflict != nil {
					conflictID = conflict.ID
				}
				return err
			}
			a := booking.NewAppointment(svc, req.Date, start, f.clock.Now())
			if req.Notes != "" {
				notes := req.Notes
				a.Notes = &notes
			}
			if err := f.bookings.InsertAppointment(ctx, a); err != nil {
				return err
			}
			appt = a
			return nil
		})
	}

	if err := retryOnce(ctx, attempt); err != nil {
		if isWriteConflict(err) {
			return nil, &ConflictError{Err: booking.ErrSlotConflict}
		}
		if conflictID != uuid.Nil {
			return nil, &ConflictError{Err: err, EntityID: conflictID}
		}
		return nil, err
	}

	f.emit(ctx, Event{
		Type:       EventAppointmentBooked,
		EntityID:   appt.ID,
		BusinessID: appt.BusinessID,
		Payload: map[string]any{
			"service_id": appt.ServiceID.String(),
			"date":       appt.Date,
			"time":       appt.Start.String(),
		},
		At: f.clock.Now(),
	})
	return appt, nil
}

// RescheduleAppointment moves an occupying appointment to a new date or
// time, validating the target slot while excluding the appointment
// itself from the overlap test.
func (f *Facade) RescheduleAppointment(ctx context.Context, id uuid.UUID, date, clock string) (*booking.Appointment, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	start, err := schedule.ParseClock(clock)
	if err != nil {
		return nil, err
	}

	var moved *booking.Appointment
	var conflictID uuid.UUID

	attempt := func(ctx context.Context) error {
		moved = nil
		a, err := f.bookings.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := f.authorize(ctx, a.BusinessID); err != nil {
			return err
		}
		if a.Status != booking.StatusBooked && a.Status != booking.StatusConfirmed {
			return booking.ErrInvalidTransition
		}
		svc, err := f.bookings.GetService(ctx, a.ServiceID)
		if err != nil {
			return err
		}
		return f.locker.WithLock(ctx, redisclient.AgendaLockKey(a.ServiceID, date), func(ctx context.Context) error {
			existing, err := f.bookings.ListForDate(ctx, a.ServiceID, date)
			if err != nil {
				return err
			}
			conflict, err := booking.ValidateBooking(svc, svc.Hours.Day(day.Weekday()), start, existing, &a.ID)
			if err != nil {
				if conflict != nil {
					conflictID = conflict.ID
				}
				return err
			}
			prev := a.Status
			a.Date = date
			a.Start = start
			a.UpdatedAt = f.clock.Now()
			if err := f.bookings.UpdateAppointment(ctx, a, prev); err != nil {
				return err
			}
			moved = a
			return nil
		})
	}

	if err := retryOnce(ctx, attempt); err != nil {
		if isWriteConflict(err) {
			return nil, &ConflictError{Err: booking.ErrSlotConflict}
		}
		if conflictID != uuid.Nil {
			return nil, &ConflictError{Err: err, EntityID: conflictID}
		}
		return nil, err
	}
	return moved, nil
}

// ConfirmAppointment moves agendado to confirmado.
func (f *Facade) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return f.appointmentTransition(ctx, id, booking.Confirm, EventAppointmentConfirmed)
}

// StartAppointment moves confirmado to em_atendimento.
func (f *Facade) StartAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return f.appointmentTransition(ctx, id, booking.Start, "")
}

// CompleteAppointment moves em_atendimento to concluido.
func (f *Facade) CompleteAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return f.appointmentTransition(ctx, id, booking.Complete, "")
}

// CancelAppointment is the client-initiated exit from agendado or
// confirmado. Cancelling a terminal booking fails with
// InvalidTransition, never a silent no-op.
func (f *Facade) CancelAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return f.appointmentTransition(ctx, id, booking.Cancel, EventAppointmentCancelled)
}

// RateAppointment attaches a rating to a completed booking.
func (f *Facade) RateAppointment(ctx context.Context, id uuid.UUID, rating int, feedback string) (*booking.Appointment, error) {
	return f.appointmentTransition(ctx, id, func(a *booking.Appointment, _ time.Time) error {
		return booking.Rate(a, rating, feedback)
	}, "")
}

// GetAppointment reads one appointment.
func (f *Facade) GetAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return f.bookings.GetAppointment(ctx, id)
}

func (f *Facade) appointmentTransition(ctx context.Context, id uuid.UUID, apply func(*booking.Appointment, time.Time) error, eventType string) (*booking.Appointment, error) {
	var result *booking.Appointment

	attempt := func(ctx context.Context) error {
		a, err := f.bookings.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := f.authorize(ctx, a.BusinessID); err != nil {
			return err
		}
		prev := a.Status
		if err := apply(a, f.clock.Now()); err != nil {
			return err
		}
		if err := f.bookings.UpdateAppointment(ctx, a, prev); err != nil {
			return err
		}
		result = a
		return nil
	}

	if err := retryOnce(ctx, attempt); err != nil {
		return nil, err
	}
	if eventType != "" {
		f.emit(ctx, Event{
			Type:       eventType,
			EntityID:   result.ID,
			BusinessID: result.BusinessID,
			Payload: map[string]any{
				"service_id": result.ServiceID.String(),
				"date":       result.Date,
				"time":       result.Start.String(),
			},
			At: f.clock.Now(),
		})
	}
	return result, nil
}
