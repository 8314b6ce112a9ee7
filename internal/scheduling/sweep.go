package scheduling

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

// RunExpirySweep is the periodic pass the worker drives: called tickets
// past tolerance flip to no-show, confirmed appointments past their
// start plus tolerance flip to no-show, and due reminders fire. Every
// step is idempotent; a compare-and-swap miss means another writer got
// there first and the corresponding event is simply not re-emitted.
func (f *Facade) RunExpirySweep(ctx context.Context) error {
	now := f.clock.Now()

	overdueTickets, err := f.queues.ListOverdueCalled(ctx, now)
	if err != nil {
		return fmt.Errorf("list overdue tickets: %w", err)
	}
	for _, ct := range overdueTickets {
		t := ct.Ticket
		changed, err := queue.ExpireIfOverdue(&t, ct.ToleranceTime, now)
		if err != nil || !changed {
			continue
		}
		if err := f.queues.UpdateTicket(ctx, &t, queue.TicketCalled); err != nil {
			if !errors.Is(err, queue.ErrConcurrentWrite) {
				f.logger.Warn("ticket expiry write failed",
					zap.String("ticket_id", t.ID.String()), zap.Error(err))
			}
			continue
		}
		f.emit(ctx, noShowEvent(&t, now))
	}

	overdueAppts, err := f.bookings.ListOverdueConfirmed(ctx, now)
	if err != nil {
		return fmt.Errorf("list overdue appointments: %w", err)
	}
	for _, ca := range overdueAppts {
		a := ca.Appointment
		changed, err := booking.ExpireIfUnconfirmed(&a, ca.ToleranceTime, now)
		if err != nil || !changed {
			continue
		}
		if err := f.bookings.UpdateAppointment(ctx, &a, booking.StatusConfirmed); err != nil {
			if !errors.Is(err, booking.ErrConcurrentWrite) {
				f.logger.Warn("appointment expiry write failed",
					zap.String("appointment_id", a.ID.String()), zap.Error(err))
			}
			continue
		}
		f.emit(ctx, Event{
			Type:       EventAppointmentNoShow,
			EntityID:   a.ID,
			BusinessID: a.BusinessID,
			Payload: map[string]any{
				"service_id": a.ServiceID.String(),
				"date":       a.Date,
				"time":       a.Start.String(),
			},
			At: now,
		})
	}

	today := now.Format(schedule.DateLayout)
	reminders, err := f.bookings.ListUnsentReminders(ctx, today)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	for _, a := range reminders {
		if !booking.ReminderDue(&a, f.reminderLead, now) {
			continue
		}
		// The flag flip is the idempotency gate: only the caller that
		// actually flips it emits the event.
		won, err := f.bookings.MarkReminderSent(ctx, a.ID)
		if err != nil {
			f.logger.Warn("mark reminder sent failed",
				zap.String("appointment_id", a.ID.String()), zap.Error(err))
			continue
		}
		if !won {
			continue
		}
		f.emit(ctx, Event{
			Type:       EventAppointmentReminderDue,
			EntityID:   a.ID,
			BusinessID: a.BusinessID,
			Payload: map[string]any{
				"service_id": a.ServiceID.String(),
				"date":       a.Date,
				"time":       a.Start.String(),
			},
			At: now,
		})
	}

	return nil
}
