// Package scheduling is the single entry point external callers use.
// The facade loads snapshots, runs the pure engines in queue and
// booking, persists the outcome inside the right critical section, and
// translates domain failures into the error taxonomy. Nothing outside
// this package begins a storage transaction or takes a lock.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	redisclient "github.com/qzero-app/scheduling-engine/internal/redis"
	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

// DefaultReminderLead is how far before its start an appointment's
// reminder fires when the config does not override it.
const DefaultReminderLead = time.Hour

type Facade struct {
	queues       queue.Repository
	bookings     booking.Repository
	locker       redisclient.Locker
	entitlements EntitlementChecker
	events       Publisher
	clock        Clock
	reminderLead time.Duration
	logger       *zap.Logger
}

type FacadeConfig struct {
	Queues       queue.Repository
	Bookings     booking.Repository
	Locker       redisclient.Locker
	Entitlements EntitlementChecker
	Events       Publisher
	Clock        Clock
	ReminderLead time.Duration
	Logger       *zap.Logger
}

func NewFacade(cfg FacadeConfig) *Facade {
	f := &Facade{
		queues:       cfg.Queues,
		bookings:     cfg.Bookings,
		locker:       cfg.Locker,
		entitlements: cfg.Entitlements,
		events:       cfg.Events,
		clock:        cfg.Clock,
		reminderLead: cfg.ReminderLead,
		logger:       cfg.Logger,
	}
	if f.events == nil {
		f.events = NopPublisher{}
	}
	if f.clock == nil {
		f.clock = SystemClock
	}
	if f.reminderLead <= 0 {
		f.reminderLead = DefaultReminderLead
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

func (f *Facade) authorize(ctx context.Context, businessID uuid.UUID) error {
	enabled, err := f.entitlements.SchedulingEnabled(ctx, businessID)
	if err != nil {
		return fmt.Errorf("entitlement check: %w", err)
	}
	if !enabled {
		return ErrAccessDenied
	}
	return nil
}

// retryOnce runs a write attempt and, on a storage-level conflict or a
// busy lock, retries exactly once with fresh data. The caller maps a
// second conflict to the appropriate domain kind.
func retryOnce(ctx context.Context, attempt func(ctx context.Context) error) error {
	err := attempt(ctx)
	if isWriteConflict(err) {
		err = attempt(ctx)
	}
	return err
}

func isWriteConflict(err error) bool {
	return errors.Is(err, queue.ErrConcurrentWrite) ||
		errors.Is(err, booking.ErrConcurrentWrite) ||
		errors.Is(err, redisclient.ErrLockNotAcquired)
}

// TicketView is the read model for one ticket: its row plus the
// non-authoritative position estimate and ETA.
type TicketView struct {
	Ticket        queue.Ticket
	Position      int
	EstimatedWait time.Duration
	CurrentNumber int
}

// IssueTicket hands out the next number in a queue. Serialized per
// queue so concurrent requests can never produce duplicate numbers.
func (f *Facade) IssueTicket(ctx context.Context, queueID uuid.UUID) (*queue.Ticket, error) {
	var issued *queue.Ticket

	attempt := func(ctx context.Context) error {
		return f.locker.WithLock(ctx, redisclient.QueueLockKey(queueID), func(ctx context.Context) error {
			q, err := f.queues.GetQueue(ctx, queueID)
			if err != nil {
				return err
			}
			if err := f.authorize(ctx, q.BusinessID); err != nil {
				return err
			}
			now := f.clock.Now()
			if q.Hours != nil && !q.Hours.OpenAt(now) {
				return queue.ErrQueueClosed
			}
			prevIssued := q.LastIssuedNumber
			queue.ResetForNewDay(q, now.Format(schedule.DateLayout))

			active, err := f.queues.ListActiveTickets(ctx, queueID)
			if err != nil {
				return err
			}
			t, err := queue.Issue(q, active, now)
			if err != nil {
				return err
			}
			if err := f.queues.CreateTicket(ctx, q, prevIssued, t); err != nil {
				return err
			}
			issued = t
			return nil
		})
	}

	if err := retryOnce(ctx, attempt); err != nil {
		return nil, err
	}

	f.emit(ctx, Event{
		Type:       EventTicketIssued,
		EntityID:   issued.ID,
		BusinessID: issued.BusinessID,
		Payload: map[string]any{
			"queue_id":      issued.QueueID.String(),
			"ticket_number": issued.Number,
		},
		At: f.clock.Now(),
	})
	return issued, nil
}

// CallNext advances the queue to the lowest-numbered waiting ticket. A
// previously called ticket past its tolerance is flipped to no-show in
// the same step; one still inside the window blocks the call.
func (f *Facade) CallNext(ctx context.Context, queueID uuid.UUID) (*queue.Ticket, error) {
	var called *queue.Ticket
	var pending []Event

	attempt := func(ctx context.Context) error {
		called = nil
		pending = pending[:0]
		return f.locker.WithLock(ctx, redisclient.QueueLockKey(queueID), func(ctx context.Context) error {
			q, err := f.queues.GetQueue(ctx, queueID)
			if err != nil {
				return err
			}
			if err := f.authorize(ctx, q.BusinessID); err != nil {
				return err
			}
			now := f.clock.Now()
			tickets, err := f.queues.ListActiveTickets(ctx, queueID)
			if err != nil {
				return err
			}

			next, expired, callErr := queue.CallNext(q, tickets, now)
			if callErr != nil {
				// The no-show resolution still counts even when nobody
				// is waiting behind it.
				if expired != nil {
					if err := f.queues.UpdateTicket(ctx, expired, queue.TicketCalled); err != nil {
						return err
					}
					pending = append(pending, noShowEvent(expired, now))
				}
				return callErr
			}

			if err := f.queues.AdvanceQueue(ctx, q, next, expired); err != nil {
				return err
			}
			if expired != nil {
				pending = append(pending, noShowEvent(expired, now))
			}
			pending = append(pending, Event{
				Type:       EventTicketCalled,
				EntityID:   next.ID,
				BusinessID: next.BusinessID,
				Payload: map[string]any{
					"queue_id":      next.QueueID.String(),
					"ticket_number": next.Number,
				},
				At: now,
			})
			called = next
			return nil
		})
	}

	err := retryOnce(ctx, attempt)
	for _, ev := range pending {
		f.emit(ctx, ev)
	}
	if err != nil {
		if isWriteConflict(err) {
			return nil, &ConflictError{Err: queue.ErrPreviousTicketPending}
		}
		return nil, err
	}
	return called, nil
}

// BeginService moves the called ticket to the serving state.
func (f *Facade) BeginService(ctx context.Context, ticketID uuid.UUID) (*queue.Ticket, error) {
	return f.ticketTransition(ctx, ticketID, func(t *queue.Ticket, now time.Time) error {
		return queue.BeginService(t, now)
	})
}

// CompleteTicket finishes a ticket that is being served.
func (f *Facade) CompleteTicket(ctx context.Context, ticketID uuid.UUID) (*queue.Ticket, error) {
	return f.ticketTransition(ctx, ticketID, func(t *queue.Ticket, now time.Time) error {
		return queue.Complete(t, now)
	})
}

// CancelTicket is the client-initiated exit, valid while waiting or
// called. Cancelling a terminal ticket fails with InvalidTransition.
func (f *Facade) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*queue.Ticket, error) {
	return f.ticketTransition(ctx, ticketID, func(t *queue.Ticket, now time.Time) error {
		return queue.Cancel(t)
	})
}

// RateTicket attaches a rating to a completed ticket.
func (f *Facade) RateTicket(ctx context.Context, ticketID uuid.UUID, rating int, feedback string) (*queue.Ticket, error) {
	return f.ticketTransition(ctx, ticketID, func(t *queue.Ticket, now time.Time) error {
		return queue.Rate(t, rating, feedback)
	})
}

func (f *Facade) ticketTransition(ctx context.Context, ticketID uuid.UUID, apply func(*queue.Ticket, time.Time) error) (*queue.Ticket, error) {
	var result *queue.Ticket

	attempt := func(ctx context.Context) error {
		t, err := f.queues.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := f.authorize(ctx, t.BusinessID); err != nil {
			return err
		}
		prev := t.Status
		if err := apply(t, f.clock.Now()); err != nil {
			return err
		}
		if err := f.queues.UpdateTicket(ctx, t, prev); err != nil {
			return err
		}
		result = t
		return nil
	}

	if err := retryOnce(ctx, attempt); err != nil {
		return nil, err
	}
	return result, nil
}

// TicketStatus reads a ticket with its live position estimate. A called
// ticket past its tolerance is expired lazily here, so clients observe
// the no-show without waiting for the sweep.
func (f *Facade) TicketStatus(ctx context.Context, ticketID uuid.UUID) (*TicketView, error) {
	t, err := f.queues.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	q, err := f.queues.GetQueue(ctx, t.QueueID)
	if err != nil {
		return nil, err
	}

	now := f.clock.Now()
	if changed, _ := queue.ExpireIfOverdue(t, q.ToleranceTime, now); changed {
		// CAS miss means someone else already resolved it; the event
		// fires only for the winner, so it never duplicates.
		if err := f.queues.UpdateTicket(ctx, t, queue.TicketCalled); err == nil {
			f.emit(ctx, noShowEvent(t, now))
		}
	}

	active, err := f.queues.ListActiveTickets(ctx, t.QueueID)
	if err != nil {
		return nil, err
	}
	pos := queue.EstimatedPosition(t, active)
	return &TicketView{
		Ticket:        *t,
		Position:      pos,
		EstimatedWait: queue.EstimatedWait(pos, q.AverageServiceTime),
		CurrentNumber: q.CurrentNumber,
	}, nil
}

// ExpireTicket applies the tolerance check to one ticket on demand.
// Idempotent; reports whether this call performed the flip.
func (f *Facade) ExpireTicket(ctx context.Context, ticketID uuid.UUID) (bool, error) {
	t, err := f.queues.GetTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}
	q, err := f.queues.GetQueue(ctx, t.QueueID)
	if err != nil {
		return false, err
	}
	now := f.clock.Now()
	changed, err := queue.ExpireIfOverdue(t, q.ToleranceTime, now)
	if err != nil || !changed {
		return false, err
	}
	if err := f.queues.UpdateTicket(ctx, t, queue.TicketCalled); err != nil {
		if errors.Is(err, queue.ErrConcurrentWrite) {
			// Lost the race to another expirer; same terminal state.
			return false, nil
		}
		return false, err
	}
	f.emit(ctx, noShowEvent(t, now))
	return true, nil
}

func noShowEvent(t *queue.Ticket, now time.Time) Event {
	return Event{
		Type:       EventTicketNoShow,
		EntityID:   t.ID,
		BusinessID: t.BusinessID,
		Payload: map[string]any{
			"queue_id":      t.QueueID.String(),
			"ticket_number": t.Number,
		},
		At: now,
	}
}

func (f *Facade) emit(ctx context.Context, ev Event) {
	f.events.Publish(ctx, ev)
}
