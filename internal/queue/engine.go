package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueClosed           = errors.New("queue is not open")
	ErrCapacityExceeded      = errors.New("queue capacity exceeded")
	ErrEmptyQueue            = errors.New("no tickets waiting")
	ErrPreviousTicketPending = errors.New("previous ticket has not been resolved")
	ErrInvalidTransition     = errors.New("invalid ticket transition")
	ErrAlreadyRated          = errors.New("ticket already rated")
	ErrInvalidRating         = errors.New("rating must be between 1 and 5")
)

// Issue hands out the next ticket number. The queue must be open and
// below capacity; active is the snapshot of tickets currently occupying
// the queue. Mutates the queue's last issued number; the caller persists
// both the ticket and the counter in the same transaction.
func Issue(q *Queue, active []Ticket, now time.Time) (*Ticket, error) {
	if !q.IsActive || q.Status != StatusOpen {
		return nil, ErrQueueClosed
	}
	occupying := 0
	for _, t := range active {
		if t.Status.Occupying() {
			occupying++
		}
	}
	if q.MaxCapacity > 0 && occupying >= q.MaxCapacity {
		return nil, ErrCapacityExceeded
	}

	q.LastIssuedNumber++
	t := &Ticket{
		ID:         uuid.New(),
		QueueID:    q.ID,
		BusinessID: q.BusinessID,
		Number:     q.LastIssuedNumber,
		Status:     TicketWaiting,
		Position:   occupying + 1,
		CreatedAt:  now,
	}
	return t, nil
}

// CallNext picks the lowest-numbered waiting ticket and calls it,
// advancing the queue's current number. If a ticket is still called or
// being served it must be resolved first: a called ticket past the
// queue's tolerance flips to no-show (returned as expired); anything
// else rejects with ErrPreviousTicketPending so a client who has not
// timed out is never skipped.
func CallNext(q *Queue, tickets []Ticket, now time.Time) (called, expired *Ticket, err error) {
	for i := range tickets {
		t := &tickets[i]
		switch t.Status {
		case TicketInService:
			return nil, nil, ErrPreviousTicketPending
		case TicketCalled:
			overdue, _ := ExpireIfOverdue(t, q.ToleranceTime, now)
			if !overdue {
				return nil, nil, ErrPreviousTicketPending
			}
			expired = t
		}
	}

	var next *Ticket
	for i := range tickets {
		t := &tickets[i]
		if t.Status != TicketWaiting {
			continue
		}
		if next == nil || t.Number < next.Number {
			next = t
		}
	}
	if next == nil {
		return nil, expired, ErrEmptyQueue
	}

	next.Status = TicketCalled
	calledAt := now
	next.CalledAt = &calledAt
	q.CurrentNumber = next.Number
	return next, expired, nil
}

// BeginService moves a called ticket to the serving state.
func BeginService(t *Ticket, now time.Time) error {
	if !CanTransition(ActionStart, t.Status) {
		return ErrInvalidTransition
	}
	t.Status = TicketInService
	started := now
	t.AttendingStartedAt = &started
	return nil
}

// Complete finishes a ticket that is being served.
func Complete(t *Ticket, now time.Time) error {
	if !CanTransition(ActionComplete, t.Status) {
		return ErrInvalidTransition
	}
	t.Status = TicketDone
	done := now
	t.CompletedAt = &done
	return nil
}

// Cancel is the client-initiated exit, allowed while waiting or called.
// Cancelling an already-terminal ticket is an error, not a no-op.
func Cancel(t *Ticket) error {
	if !CanTransition(ActionCancel, t.Status) {
		return ErrInvalidTransition
	}
	t.Status = TicketCancelled
	return nil
}

// ExpireIfOverdue flips a called ticket to no-show once the tolerance
// window has elapsed since it was called. Idempotent: tickets in any
// other state are left untouched and report no change.
func ExpireIfOverdue(t *Ticket, toleranceMinutes int, now time.Time) (bool, error) {
	if t.Status != TicketCalled || t.CalledAt == nil {
		return false, nil
	}
	if now.Sub(*t.CalledAt) <= time.Duration(toleranceMinutes)*time.Minute {
		return false, nil
	}
	t.Status = TicketNoShow
	return true, nil
}

// Rate attaches a 1 to 5 rating and optional feedback to a completed
// ticket.
func Rate(t *Ticket, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if !CanTransition(ActionRate, t.Status) {
		return ErrInvalidTransition
	}
	if t.Rating != nil {
		return ErrAlreadyRated
	}
	r := rating
	t.Rating = &r
	if feedback != "" {
		f := feedback
		t.Feedback = &f
	}
	return nil
}

// EstimatedPosition counts the tickets ahead of t: waiting tickets with
// a lower number, plus one when a ticket is currently called or being
// served. The result is an estimate for display, never authoritative.
func EstimatedPosition(t *Ticket, tickets []Ticket) int {
	pos := 1
	for _, other := range tickets {
		if other.ID == t.ID {
			continue
		}
		switch other.Status {
		case TicketWaiting:
			if other.Number < t.Number {
				pos++
			}
		case TicketCalled, TicketInService:
			pos++
		}
	}
	return pos
}

// EstimatedWait converts a position to an ETA using the queue's average
// service time.
func EstimatedWait(position, averageServiceTime int) time.Duration {
	if position < 1 {
		return 0
	}
	return time.Duration(position-1) * time.Duration(averageServiceTime) * time.Minute
}

// ResetForNewDay zeroes both counters when the stored reset date is not
// today. Idempotent within a day; ticket numbers restart at 1 afterward.
func ResetForNewDay(q *Queue, today string) bool {
	if q.LastResetDate == today {
		return false
	}
	q.CurrentNumber = 0
	q.LastIssuedNumber = 0
	q.LastResetDate = today
	return true
}
