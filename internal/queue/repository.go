package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueNotFound   = errors.New("queue not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrConcurrentWrite = errors.New("concurrent write conflict")
)

// CalledTicket pairs a called ticket with its queue's tolerance so the
// expiry sweep can decide without loading every queue.
type CalledTicket struct {
	Ticket
	ToleranceTime int
}

// Repository is the persistence surface the facade drives. Mutations
// that touch a ticket and the queue counters together happen in one
// transaction; status writes are compare-and-swap so a lost race
// surfaces as ErrConcurrentWrite instead of a corrupted counter.
type Repository interface {
	GetQueue(ctx context.Context, id uuid.UUID) (*Queue, error)
	GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error)

	// ListActiveTickets returns the queue's occupying tickets ordered
	// by ticket number.
	ListActiveTickets(ctx context.Context, queueID uuid.UUID) ([]Ticket, error)

	// CreateTicket inserts the ticket and writes the queue counters,
	// guarded by prevIssued (the last issued number read before the
	// engine ran).
	CreateTicket(ctx context.Context, q *Queue, prevIssued int, t *Ticket) error

	// AdvanceQueue persists a CallNext outcome: the optional no-show
	// flip, the newly called ticket, and the queue's current number.
	AdvanceQueue(ctx context.Context, q *Queue, called, expired *Ticket) error

	// UpdateTicket writes the ticket's mutable fields if its stored
	// status still equals expect.
	UpdateTicket(ctx context.Context, t *Ticket, expect TicketStatus) error

	// ListOverdueCalled finds called tickets whose tolerance window has
	// elapsed, for the periodic no-show sweep.
	ListOverdueCalled(ctx context.Context, now time.Time) ([]CalledTicket, error)
}
