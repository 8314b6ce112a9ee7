// Package queue implements the walk-in ticket line: ticket numbering,
// the ticket status state machine, and no-show tolerance handling.
// The decision logic is pure and operates on in-memory snapshots; the
// facade owns locking and persistence.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

// Status is the operational state of a queue.
type Status string

const (
	StatusOpen   Status = "open"
	StatusPaused Status = "paused"
	StatusClosed Status = "closed"
)

// TicketStatus values keep the product's stored vocabulary.
type TicketStatus string

const (
	TicketWaiting   TicketStatus = "aguardando"
	TicketCalled    TicketStatus = "chamado"
	TicketInService TicketStatus = "atendendo"
	TicketDone      TicketStatus = "concluido"
	TicketCancelled TicketStatus = "cancelado"
	TicketNoShow    TicketStatus = "falta"
)

// Terminal reports whether the status admits no further transitions.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketDone, TicketCancelled, TicketNoShow:
		return true
	}
	return false
}

// Occupying reports whether the ticket counts toward queue capacity.
func (s TicketStatus) Occupying() bool {
	switch s {
	case TicketWaiting, TicketCalled, TicketInService:
		return true
	}
	return false
}

type Queue struct {
	ID                 uuid.UUID
	BusinessID         uuid.UUID
	Name               string
	Description        *string
	AverageServiceTime int // minutes, estimate only
	ToleranceTime      int // minutes a called client has to appear
	MaxCapacity        int // 0 means unbounded
	CurrentNumber      int
	LastIssuedNumber   int
	Status             Status
	IsActive           bool
	Hours              *schedule.WeekSchedule
	LastResetDate      string // YYYY-MM-DD of the last counter reset
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Ticket struct {
	ID                 uuid.UUID
	QueueID            uuid.UUID
	BusinessID         uuid.UUID
	Number             int
	Status             TicketStatus
	Position           int // snapshot of the computed position when last observed
	Rating             *int
	Feedback           *string
	CreatedAt          time.Time
	CalledAt           *time.Time
	AttendingStartedAt *time.Time
	CompletedAt        *time.Time
}
