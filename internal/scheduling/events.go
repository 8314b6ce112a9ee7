package scheduling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	EventTicketIssued           = "TICKET_ISSUED"
	EventTicketCalled           = "TICKET_CALLED"
	EventTicketNoShow           = "TICKET_NO_SHOW"
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventAppointmentReminderDue = "APPOINTMENT_REMINDER_DUE"
)

// Event is what the engine tells the outside world. Events fire after
// the critical section commits; the delivery component consumes them
// asynchronously and the engine never waits for it.
type Event struct {
	Type       string         `json:"type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	BusinessID uuid.UUID      `json:"business_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	At         time.Time      `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// NopPublisher drops events; used where no dispatcher is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Publishers fans one event out to several sinks.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, ev Event) {
	for _, p := range ps {
		p.Publish(ctx, ev)
	}
}

// PgEventLog appends events to the event_logs table for auditing and
// replay. Insert failures are logged, never propagated.
type PgEventLog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgEventLog(pool *pgxpool.Pool, logger *zap.Logger) *PgEventLog {
	return &PgEventLog{pool: pool, logger: logger}
}

func (l *PgEventLog) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		l.logger.Warn("marshal event payload", zap.String("type", ev.Type), zap.Error(err))
		payload = nil
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_id, business_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.Type, ev.EntityID, ev.BusinessID, payload, ev.At)
	if err != nil {
		l.logger.Warn("insert event log",
			zap.String("type", ev.Type),
			zap.String("entity_id", ev.EntityID.String()),
			zap.Error(err))
	}
}

// RawPublisher is the byte-level sink behind a wire publisher, such as
// the Redis event channel.
type RawPublisher interface {
	Publish(ctx context.Context, payload []byte)
}

// WirePublisher serializes events onto a raw sink.
type WirePublisher struct {
	sink   RawPublisher
	logger *zap.Logger
}

func NewWirePublisher(sink RawPublisher, logger *zap.Logger) *WirePublisher {
	return &WirePublisher{sink: sink, logger: logger}
}

func (w *WirePublisher) Publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		w.logger.Warn("marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	w.sink.Publish(ctx, data)
}
