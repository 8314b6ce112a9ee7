package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const queueColumns = `id, business_id, name, description, average_service_time,
	tolerance_time, max_capacity, current_number, last_issued_number, status,
	is_active, working_hours, last_reset_date, created_at, updated_at`

const ticketColumns = `id, queue_id, business_id, ticket_number, status, position,
	rating, feedback, created_at, called_at, attending_started_at, completed_at`

func scanQueue(row pgx.Row) (*Queue, error) {
	var q Queue
	var hours []byte
	var lastReset *string
	err := row.Scan(
		&q.ID, &q.BusinessID, &q.Name, &q.Description, &q.AverageServiceTime,
		&q.ToleranceTime, &q.MaxCapacity, &q.CurrentNumber, &q.LastIssuedNumber,
		&q.Status, &q.IsActive, &hours, &lastReset, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}
	if lastReset != nil {
		q.LastResetDate = *lastReset
	}
	if len(hours) > 0 {
		var ws schedule.WeekSchedule
		if err := json.Unmarshal(hours, &ws); err != nil {
			return nil, fmt.Errorf("decode working_hours for queue %s: %w", q.ID, err)
		}
		q.Hours = &ws
	}
	return &q, nil
}

func scanTicket(row pgx.Row) (*Ticket, error) {
	var t Ticket
	err := row.Scan(
		&t.ID, &t.QueueID, &t.BusinessID, &t.Number, &t.Status, &t.Position,
		&t.Rating, &t.Feedback, &t.CreatedAt, &t.CalledAt,
		&t.AttendingStartedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgRepository) GetQueue(ctx context.Context, id uuid.UUID) (*Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM queues
		WHERE id = $1
	`, id)
	return scanQueue(row)
}

func (r *PgRepository) GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1
	`, id)
	return scanTicket(row)
}

func (r *PgRepository) ListActiveTickets(ctx context.Context, queueID uuid.UUID) ([]Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE queue_id = $1
		  AND status IN ('aguardando', 'chamado', 'atendendo')
		ORDER BY ticket_number
	`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateTicket(ctx context.Context, q *Queue, prevIssued int, t *Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE queues
		SET current_number = $2,
		    last_issued_number = $3,
		    last_reset_date = $4,
		    updated_at = now()
		WHERE id = $1
		  AND last_issued_number = $5
	`, q.ID, q.CurrentNumber, q.LastIssuedNumber, nullableString(q.LastResetDate), prevIssued)
	if err != nil {
		return fmt.Errorf("update queue counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentWrite
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.QueueID, t.BusinessID, t.Number, t.Status, t.Position,
		t.Rating, t.Feedback, t.CreatedAt, t.CalledAt, t.AttendingStartedAt, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) AdvanceQueue(ctx context.Context, q *Queue, called, expired *Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if expired != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE tickets
			SET status = $2
			WHERE id = $1
			  AND status = $3
		`, expired.ID, TicketNoShow, TicketCalled)
		if err != nil {
			return fmt.Errorf("expire previous ticket: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrentWrite
		}
	}

	if called != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE tickets
			SET status = $2,
			    called_at = $3
			WHERE id = $1
			  AND status = $4
		`, called.ID, TicketCalled, called.CalledAt, TicketWaiting)
		if err != nil {
			return fmt.Errorf("call ticket: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrentWrite
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE queues
		SET current_number = $2,
		    updated_at = now()
		WHERE id = $1
	`, q.ID, q.CurrentNumber)
	if err != nil {
		return fmt.Errorf("advance current number: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateTicket(ctx context.Context, t *Ticket, expect TicketStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET status = $2,
		    position = $3,
		    rating = $4,
		    feedback = $5,
		    called_at = $6,
		    attending_started_at = $7,
		    completed_at = $8
		WHERE id = $1
		  AND status = $9
	`, t.ID, t.Status, t.Position, t.Rating, t.Feedback,
		t.CalledAt, t.AttendingStartedAt, t.CompletedAt, expect)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentWrite
	}
	return nil
}

func (r *PgRepository) ListOverdueCalled(ctx context.Context, now time.Time) ([]CalledTicket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.queue_id, t.business_id, t.ticket_number, t.status, t.position,
		       t.rating, t.feedback, t.created_at, t.called_at, t.attending_started_at,
		       t.completed_at, q.tolerance_time
		FROM tickets t
		JOIN queues q ON q.id = t.queue_id
		WHERE t.status = 'chamado'
		  AND t.called_at IS NOT NULL
		  AND t.called_at + make_interval(mins => q.tolerance_time) < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CalledTicket
	for rows.Next() {
		var ct CalledTicket
		err := rows.Scan(
			&ct.ID, &ct.QueueID, &ct.BusinessID, &ct.Number, &ct.Status, &ct.Position,
			&ct.Rating, &ct.Feedback, &ct.CreatedAt, &ct.CalledAt,
			&ct.AttendingStartedAt, &ct.CompletedAt, &ct.ToleranceTime,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, ct)
	}
	return result, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
