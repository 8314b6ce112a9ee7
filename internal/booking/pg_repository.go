package booking

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

const serviceColumns = `id, business_id, name, description, duration, buffer_time,
	tolerance_time, max_daily_slots, is_active, working_hours, created_at, updated_at`

const appointmentColumns = `id, business_id, service_id, service_name, appointment_date,
	appointment_time, duration, buffer_time, status, notes, rating, feedback,
	reminder_sent, created_at, updated_at`

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	var hours []byte
	err := row.Scan(
		&s.ID, &s.BusinessID, &s.Name, &s.Description, &s.Duration, &s.BufferTime,
		&s.ToleranceTime, &s.MaxDailySlots, &s.IsActive, &hours, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &s.Hours); err != nil {
			return nil, fmt.Errorf("decode working_hours for service %s: %w", s.ID, err)
		}
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var start string
	err := row.Scan(
		&a.ID, &a.BusinessID, &a.ServiceID, &a.ServiceName, &a.Date,
		&start, &a.Duration, &a.BufferTime, &a.Status, &a.Notes, &a.Rating,
		&a.Feedback, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Start, err = schedule.ParseClock(start)
	if err != nil {
		return nil, fmt.Errorf("decode appointment_time for %s: %w", a.ID, err)
	}
	return &a, nil
}

func (r *PgRepository) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListForDate(ctx context.Context, serviceID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE service_id = $1
		  AND appointment_date = $2
		ORDER BY appointment_time
	`, serviceID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, a.BusinessID, a.ServiceID, a.ServiceName, a.Date,
		a.Start.String(), a.Duration, a.BufferTime, a.Status, a.Notes, a.Rating,
		a.Feedback, a.ReminderSent, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment, expect AppointmentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    appointment_date = $3,
		    appointment_time = $4,
		    notes = $5,
		    rating = $6,
		    feedback = $7,
		    updated_at = $8
		WHERE id = $1
		  AND status = $9
	`, a.ID, a.Status, a.Date, a.Start.String(), a.Notes, a.Rating, a.Feedback, a.UpdatedAt, expect)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentWrite
	}
	return nil
}

func (r *PgRepository) ListOverdueConfirmed(ctx context.Context, now time.Time) ([]ConfirmedAppointment, error) {
	// appointment_date/appointment_time are fixed-width strings, so the
	// timestamp is rebuilt in SQL for the comparison.
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.business_id, a.service_id, a.service_name, a.appointment_date,
		       a.appointment_time, a.duration, a.buffer_time, a.status, a.notes,
		       a.rating, a.feedback, a.reminder_sent, a.created_at, a.updated_at,
		       s.tolerance_time
		FROM appointments a
		JOIN services s ON s.id = a.service_id
		WHERE a.status = 'confirmado'
		  AND to_timestamp(a.appointment_date || ' ' || a.appointment_time, 'YYYY-MM-DD HH24:MI')
		      + make_interval(mins => s.tolerance_time) < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConfirmedAppointment
	for rows.Next() {
		var ca ConfirmedAppointment
		var start string
		err := rows.Scan(
			&ca.ID, &ca.BusinessID, &ca.ServiceID, &ca.ServiceName, &ca.Date,
			&start, &ca.Duration, &ca.BufferTime, &ca.Status, &ca.Notes,
			&ca.Rating, &ca.Feedback, &ca.ReminderSent, &ca.CreatedAt, &ca.UpdatedAt,
			&ca.ToleranceTime,
		)
		if err != nil {
			return nil, err
		}
		if ca.Start, err = schedule.ParseClock(start); err != nil {
			return nil, fmt.Errorf("decode appointment_time for %s: %w", ca.ID, err)
		}
		result = append(result, ca)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListUnsentReminders(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date = $1
		  AND status IN ('agendado', 'confirmado', 'em_atendimento')
		  AND reminder_sent = false
		ORDER BY appointment_time
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_sent = false
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
