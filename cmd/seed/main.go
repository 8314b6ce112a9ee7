package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qzero-app/scheduling-engine/internal/db"
	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	businesses, err := seedBusinesses(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed businesses: %v", err)
	}
	if err := seedQueues(context.Background(), pool, businesses); err != nil {
		log.Fatalf("seed queues: %v", err)
	}
	if err := seedServices(context.Background(), pool, businesses); err != nil {
		log.Fatalf("seed services: %v", err)
	}

	log.Println("seed complete")
}

// weekdayHours builds a typical commercial schedule: Mon-Fri with a
// lunch break, Saturday mornings, Sunday closed.
func weekdayHours() []byte {
	var ws schedule.WeekSchedule
	day := schedule.DaySchedule{
		Enabled:    true,
		Start:      9 * 60,
		End:        18 * 60,
		HasBreak:   true,
		BreakStart: 12 * 60,
		BreakEnd:   13 * 60,
	}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		ws.SetDay(wd, day)
	}
	ws.SetDay(time.Saturday, schedule.DaySchedule{
		Enabled: true,
		Start:   9 * 60,
		End:     13 * 60,
	})

	raw, err := json.Marshal(&ws)
	if err != nil {
		log.Fatalf("encode working hours: %v", err)
	}
	return raw
}

func seedBusinesses(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d businesses", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO businesses (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, gofakeit.Company(), gofakeit.Email())
		if err != nil {
			return nil, err
		}

		// Every tenth business stays unentitled to exercise the gate.
		_, err = tx.Exec(ctx, `
			INSERT INTO business_access (business_id, scheduling_enabled, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, i%10 != 0)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("businesses seeded")
	return ids, nil
}

func seedQueues(ctx context.Context, pool *pgxpool.Pool, businesses []uuid.UUID) error {
	log.Printf("seeding queues for %d businesses", len(businesses))

	hours := weekdayHours()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, businessID := range businesses {
		for i := 0; i < gofakeit.Number(1, 3); i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO queues (
					id, business_id, name, description, average_service_time,
					tolerance_time, max_capacity, current_number, last_issued_number,
					status, is_active, working_hours, last_reset_date,
					created_at, updated_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 'open', true, $8, '', now(), now())
			`, uuid.New(), businessID,
				gofakeit.JobTitle(),
				gofakeit.Sentence(6),
				gofakeit.Number(5, 30),
				gofakeit.Number(5, 15),
				gofakeit.Number(0, 100),
				hours)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("queues seeded")
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, businesses []uuid.UUID) error {
	log.Printf("seeding services for %d businesses", len(businesses))

	hours := weekdayHours()
	durations := []int{15, 20, 30, 45, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, businessID := range businesses {
		for i := 0; i < gofakeit.Number(1, 4); i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO services (
					id, business_id, name, description, duration, buffer_time,
					tolerance_time, max_daily_slots, is_active, working_hours,
					created_at, updated_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, now(), now())
			`, uuid.New(), businessID,
				gofakeit.ProductName(),
				gofakeit.Sentence(8),
				durations[gofakeit.Number(0, len(durations)-1)],
				gofakeit.Number(0, 15),
				gofakeit.Number(10, 30),
				gofakeit.Number(0, 20),
				hours)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("services seeded")
	return nil
}
