package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntitlementChecker is the gate the billing subsystem exposes: whether
// scheduling features are enabled for a business. The facade consults it
// before every mutating operation and fails fast on false.
type EntitlementChecker interface {
	SchedulingEnabled(ctx context.Context, businessID uuid.UUID) (bool, error)
}

// PgEntitlements reads the business_access table the billing service
// maintains. A missing row means the business was never provisioned, so
// access is denied.
type PgEntitlements struct {
	pool *pgxpool.Pool
}

func NewPgEntitlements(pool *pgxpool.Pool) *PgEntitlements {
	return &PgEntitlements{pool: pool}
}

func (e *PgEntitlements) SchedulingEnabled(ctx context.Context, businessID uuid.UUID) (bool, error) {
	var enabled bool
	err := e.pool.QueryRow(ctx, `
		SELECT scheduling_enabled
		FROM business_access
		WHERE business_id = $1
	`, businessID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return enabled, nil
}

// AllowAll grants everything; used by the simulator and tests.
type AllowAll struct{}

func (AllowAll) SchedulingEnabled(context.Context, uuid.UUID) (bool, error) {
	return true, nil
}
