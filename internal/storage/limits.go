package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/libs/db"
)

// LimitRepository reads and writes per-service capacity limits.
type LimitRepository struct {
	pool *db.Pool
}

func NewLimitRepository(pool *db.Pool) *LimitRepository {
	return &LimitRepository{pool: pool}
}

// PolicyFor resolves the service's limit row into a normalized policy.
// A missing row means unlimited.
func (r *LimitRepository) PolicyFor(ctx context.Context, serviceID uuid.UUID) (availability.LimitPolicy, error) {
	row, err := r.Get(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return availability.Unlimited(), nil
		}
		return availability.Unlimited(), err
	}
	return availability.PolicyFromRow(row), nil
}

// Get returns the raw limit row for admin reads.
func (r *LimitRepository) Get(ctx context.Context, serviceID uuid.UUID) (*model.CapacityLimit, error) {
	var lim model.CapacityLimit
	err := r.pool.QueryRow(ctx, `
		SELECT service_id, is_active, daily_limit, soft_daily_limit, daily_limit_minutes, updated_at
		FROM capacity_limits
		WHERE service_id = $1
	`, serviceID).Scan(&lim.ServiceID, &lim.IsActive, &lim.DailyLimit,
		&lim.SoftDailyLimit, &lim.DailyLimitMinutes, &lim.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lim, nil
}

// Upsert replaces the service's limit row. Field validation (exactly one
// policy dimension, soft limit not above the hard one) happens at the
// handler boundary.
func (r *LimitRepository) Upsert(ctx context.Context, lim *model.CapacityLimit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO capacity_limits
			(service_id, is_active, daily_limit, soft_daily_limit, daily_limit_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (service_id)
		DO UPDATE SET is_active = EXCLUDED.is_active,
			daily_limit = EXCLUDED.daily_limit,
			soft_daily_limit = EXCLUDED.soft_daily_limit,
			daily_limit_minutes = EXCLUDED.daily_limit_minutes,
			updated_at = now()
	`, lim.ServiceID, lim.IsActive, lim.DailyLimit, lim.SoftDailyLimit, lim.DailyLimitMinutes)
	return err
}
