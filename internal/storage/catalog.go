// Package storage holds the pgx-backed adapters for the availability engine's
// collaborator ports and the write-side operations behind the admin surfaces.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/libs/db"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrSlotClosed       = errors.New("slot manually closed")
	ErrInvalidState     = errors.New("invalid state transition")
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CatalogRepository resolves service codes against the services table.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ServiceByCode returns (nil, false, nil) for unknown or inactive codes;
// the caller decides whether that is SERVICE_NOT_FOUND or benign.
func (r *CatalogRepository) ServiceByCode(ctx context.Context, code string) (*model.Service, bool, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, duration_minutes, buffer_minutes, is_active
		FROM services
		WHERE code = $1 AND is_active
	`, code).Scan(&svc.ID, &svc.Code, &svc.Name, &svc.DurationMinutes, &svc.BufferMinutes, &svc.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &svc, true, nil
}

// ServiceCodeByID is the reverse lookup, used when only the stored id is at
// hand (closure deactivation).
func (r *CatalogRepository) ServiceCodeByID(ctx context.Context, id uuid.UUID) (string, bool, error) {
	var code string
	err := r.pool.QueryRow(ctx, `SELECT code FROM services WHERE id = $1`, id).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return code, true, nil
}
