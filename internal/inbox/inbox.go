// Package inbox deduplicates consumed events so cache invalidation handlers
// run at most once per event even when Kafka redelivers.
package inbox

import (
	"context"

	"github.com/clinicboard/clinicboard/internal/storage"
	"github.com/clinicboard/clinicboard/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record marks the event as seen. It returns false when the event was already
// recorded, which tells the consumer to skip the handler.
func (r *Repository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
