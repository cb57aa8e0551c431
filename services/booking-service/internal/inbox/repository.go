// Package inbox records which events a consumer has already handled.
package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/salonbook/bookingengine/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Claim marks eventID as taken. It reports false when another delivery of
// the same event got there first.
func (r *Repository) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release drops a claim so the next delivery of eventID is handled again.
func (r *Repository) Release(ctx context.Context, eventID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("release %s: %w", eventID, err)
	}
	return nil
}

// Prune forgets claims older than cutoff. Kafka retention bounds how late a
// redelivery can arrive, so older rows only cost space.
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inbox_events WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
