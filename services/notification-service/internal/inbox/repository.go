package inbox

import (
	"context"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
)

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// Record claims an event ID. It reports false when the event was already
// processed.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.PgCode(err) == db.CodeUniqueViolation {
		return false, nil
	}
	return false, err
}
