package repository

import (
	"context"
	"database/sql"
	"time"
)

// ActivityRepo writes audit rows into activity_log. Only the queue
// consumer inserts here; request handlers publish events to the broker
// instead of touching this table directly.
type ActivityRepo struct{ DB *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

// Insert appends one audit row. occurredAt is the event timestamp from
// the producer, not the consume time.
func (r *ActivityRepo) Insert(ctx context.Context, action, entityType, entityID, actorID, detail string, occurredAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO activity_log (action, entity_type, entity_id, actor_id, detail, created_at)
		 VALUES (?,?,?,?,?,?)`,
		action, entityType, entityID, nullable(actorID), detail, occurredAt.UTC())
	return err
}
