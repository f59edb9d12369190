package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

type ThreadRepo struct {
	pool *pgxpool.Pool
}

func NewThreadRepo(pool *pgxpool.Pool) *ThreadRepo {
	return &ThreadRepo{pool: pool}
}

func (r *ThreadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	t := &models.Thread{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, course_id, title, message_count, last_activity_at, created_at
		FROM threads WHERE id = $1`, id,
	).Scan(&t.ID, &t.CourseID, &t.Title, &t.MessageCount, &t.LastActivityAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// RecordActivity updates the thread summary counters after a message is stored.
func (r *ThreadRepo) RecordActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE threads
		SET message_count = message_count + 1,
			last_activity_at = GREATEST(COALESCE(last_activity_at, $2), $2)
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
