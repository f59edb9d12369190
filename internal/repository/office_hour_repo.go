package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

type OfficeHourRepo struct {
	pool *pgxpool.Pool
}

func NewOfficeHourRepo(pool *pgxpool.Pool) *OfficeHourRepo {
	return &OfficeHourRepo{pool: pool}
}

const officeHourColumns = `id, instructor_id, student_id, course_id, topic, description,
	scheduled_start, scheduled_end, status, meeting_room_id, analytics, notes, feedback,
	recording, cancelled_by, cancellation_reason, reminder_sent_at, version, created_at, updated_at`

func scanOfficeHour(row pgx.Row) (*models.OfficeHourSession, error) {
	s := &models.OfficeHourSession{}
	err := row.Scan(
		&s.ID, &s.InstructorID, &s.StudentID, &s.CourseID, &s.Topic, &s.Description,
		&s.ScheduledStart, &s.ScheduledEnd, &s.Status, &s.MeetingRoomID, &s.Analytics, &s.Notes, &s.Feedback,
		&s.Recording, &s.CancelledBy, &s.CancellationReason, &s.ReminderSentAt, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *OfficeHourRepo) Create(ctx context.Context, s *models.OfficeHourSession) error {
	if s.Notes == nil {
		s.Notes = []models.OfficeHourNote{}
	}

	query := `
		INSERT INTO office_hour_sessions (id, instructor_id, student_id, course_id, topic, description,
			scheduled_start, scheduled_end, status, meeting_room_id, analytics, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING version, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.InstructorID, s.StudentID, s.CourseID, s.Topic, s.Description,
		s.ScheduledStart, s.ScheduledEnd, s.Status, s.MeetingRoomID, s.Analytics, s.Notes,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
}

func (r *OfficeHourRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.OfficeHourSession, error) {
	s, err := scanOfficeHour(r.pool.QueryRow(ctx, `SELECT `+officeHourColumns+` FROM office_hour_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Save writes every mutable column in one statement so a transition and its
// analytics land together or not at all. The write only applies if the row
// still carries s.Version; otherwise it returns ErrConflict and s is unchanged.
func (r *OfficeHourRepo) Save(ctx context.Context, s *models.OfficeHourSession) error {
	var version int
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE office_hour_sessions
		SET topic = $2, description = $3, scheduled_start = $4, scheduled_end = $5, status = $6,
			analytics = $7, notes = $8, feedback = $9, recording = $10, cancelled_by = $11,
			cancellation_reason = $12, reminder_sent_at = $13,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $14
		RETURNING version, updated_at`,
		s.ID, s.Topic, s.Description, s.ScheduledStart, s.ScheduledEnd, s.Status,
		s.Analytics, s.Notes, s.Feedback, s.Recording, s.CancelledBy,
		s.CancellationReason, s.ReminderSentAt, s.Version,
	).Scan(&version, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM office_hour_sessions WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.Version = version
	s.UpdatedAt = updatedAt
	return nil
}

func (r *OfficeHourRepo) ListForUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*models.OfficeHourSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+officeHourColumns+`
		FROM office_hour_sessions
		WHERE (instructor_id = $1 OR student_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY scheduled_start DESC
		LIMIT $3 OFFSET $4`, userID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOfficeHours(rows)
}

// ListDueReminders returns scheduled sessions starting before now+lead that have
// not been reminded yet.
func (r *OfficeHourRepo) ListDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]*models.OfficeHourSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+officeHourColumns+`
		FROM office_hour_sessions
		WHERE status = 'scheduled'
		  AND reminder_sent_at IS NULL
		  AND scheduled_start > $1
		  AND scheduled_start <= $2
		ORDER BY scheduled_start ASC`, now, now.Add(lead))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOfficeHours(rows)
}

func (r *OfficeHourRepo) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE office_hour_sessions
		SET reminder_sent_at = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1`, id, at)
	return err
}

func collectOfficeHours(rows pgx.Rows) ([]*models.OfficeHourSession, error) {
	var sessions []*models.OfficeHourSession
	for rows.Next() {
		s, err := scanOfficeHour(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
