package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `id, kind, sender_id, recipient_id, thread_id, parent_id, body,
	attachments, delivered_to, read_by, reactions, thread_meta, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(
		&m.ID, &m.Kind, &m.SenderID, &m.RecipientID, &m.ThreadID, &m.ParentID, &m.Body,
		&m.Attachments, &m.DeliveredTo, &m.ReadBy, &m.Reactions, &m.ThreadMeta, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) Save(ctx context.Context, m *models.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Attachments == nil {
		m.Attachments = []models.Attachment{}
	}
	if m.DeliveredTo == nil {
		m.DeliveredTo = []uuid.UUID{}
	}
	if m.ReadBy == nil {
		m.ReadBy = []models.ReadReceipt{}
	}

	query := `
		INSERT INTO messages (id, kind, sender_id, recipient_id, thread_id, parent_id, body,
			attachments, delivered_to, read_by, reactions, thread_meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		m.ID, m.Kind, m.SenderID, m.RecipientID, m.ThreadID, m.ParentID, m.Body,
		m.Attachments, m.DeliveredTo, m.ReadBy, m.Reactions, m.ThreadMeta,
	).Scan(&m.CreatedAt)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// MarkRead appends a receipt for readerID to every listed message that does not
// already carry one and returns only the messages that changed.
func (r *MessageRepo) MarkRead(ctx context.Context, readerID uuid.UUID, ids []uuid.UUID, at time.Time) ([]*models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE messages
		SET read_by = read_by || jsonb_build_array(jsonb_build_object('user_id', $1::text, 'read_at', $2::timestamptz))
		WHERE id = ANY($3::uuid[])
		  AND NOT (read_by @> jsonb_build_array(jsonb_build_object('user_id', $1::text)))
		RETURNING `+messageColumns,
		readerID.String(), at, idStrs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	defer rows.Close()

	var updated []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		updated = append(updated, m)
	}
	return updated, rows.Err()
}

// RecordReply bumps the parent's thread metadata after a reply is stored.
func (r *MessageRepo) RecordReply(ctx context.Context, parentID, replierID uuid.UUID, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var meta *models.ThreadMeta
	if err := tx.QueryRow(ctx, `SELECT thread_meta FROM messages WHERE id = $1 FOR UPDATE`, parentID).Scan(&meta); err != nil {
		return notFound(err)
	}
	if meta == nil {
		meta = &models.ThreadMeta{}
	}

	meta.ReplyCount++
	meta.LastReplyAt = &at
	known := false
	for _, p := range meta.Participants {
		if p == replierID {
			known = true
			break
		}
	}
	if !known {
		meta.Participants = append(meta.Participants, replierID)
	}

	if _, err := tx.Exec(ctx, `UPDATE messages SET thread_meta = $2 WHERE id = $1`, parentID, meta); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *MessageRepo) ListDirectConversation(ctx context.Context, userA, userB uuid.UUID, limit int) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE kind = 'direct'
		  AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		ORDER BY created_at DESC
		LIMIT $3`, userA, userB, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListUnreadDirect returns direct messages addressed to userID without a receipt from them.
func (r *MessageRepo) ListUnreadDirect(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE kind = 'direct'
		  AND recipient_id = $1
		  AND NOT (read_by @> jsonb_build_array(jsonb_build_object('user_id', $1::text)))
		ORDER BY created_at ASC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]*models.Message, error) {
	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
