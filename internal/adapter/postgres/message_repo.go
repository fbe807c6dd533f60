package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prism/internal/domain"
)

const messageColumns = "id, user_id, message_type, title, content, attribution, is_read, created_at, read_at"

func scanMessage(row interface{ Scan(...any) error }) (*domain.AppMessage, error) {
	var m domain.AppMessage
	var typ string
	if err := row.Scan(&m.ID, &m.UserID, &typ, &m.Title, &m.Content, &m.Attribution, &m.IsRead, &m.CreatedAt, &m.ReadAt); err != nil {
		return nil, err
	}
	m.Type = domain.MessageType(typ)
	return &m, nil
}

// CreateMessage stores a new message.
func (d *DB) CreateMessage(ctx context.Context, m *domain.AppMessage) (*domain.AppMessage, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return scanMessage(d.q.QueryRowContext(ctx,
		`INSERT INTO app_messages (user_id, message_type, title, content, attribution, is_read, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+messageColumns,
		m.UserID, string(m.Type), m.Title, m.Content, m.Attribution, m.IsRead, m.CreatedAt, m.ReadAt,
	))
}

// GetMessage retrieves one of the user's messages.
func (d *DB) GetMessage(ctx context.Context, userID, id int64) (*domain.AppMessage, error) {
	m, err := scanMessage(d.q.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM app_messages WHERE user_id = $1 AND id = $2", userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListMessages lists the user's messages, newest first.
func (d *DB) ListMessages(ctx context.Context, userID int64, f domain.MessageFilter) ([]domain.AppMessage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = noLimit
	}
	rows, err := d.q.QueryContext(ctx,
		"SELECT "+messageColumns+` FROM app_messages
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read) AND ($3 = '' OR message_type = $3) AND ($4 = '' OR title = $4)
		ORDER BY created_at DESC, id DESC LIMIT $5`,
		userID, f.UnreadOnly, string(f.Type), f.Title, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.AppMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// CountUnread counts the user's unread messages.
func (d *DB) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := d.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM app_messages WHERE user_id = $1 AND NOT is_read", userID).Scan(&n)
	return n, err
}

// MarkRead flags a message as read, keeping the first read time.
func (d *DB) MarkRead(ctx context.Context, userID, id int64, at time.Time) (*domain.AppMessage, error) {
	m, err := scanMessage(d.q.QueryRowContext(ctx,
		`UPDATE app_messages SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE user_id = $1 AND id = $2
		RETURNING `+messageColumns,
		userID, id, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	return m, err
}

// MarkAllRead flags every unread message of the user.
func (d *DB) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int, error) {
	res, err := d.q.ExecContext(ctx,
		"UPDATE app_messages SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT is_read", userID, at)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteMessage removes one of the user's messages.
func (d *DB) DeleteMessage(ctx context.Context, userID, id int64) error {
	res, err := d.q.ExecContext(ctx, "DELETE FROM app_messages WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("message %d", id))
}
