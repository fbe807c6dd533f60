package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prism/internal/domain"
)

const sessionColumns = `s.id, s.user_id, s.title, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)`

func scanChatSession(row interface{ Scan(...any) error }) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession stores a new chat session.
func (d *DB) CreateSession(ctx context.Context, s *domain.ChatSession) (*domain.ChatSession, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
		s.UpdatedAt = s.CreatedAt
	}
	created := &domain.ChatSession{UserID: s.UserID, Title: s.Title, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
	err := d.q.QueryRowContext(ctx,
		"INSERT INTO chat_sessions (user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id",
		s.UserID, s.Title, s.CreatedAt, s.UpdatedAt,
	).Scan(&created.ID)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetSession retrieves one of the user's sessions with its message count.
func (d *DB) GetSession(ctx context.Context, userID, id int64) (*domain.ChatSession, error) {
	s, err := scanChatSession(d.q.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM chat_sessions s WHERE s.user_id = $1 AND s.id = $2", userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListSessions lists the user's sessions, most recently active first.
func (d *DB) ListSessions(ctx context.Context, userID int64, offset, limit int) ([]domain.ChatSession, int, error) {
	var total int
	if err := d.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_sessions WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = noLimit
	}
	rows, err := d.q.QueryContext(ctx,
		"SELECT "+sessionColumns+` FROM chat_sessions s WHERE s.user_id = $1
		ORDER BY s.updated_at DESC, s.id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ChatSession
	for rows.Next() {
		s, err := scanChatSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// TouchSession sets a session's update time.
func (d *DB) TouchSession(ctx context.Context, id int64, at time.Time) error {
	res, err := d.q.ExecContext(ctx, "UPDATE chat_sessions SET updated_at = $2 WHERE id = $1", id, at)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("chat session %d", id))
}

// DeleteSession removes a session; its messages go with it.
func (d *DB) DeleteSession(ctx context.Context, userID, id int64) error {
	res, err := d.q.ExecContext(ctx, "DELETE FROM chat_sessions WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("chat session %d", id))
}

// AddChatMessage appends a message to a session.
func (d *DB) AddChatMessage(ctx context.Context, m *domain.ChatMessage) (*domain.ChatMessage, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var attachments any
	if len(m.Attachments) > 0 {
		attachments = string(m.Attachments)
	}
	created := *m
	err := d.q.QueryRowContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, attachments, model_name, tokens_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.SessionID, string(m.Role), m.Content, attachments, m.ModelName, m.TokensUsed, m.CreatedAt,
	).Scan(&created.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// RecentChatMessages returns the last limit messages in chronological order.
func (d *DB) RecentChatMessages(ctx context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = noLimit
	}
	rows, err := d.q.QueryContext(ctx,
		`SELECT id, session_id, role, content, attachments, model_name, tokens_used, created_at FROM (
			SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
		) recent ORDER BY created_at, id`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var role string
		var attachments []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &attachments, &m.ModelName, &m.TokensUsed, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.ChatRole(role)
		if len(attachments) > 0 {
			m.Attachments = attachments
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
