package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"prism/internal/domain"
)

// --- MessageRepository ---

// CreateMessage stores a new message.
func (db *DB) CreateMessage(ctx context.Context, m *domain.AppMessage) (*domain.AppMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.messageIDCounter++
	created := *m
	created.ID = db.messageIDCounter
	if created.CreatedAt.IsZero() {
		created.CreatedAt = db.now()
	}
	db.messages = append(db.messages, created)
	return &created, nil
}

// GetMessage retrieves one of the user's messages.
func (db *DB) GetMessage(ctx context.Context, userID, id int64) (*domain.AppMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, m := range db.messages {
		if m.UserID == userID && m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

// ListMessages lists the user's messages, newest first.
func (db *DB) ListMessages(ctx context.Context, userID int64, f domain.MessageFilter) ([]domain.AppMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.AppMessage
	for _, m := range db.messages {
		switch {
		case m.UserID != userID:
		case f.UnreadOnly && m.IsRead:
		case f.Type != "" && m.Type != f.Type:
		case f.Title != "" && m.Title != f.Title:
		default:
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// CountUnread counts the user's unread messages.
func (db *DB) CountUnread(ctx context.Context, userID int64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, m := range db.messages {
		if m.UserID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

// MarkRead flags a message as read, keeping the first read time.
func (db *DB) MarkRead(ctx context.Context, userID, id int64, at time.Time) (*domain.AppMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.messages {
		m := &db.messages[i]
		if m.UserID != userID || m.ID != id {
			continue
		}
		if !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
		}
		out := *m
		return &out, nil
	}
	return nil, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
}

// MarkAllRead flags every unread message of the user.
func (db *DB) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for i := range db.messages {
		m := &db.messages[i]
		if m.UserID == userID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
			n++
		}
	}
	return n, nil
}

// DeleteMessage removes one of the user's messages.
func (db *DB) DeleteMessage(ctx context.Context, userID, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, m := range db.messages {
		if m.UserID == userID && m.ID == id {
			db.messages = append(db.messages[:i], db.messages[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
}
