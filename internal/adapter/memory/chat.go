package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"prism/internal/domain"
)

// --- ChatRepository ---

// CreateSession stores a new chat session.
func (db *DB) CreateSession(ctx context.Context, s *domain.ChatSession) (*domain.ChatSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.chatIDCounter++
	created := *s
	created.ID = db.chatIDCounter
	created.Messages = nil
	if created.CreatedAt.IsZero() {
		created.CreatedAt = db.now()
		created.UpdatedAt = created.CreatedAt
	}
	db.chatSessions = append(db.chatSessions, created)
	return &created, nil
}

// GetSession retrieves one of the user's sessions with its message count.
func (db *DB) GetSession(ctx context.Context, userID, id int64) (*domain.ChatSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, s := range db.chatSessions {
		if s.UserID == userID && s.ID == id {
			s.MessageCount = db.countChatMessages(s.ID)
			return &s, nil
		}
	}
	return nil, nil
}

// ListSessions lists the user's sessions, most recently active first.
func (db *DB) ListSessions(ctx context.Context, userID int64, offset, limit int) ([]domain.ChatSession, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var all []domain.ChatSession
	for _, s := range db.chatSessions {
		if s.UserID == userID {
			s.MessageCount = db.countChatMessages(s.ID)
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// TouchSession sets a session's update time.
func (db *DB) TouchSession(ctx context.Context, id int64, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.chatSessions {
		if db.chatSessions[i].ID == id {
			db.chatSessions[i].UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("chat session %d: %w", id, domain.ErrNotFound)
}

// DeleteSession removes a session and its messages.
func (db *DB) DeleteSession(ctx context.Context, userID, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, s := range db.chatSessions {
		if s.UserID != userID || s.ID != id {
			continue
		}
		db.chatSessions = append(db.chatSessions[:i], db.chatSessions[i+1:]...)
		kept := db.chatMessages[:0]
		for _, m := range db.chatMessages {
			if m.SessionID != id {
				kept = append(kept, m)
			}
		}
		db.chatMessages = kept
		return nil
	}
	return fmt.Errorf("chat session %d: %w", id, domain.ErrNotFound)
}

// AddChatMessage appends a message to a session.
func (db *DB) AddChatMessage(ctx context.Context, m *domain.ChatMessage) (*domain.ChatMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.chatMsgIDCounter++
	created := *m
	created.ID = db.chatMsgIDCounter
	if created.CreatedAt.IsZero() {
		created.CreatedAt = db.now()
	}
	db.chatMessages = append(db.chatMessages, created)
	return &created, nil
}

// RecentChatMessages returns the last limit messages of a session in
// chronological order.
func (db *DB) RecentChatMessages(ctx context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.ChatMessage
	for _, m := range db.chatMessages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (db *DB) countChatMessages(sessionID int64) int {
	n := 0
	for _, m := range db.chatMessages {
		if m.SessionID == sessionID {
			n++
		}
	}
	return n
}
