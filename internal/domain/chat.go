package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// DefaultChatTitle names sessions created without a title.
const DefaultChatTitle = "New chat"

// ChatSession is one conversation thread with the assistant.
type ChatSession struct {
	ID           int64         `json:"id"`
	UserID       int64         `json:"-"`
	Title        string        `json:"title"`
	MessageCount int           `json:"message_count"`
	Messages     []ChatMessage `json:"messages,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ChatMessage is one turn in a session.
type ChatMessage struct {
	ID          int64           `json:"id"`
	SessionID   int64           `json:"session_id"`
	Role        ChatRole        `json:"role"`
	Content     string          `json:"content"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	ModelName   string          `json:"model_name,omitempty"`
	TokensUsed  int             `json:"tokens_used,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ChatRepository is the port for chat persistence. Lookups return
// (nil, nil) when nothing matches; DeleteSession returns ErrNotFound.
type ChatRepository interface {
	CreateSession(ctx context.Context, s *ChatSession) (*ChatSession, error)
	GetSession(ctx context.Context, userID, id int64) (*ChatSession, error)
	ListSessions(ctx context.Context, userID int64, offset, limit int) ([]ChatSession, int, error)
	TouchSession(ctx context.Context, id int64, at time.Time) error
	DeleteSession(ctx context.Context, userID, id int64) error
	AddChatMessage(ctx context.Context, m *ChatMessage) (*ChatMessage, error)
	// RecentChatMessages returns the last limit messages in chronological
	// order; limit <= 0 returns all of them.
	RecentChatMessages(ctx context.Context, sessionID int64, limit int) ([]ChatMessage, error)
}
