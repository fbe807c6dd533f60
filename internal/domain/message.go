package domain

import (
	"context"
	"time"
)

// MessageType classifies a notification.
type MessageType string

const (
	MessageWarning MessageType = "WARNING"
	MessageAdvice  MessageType = "ADVICE"
	MessageBrief   MessageType = "BRIEF"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageWarning || t == MessageAdvice || t == MessageBrief
}

// AppMessage is an in-app notification addressed to one user.
type AppMessage struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"-"`
	Type        MessageType `json:"message_type"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Attribution string      `json:"attribution,omitempty"`
	IsRead      bool        `json:"is_read"`
	CreatedAt   time.Time   `json:"created_at"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`
}

// MessageFilter narrows a message listing.
type MessageFilter struct {
	UnreadOnly bool
	Type       MessageType
	Title      string
	Limit      int
}

// MessageRepository is the port for notification persistence. Lookups
// return (nil, nil) when nothing matches; mutations return ErrNotFound.
type MessageRepository interface {
	CreateMessage(ctx context.Context, m *AppMessage) (*AppMessage, error)
	GetMessage(ctx context.Context, userID, id int64) (*AppMessage, error)
	ListMessages(ctx context.Context, userID int64, f MessageFilter) ([]AppMessage, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64, at time.Time) (*AppMessage, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int, error)
	DeleteMessage(ctx context.Context, userID, id int64) error
}
