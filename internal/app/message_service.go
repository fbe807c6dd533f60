package app

import (
	"context"
	"fmt"
	"time"

	"prism/internal/domain"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// Notifier pushes a freshly stored message to the user's live connections.
type Notifier interface {
	Notify(userID int64, m domain.AppMessage)
}

// MessageService manages in-app notifications.
type MessageService struct {
	repo     domain.MessageRepository
	notifier Notifier
	now      func() time.Time
}

// NewMessageService creates a message service. notifier may be nil.
func NewMessageService(repo domain.MessageRepository, notifier Notifier) *MessageService {
	return &MessageService{repo: repo, notifier: notifier, now: time.Now}
}

// List returns the user's messages, newest first.
func (s *MessageService) List(ctx context.Context, userID int64, unreadOnly bool, typ domain.MessageType, limit int) ([]domain.AppMessage, error) {
	if typ != "" && !typ.Valid() {
		return nil, &domain.ValidationError{Field: "message_type", Reason: "must be one of WARNING, ADVICE, BRIEF"}
	}
	if limit < 1 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	out, err := s.repo.ListMessages(ctx, userID, domain.MessageFilter{UnreadOnly: unreadOnly, Type: typ, Limit: limit})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.AppMessage{}
	}
	return out, nil
}

// UnreadCount returns the number of unread messages.
func (s *MessageService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// Get returns one of the user's messages.
func (s *MessageService) Get(ctx context.Context, userID, id int64) (*domain.AppMessage, error) {
	m, err := s.repo.GetMessage(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// MarkRead flags a message as read. The read time is set only once.
func (s *MessageService) MarkRead(ctx context.Context, userID, id int64) (*domain.AppMessage, error) {
	return s.repo.MarkRead(ctx, userID, id, s.now().UTC())
}

// MarkAllRead flags every unread message and returns how many changed.
func (s *MessageService) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now().UTC())
}

// Delete removes one of the user's messages.
func (s *MessageService) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteMessage(ctx, userID, id)
}

// Publish stores a message and pushes it to the user's live connections.
func (s *MessageService) Publish(ctx context.Context, userID int64, typ domain.MessageType, title, content, attribution string) (*domain.AppMessage, error) {
	m, err := s.repo.CreateMessage(ctx, &domain.AppMessage{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Content:     content,
		Attribution: attribution,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(userID, *m)
	}
	return m, nil
}

// Exists reports whether the user already has a message of typ titled title.
func (s *MessageService) Exists(ctx context.Context, userID int64, typ domain.MessageType, title string) (bool, error) {
	out, err := s.repo.ListMessages(ctx, userID, domain.MessageFilter{Type: typ, Title: title, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(out) > 0, nil
}
