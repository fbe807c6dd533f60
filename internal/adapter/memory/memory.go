// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prism/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu           sync.Mutex
	txMu         sync.Mutex
	users        []domain.User
	sessions     map[string]domain.Session
	meals        []domain.Meal
	conditions   []domain.HealthCondition
	messages     []domain.AppMessage
	chatSessions []domain.ChatSession
	chatMessages []domain.ChatMessage

	userIDCounter      int64
	mealIDCounter      int64
	conditionIDCounter int64
	messageIDCounter   int64
	chatIDCounter      int64
	chatMsgIDCounter   int64

	now func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions: make(map[string]domain.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)
var _ domain.MealStore = (*DB)(nil)
var _ domain.ConditionRepository = (*DB)(nil)
var _ domain.MessageRepository = (*DB)(nil)
var _ domain.ChatRepository = (*DB)(nil)

// --- UserRepository ---

// GetByPhone retrieves a user by phone number.
func (db *DB) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.findUser(func(u *domain.User) bool { return phone != "" && u.Phone == phone }), nil
}

// GetBySSOSubject retrieves a user by identity provider subject.
func (db *DB) GetBySSOSubject(ctx context.Context, subject string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.findUser(func(u *domain.User) bool { return subject != "" && u.SSOSubject == subject }), nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.findUser(func(u *domain.User) bool { return u.ID == id }), nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.users {
		existing := &db.users[i]
		if u.Phone != "" && existing.Phone == u.Phone {
			return nil, fmt.Errorf("phone %w", domain.ErrDuplicate)
		}
		if u.SSOSubject != "" && existing.SSOSubject == u.SSOSubject {
			return nil, fmt.Errorf("sso subject %w", domain.ErrDuplicate)
		}
	}

	db.userIDCounter++
	created := *u
	created.ID = db.userIDCounter
	if created.CreatedAt.IsZero() {
		created.CreatedAt = db.now()
		created.UpdatedAt = created.CreatedAt
	}
	db.users = append(db.users, created)
	return &created, nil
}

// Update replaces a stored user.
func (db *DB) Update(ctx context.Context, u *domain.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.users {
		if db.users[i].ID == u.ID {
			db.users[i] = *u
			return nil
		}
	}
	return fmt.Errorf("user %d: %w", u.ID, domain.ErrNotFound)
}

// ListActive returns every active user.
func (db *DB) ListActive(ctx context.Context) ([]domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.User
	for _, u := range db.users {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (db *DB) findUser(match func(*domain.User) bool) *domain.User {
	for i := range db.users {
		if match(&db.users[i]) {
			u := db.users[i]
			return &u
		}
	}
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.sessions[s.Token]; ok {
		return fmt.Errorf("session %w", domain.ErrDuplicate)
	}
	r.db.sessions[s.Token] = *s
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		return &s, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all sessions that expired before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}
