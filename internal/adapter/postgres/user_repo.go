package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prism/internal/domain"
)

const userColumns = `id, COALESCE(phone, ''), password_hash, COALESCE(sso_subject, ''), nickname, avatar_url,
	COALESCE(gender, ''), age, height, weight, is_active, is_verified, created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	var gender string
	err := row.Scan(&u.ID, &u.Phone, &u.PasswordHash, &u.SSOSubject, &u.Nickname, &u.AvatarURL,
		&gender, &u.Age, &u.Height, &u.Weight, &u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	u.Gender = domain.Gender(gender)
	return &u, nil
}

func (d *DB) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	u, err := scanUser(d.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetByPhone retrieves a user by phone number.
func (d *DB) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	if phone == "" {
		return nil, nil
	}
	return d.getUser(ctx, "phone = $1", phone)
}

// GetBySSOSubject retrieves a user by identity provider subject.
func (d *DB) GetBySSOSubject(ctx context.Context, subject string) (*domain.User, error) {
	if subject == "" {
		return nil, nil
	}
	return d.getUser(ctx, "sso_subject = $1", subject)
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return d.getUser(ctx, "id = $1", id)
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt, u.UpdatedAt = now, now
	}
	created, err := scanUser(d.q.QueryRowContext(ctx,
		`INSERT INTO users (phone, password_hash, sso_subject, nickname, avatar_url, gender, age, height, weight,
			is_active, is_verified, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+userColumns,
		nullString(u.Phone), u.PasswordHash, nullString(u.SSOSubject), u.Nickname, u.AvatarURL,
		nullString(string(u.Gender)), u.Age, u.Height, u.Weight,
		u.IsActive, u.IsVerified, u.CreatedAt, u.UpdatedAt, u.LastLoginAt,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

// Update replaces a stored user.
func (d *DB) Update(ctx context.Context, u *domain.User) error {
	res, err := d.q.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, nickname = $3, avatar_url = $4, gender = $5, age = $6,
			height = $7, weight = $8, is_active = $9, is_verified = $10, updated_at = $11, last_login_at = $12
		WHERE id = $1`,
		u.ID, u.PasswordHash, u.Nickname, u.AvatarURL, nullString(string(u.Gender)), u.Age,
		u.Height, u.Weight, u.IsActive, u.IsVerified, u.UpdatedAt, u.LastLoginAt,
	)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res, fmt.Sprintf("user %d", u.ID))
}

// ListActive returns every active user.
func (d *DB) ListActive(ctx context.Context) ([]domain.User, error) {
	rows, err := d.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE is_active ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.q.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, user_agent, ip, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		s.Token, s.UserID, s.UserAgent, s.IP, s.ExpiresAt, s.CreatedAt,
	)
	return mapError(err)
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.q.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, ip, expires_at, created_at FROM sessions WHERE token = $1",
		token,
	).Scan(&s.Token, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.q.ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return err
}

// DeleteExpired deletes all sessions that expired before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.q.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}
