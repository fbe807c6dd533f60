// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prism/internal/domain"

	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
	q   querier
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)
var _ domain.MealStore = (*DB)(nil)
var _ domain.ConditionRepository = (*DB)(nil)
var _ domain.MessageRepository = (*DB)(nil)
var _ domain.ChatRepository = (*DB)(nil)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s, q: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// WithinMealTx runs fn inside one database transaction. The transaction
// is rolled back when fn returns an error and committed otherwise.
func (d *DB) WithinMealTx(ctx context.Context, fn func(tx domain.MealRepository) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&DB{sql: d.sql, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			phone TEXT UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			sso_subject TEXT UNIQUE,
			nickname TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			gender TEXT CHECK(gender IN ('MALE','FEMALE')),
			age INTEGER CHECK(age BETWEEN 1 AND 150),
			height DOUBLE PRECISION,
			weight DOUBLE PRECISION,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			last_login_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_agent TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
		`CREATE TABLE IF NOT EXISTS meals (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			client_id VARCHAR(36) NOT NULL,
			name VARCHAR(100) NOT NULL,
			portion VARCHAR(50) NOT NULL,
			calories DOUBLE PRECISION NOT NULL CHECK(calories >= 0),
			sodium DOUBLE PRECISION NOT NULL CHECK(sodium >= 0),
			purine DOUBLE PRECISION NOT NULL CHECK(purine >= 0),
			protein DOUBLE PRECISION CHECK(protein >= 0),
			carbs DOUBLE PRECISION CHECK(carbs >= 0),
			fat DOUBLE PRECISION CHECK(fat >= 0),
			fiber DOUBLE PRECISION CHECK(fiber >= 0),
			meal_type TEXT NOT NULL CHECK(meal_type IN ('BREAKFAST','LUNCH','DINNER','SNACK')),
			category TEXT NOT NULL CHECK(category IN ('STAPLE','MEAT','VEG','DRINK','SNACK')),
			record_date TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			ai_recognized BOOLEAN NOT NULL DEFAULT FALSE,
			sync_status TEXT NOT NULL DEFAULT 'SYNCED' CHECK(sync_status IN ('PENDING','SYNCED','CONFLICT')),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT uq_meals_user_client UNIQUE (user_id, client_id)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_meals_user_updated ON meals(user_id, updated_at DESC, id DESC);",
		"CREATE INDEX IF NOT EXISTS idx_meals_user_record_date ON meals(user_id, record_date);",
		`CREATE TABLE IF NOT EXISTS health_conditions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			condition_code VARCHAR(50) NOT NULL,
			title VARCHAR(100) NOT NULL,
			icon VARCHAR(50) NOT NULL DEFAULT 'medical_services',
			condition_type TEXT NOT NULL CHECK(condition_type IN ('CHRONIC','ALLERGY')),
			status TEXT NOT NULL DEFAULT 'MONITORING' CHECK(status IN ('ACTIVE','MONITORING','STABLE','ALERT')),
			trend TEXT NOT NULL DEFAULT 'STABLE' CHECK(trend IN ('IMPROVED','WORSENING','STABLE')),
			value VARCHAR(50) NOT NULL DEFAULT '',
			unit VARCHAR(20) NOT NULL DEFAULT '',
			dictum TEXT NOT NULL DEFAULT '',
			attribution TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT uq_conditions_user_code UNIQUE (user_id, condition_code)
		);`,
		`CREATE TABLE IF NOT EXISTS app_messages (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			message_type TEXT NOT NULL CHECK(message_type IN ('WARNING','ADVICE','BRIEF')),
			title VARCHAR(100) NOT NULL,
			content TEXT NOT NULL,
			attribution TEXT NOT NULL DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			read_at TIMESTAMPTZ
		);`,
		"CREATE INDEX IF NOT EXISTS idx_app_messages_user_created ON app_messages(user_id, created_at DESC);",
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(200) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK(role IN ('user','assistant','system')),
			content TEXT NOT NULL,
			attachments JSONB,
			model_name TEXT NOT NULL DEFAULT '',
			tokens_used INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_chat_messages_session_created ON chat_messages(session_id, created_at);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// mapError translates driver errors into domain errors.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%s: %w", pqErr.Constraint, domain.ErrDuplicate)
	}
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
