package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prism/internal/domain"
)

const conditionColumns = `id, user_id, condition_code, title, icon, condition_type, status, trend,
	value, unit, dictum, attribution, created_at, updated_at`

func scanCondition(row interface{ Scan(...any) error }) (*domain.HealthCondition, error) {
	var c domain.HealthCondition
	var typ, status, trend string
	err := row.Scan(&c.ID, &c.UserID, &c.ConditionCode, &c.Title, &c.Icon, &typ, &status, &trend,
		&c.Value, &c.Unit, &c.Dictum, &c.Attribution, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = domain.ConditionType(typ)
	c.Status = domain.ConditionStatus(status)
	c.Trend = domain.Trend(trend)
	return &c, nil
}

func (d *DB) getCondition(ctx context.Context, where string, args ...any) (*domain.HealthCondition, error) {
	c, err := scanCondition(d.q.QueryRowContext(ctx, "SELECT "+conditionColumns+" FROM health_conditions WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// CreateCondition stores a new condition.
func (d *DB) CreateCondition(ctx context.Context, c *domain.HealthCondition) (*domain.HealthCondition, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
		c.UpdatedAt = c.CreatedAt
	}
	created, err := scanCondition(d.q.QueryRowContext(ctx,
		`INSERT INTO health_conditions (user_id, condition_code, title, icon, condition_type, status, trend,
			value, unit, dictum, attribution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+conditionColumns,
		c.UserID, c.ConditionCode, c.Title, c.Icon, string(c.Type), string(c.Status), string(c.Trend),
		c.Value, c.Unit, c.Dictum, c.Attribution, c.CreatedAt, c.UpdatedAt,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

// GetCondition retrieves one of the user's conditions.
func (d *DB) GetCondition(ctx context.Context, userID, id int64) (*domain.HealthCondition, error) {
	return d.getCondition(ctx, "user_id = $1 AND id = $2", userID, id)
}

// FindConditionByCode retrieves a condition by its code.
func (d *DB) FindConditionByCode(ctx context.Context, userID int64, code string) (*domain.HealthCondition, error) {
	return d.getCondition(ctx, "user_id = $1 AND condition_code = $2", userID, code)
}

// ListConditions lists the user's conditions of typ, newest first.
func (d *DB) ListConditions(ctx context.Context, userID int64, typ domain.ConditionType) ([]domain.HealthCondition, error) {
	rows, err := d.q.QueryContext(ctx,
		"SELECT "+conditionColumns+` FROM health_conditions
		WHERE user_id = $1 AND ($2 = '' OR condition_type = $2)
		ORDER BY created_at DESC, id DESC`,
		userID, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.HealthCondition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateCondition replaces a stored condition.
func (d *DB) UpdateCondition(ctx context.Context, c *domain.HealthCondition) error {
	res, err := d.q.ExecContext(ctx,
		`UPDATE health_conditions SET title = $3, icon = $4, status = $5, trend = $6, value = $7, unit = $8,
			dictum = $9, attribution = $10, updated_at = $11
		WHERE user_id = $1 AND id = $2`,
		c.UserID, c.ID, c.Title, c.Icon, string(c.Status), string(c.Trend), c.Value, c.Unit,
		c.Dictum, c.Attribution, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("condition %d", c.ID))
}

// DeleteCondition removes one of the user's conditions.
func (d *DB) DeleteCondition(ctx context.Context, userID, id int64) error {
	res, err := d.q.ExecContext(ctx, "DELETE FROM health_conditions WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("condition %d", id))
}
