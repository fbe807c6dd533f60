package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"prism/internal/domain"
)

const mealColumns = `id, user_id, client_id, name, portion, calories, sodium, purine, protein, carbs, fat, fiber,
	meal_type, category, record_date, note, image_url, ai_recognized, sync_status, created_at, updated_at`

func scanMeal(row interface{ Scan(...any) error }) (*domain.Meal, error) {
	var m domain.Meal
	var mealType, category, status string
	err := row.Scan(&m.ID, &m.UserID, &m.ClientID, &m.Name, &m.Portion, &m.Calories, &m.Sodium, &m.Purine,
		&m.Protein, &m.Carbs, &m.Fat, &m.Fiber, &mealType, &category, &m.RecordDate, &m.Note, &m.ImageURL,
		&m.AIRecognized, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.MealType = domain.MealType(mealType)
	m.Category = domain.FoodCategory(category)
	m.SyncStatus = domain.SyncStatus(status)
	return &m, nil
}

func (d *DB) queryMeals(ctx context.Context, query string, args ...any) ([]domain.Meal, error) {
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (d *DB) getMeal(ctx context.Context, where string, args ...any) (*domain.Meal, error) {
	m, err := scanMeal(d.q.QueryRowContext(ctx, "SELECT "+mealColumns+" FROM meals WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// FindByClientID retrieves a meal by its client-generated identifier.
func (d *DB) FindByClientID(ctx context.Context, userID int64, clientID string) (*domain.Meal, error) {
	return d.getMeal(ctx, "user_id = $1 AND client_id = $2", userID, clientID)
}

// Insert stores a new meal.
func (d *DB) Insert(ctx context.Context, m *domain.Meal) (*domain.Meal, error) {
	status := m.SyncStatus
	if status == "" {
		status = domain.SyncSynced
	}
	now := time.Now().UTC()
	created, err := scanMeal(d.q.QueryRowContext(ctx,
		`INSERT INTO meals (user_id, client_id, name, portion, calories, sodium, purine, protein, carbs, fat, fiber,
			meal_type, category, record_date, note, image_url, ai_recognized, sync_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
		RETURNING `+mealColumns,
		m.UserID, m.ClientID, m.Name, m.Portion, m.Calories, m.Sodium, m.Purine, m.Protein, m.Carbs, m.Fat, m.Fiber,
		string(m.MealType), string(m.Category), m.RecordDate, m.Note, m.ImageURL, m.AIRecognized, string(status), now,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

// ListUpdatedSince returns the user's meals modified after since, newest first.
func (d *DB) ListUpdatedSince(ctx context.Context, userID int64, since *time.Time, limit int) ([]domain.Meal, error) {
	if limit <= 0 {
		limit = noLimit
	}
	if since == nil {
		return d.queryMeals(ctx,
			"SELECT "+mealColumns+" FROM meals WHERE user_id = $1 ORDER BY updated_at DESC, id DESC LIMIT $2",
			userID, limit)
	}
	return d.queryMeals(ctx,
		"SELECT "+mealColumns+" FROM meals WHERE user_id = $1 AND updated_at > $2 ORDER BY updated_at DESC, id DESC LIMIT $3",
		userID, *since, limit)
}

// GetMeal retrieves one of the user's meals.
func (d *DB) GetMeal(ctx context.Context, userID, id int64) (*domain.Meal, error) {
	return d.getMeal(ctx, "user_id = $1 AND id = $2", userID, id)
}

// UpdateMeal replaces a stored meal. The update time never moves backwards.
func (d *DB) UpdateMeal(ctx context.Context, m *domain.Meal) error {
	updated, err := scanMeal(d.q.QueryRowContext(ctx,
		`UPDATE meals SET name = $3, portion = $4, calories = $5, sodium = $6, purine = $7, protein = $8,
			carbs = $9, fat = $10, fiber = $11, meal_type = $12, category = $13, record_date = $14, note = $15,
			image_url = $16, ai_recognized = $17, sync_status = $18, updated_at = GREATEST(updated_at, $19)
		WHERE user_id = $1 AND id = $2
		RETURNING `+mealColumns,
		m.UserID, m.ID, m.Name, m.Portion, m.Calories, m.Sodium, m.Purine, m.Protein, m.Carbs, m.Fat, m.Fiber,
		string(m.MealType), string(m.Category), m.RecordDate, m.Note, m.ImageURL, m.AIRecognized,
		string(m.SyncStatus), time.Now().UTC(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meal %d: %w", m.ID, domain.ErrNotFound)
	}
	if err != nil {
		return mapError(err)
	}
	*m = *updated
	return nil
}

// DeleteMeal removes one of the user's meals.
func (d *DB) DeleteMeal(ctx context.Context, userID, id int64) error {
	res, err := d.q.ExecContext(ctx, "DELETE FROM meals WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("meal %d", id))
}

// ListMeals returns one page of the user's meals, most recent record date first.
func (d *DB) ListMeals(ctx context.Context, userID int64, f domain.MealFilter) ([]domain.Meal, int, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	switch {
	case f.Date != "":
		add("record_date = $%d", f.Date)
	default:
		if f.StartDate != "" {
			add("record_date >= $%d", f.StartDate)
		}
		if f.EndDate != "" {
			add("record_date <= $%d", f.EndDate)
		}
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := d.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM meals WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.PageSize
	if limit <= 0 {
		limit = noLimit
	}
	offset := f.Offset()
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	meals, err := d.queryMeals(ctx,
		fmt.Sprintf("SELECT %s FROM meals WHERE %s ORDER BY record_date DESC, created_at DESC, id DESC LIMIT $%d OFFSET $%d",
			mealColumns, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	return meals, total, nil
}

// ListMealsForDay returns the user's meals recorded on day.
func (d *DB) ListMealsForDay(ctx context.Context, userID int64, day string) ([]domain.Meal, error) {
	return d.queryMeals(ctx,
		"SELECT "+mealColumns+" FROM meals WHERE user_id = $1 AND record_date = $2 ORDER BY created_at DESC, id DESC",
		userID, day)
}

// DailyIntake totals the user's meals recorded on day.
func (d *DB) DailyIntake(ctx context.Context, userID int64, day string) (domain.DailyIntake, error) {
	out := domain.DailyIntake{Date: day}
	err := d.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(calories), 0), COALESCE(SUM(sodium), 0), COALESCE(SUM(purine), 0),
			COALESCE(SUM(protein), 0), COALESCE(SUM(carbs), 0), COALESCE(SUM(fat), 0), COUNT(*)
		FROM meals WHERE user_id = $1 AND record_date = $2`,
		userID, day,
	).Scan(&out.TotalCalories, &out.TotalSodium, &out.TotalPurine,
		&out.TotalProtein, &out.TotalCarbs, &out.TotalFat, &out.MealCount)
	return out, err
}

// noLimit stands in for an absent LIMIT.
const noLimit = 1 << 30
