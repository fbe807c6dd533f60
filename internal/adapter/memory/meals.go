package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"prism/internal/domain"
)

// --- MealRepository ---

// FindByClientID retrieves a meal by its client idempotency key.
func (db *DB) FindByClientID(ctx context.Context, userID int64, clientID string) (*domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.mealIndex(func(m *domain.Meal) bool { return m.UserID == userID && m.ClientID == clientID }); i >= 0 {
		m := db.meals[i]
		return &m, nil
	}
	return nil, nil
}

// Insert stores a new meal and assigns its id and timestamps.
func (db *DB) Insert(ctx context.Context, m *domain.Meal) (*domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertMeal(m)
}

// ListUpdatedSince returns the user's meals modified after since, newest first.
func (db *DB) ListUpdatedSince(ctx context.Context, userID int64, since *time.Time, limit int) ([]domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Meal
	for _, m := range db.meals {
		if m.UserID != userID {
			continue
		}
		if since != nil && !m.UpdatedAt.After(*since) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetMeal retrieves one of the user's meals.
func (db *DB) GetMeal(ctx context.Context, userID, id int64) (*domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.mealIndex(func(m *domain.Meal) bool { return m.UserID == userID && m.ID == id }); i >= 0 {
		m := db.meals[i]
		return &m, nil
	}
	return nil, nil
}

// UpdateMeal replaces a stored meal and bumps its update time.
func (db *DB) UpdateMeal(ctx context.Context, m *domain.Meal) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.updateMeal(m)
	return err
}

// DeleteMeal removes one of the user's meals.
func (db *DB) DeleteMeal(ctx context.Context, userID, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.deleteMeal(userID, id)
	return err
}

// ListMeals returns one page of the user's meals, most recent record date first.
func (db *DB) ListMeals(ctx context.Context, userID int64, f domain.MealFilter) ([]domain.Meal, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var all []domain.Meal
	for _, m := range db.meals {
		if m.UserID != userID {
			continue
		}
		switch {
		case f.Date != "":
			if m.RecordDate != f.Date {
				continue
			}
		default:
			if f.StartDate != "" && m.RecordDate < f.StartDate {
				continue
			}
			if f.EndDate != "" && m.RecordDate > f.EndDate {
				continue
			}
		}
		all = append(all, m)
	}
	sortMeals(all)

	total := len(all)
	start := f.Offset()
	if start < 0 {
		start = 0
	}
	if start >= total {
		return nil, total, nil
	}
	end := start + f.PageSize
	if f.PageSize <= 0 || end > total {
		end = total
	}
	return all[start:end], total, nil
}

// ListMealsForDay returns the user's meals recorded on day.
func (db *DB) ListMealsForDay(ctx context.Context, userID int64, day string) ([]domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Meal
	for _, m := range db.meals {
		if m.UserID == userID && m.RecordDate == day {
			out = append(out, m)
		}
	}
	sortMeals(out)
	return out, nil
}

// DailyIntake totals the user's meals recorded on day.
func (db *DB) DailyIntake(ctx context.Context, userID int64, day string) (domain.DailyIntake, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	d := domain.DailyIntake{Date: day}
	for _, m := range db.meals {
		if m.UserID == userID && m.RecordDate == day {
			d.Add(m)
		}
	}
	return d, nil
}

// WithinMealTx runs fn as one unit of work. Transactions are serialized
// and every write made through tx is undone when fn fails. Readers outside
// the transaction may observe its writes before it finishes.
func (db *DB) WithinMealTx(ctx context.Context, fn func(tx domain.MealRepository) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	tx := &mealTx{DB: db}
	if err := fn(tx); err != nil {
		db.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		db.mu.Unlock()
		return err
	}
	return nil
}

// mealTx journals the inverse of every write so it can be rolled back.
type mealTx struct {
	*DB
	undo []func()
}

func (tx *mealTx) Insert(ctx context.Context, m *domain.Meal) (*domain.Meal, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	created, err := tx.insertMeal(m)
	if err != nil {
		return nil, err
	}
	id, userID := created.ID, created.UserID
	tx.undo = append(tx.undo, func() { _, _ = tx.deleteMeal(userID, id) })
	return created, nil
}

func (tx *mealTx) UpdateMeal(ctx context.Context, m *domain.Meal) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	prev, err := tx.updateMeal(m)
	if err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { tx.restoreMeal(prev) })
	return nil
}

func (tx *mealTx) DeleteMeal(ctx context.Context, userID, id int64) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	prev, err := tx.deleteMeal(userID, id)
	if err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { tx.meals = append(tx.meals, prev) })
	return nil
}

// The helpers below expect db.mu to be held.

func (db *DB) mealIndex(match func(*domain.Meal) bool) int {
	for i := range db.meals {
		if match(&db.meals[i]) {
			return i
		}
	}
	return -1
}

func (db *DB) insertMeal(m *domain.Meal) (*domain.Meal, error) {
	if i := db.mealIndex(func(e *domain.Meal) bool { return e.UserID == m.UserID && e.ClientID == m.ClientID }); i >= 0 {
		return nil, fmt.Errorf("meal %q %w", m.ClientID, domain.ErrDuplicate)
	}
	db.mealIDCounter++
	created := *m
	created.ID = db.mealIDCounter
	if created.SyncStatus == "" {
		created.SyncStatus = domain.SyncSynced
	}
	now := db.now()
	created.CreatedAt, created.UpdatedAt = now, now
	db.meals = append(db.meals, created)
	return &created, nil
}

func (db *DB) updateMeal(m *domain.Meal) (domain.Meal, error) {
	i := db.mealIndex(func(e *domain.Meal) bool { return e.UserID == m.UserID && e.ID == m.ID })
	if i < 0 {
		return domain.Meal{}, fmt.Errorf("meal %d: %w", m.ID, domain.ErrNotFound)
	}
	prev := db.meals[i]
	updated := *m
	updated.ClientID = prev.ClientID
	updated.CreatedAt = prev.CreatedAt
	updated.UpdatedAt = db.now()
	if updated.UpdatedAt.Before(prev.UpdatedAt) {
		updated.UpdatedAt = prev.UpdatedAt
	}
	db.meals[i] = updated
	*m = updated
	return prev, nil
}

func (db *DB) restoreMeal(prev domain.Meal) {
	if i := db.mealIndex(func(e *domain.Meal) bool { return e.ID == prev.ID }); i >= 0 {
		db.meals[i] = prev
	}
}

func (db *DB) deleteMeal(userID, id int64) (domain.Meal, error) {
	i := db.mealIndex(func(e *domain.Meal) bool { return e.UserID == userID && e.ID == id })
	if i < 0 {
		return domain.Meal{}, fmt.Errorf("meal %d: %w", id, domain.ErrNotFound)
	}
	prev := db.meals[i]
	db.meals = append(db.meals[:i], db.meals[i+1:]...)
	return prev, nil
}

func sortMeals(ms []domain.Meal) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].RecordDate != ms[j].RecordDate {
			return ms[i].RecordDate > ms[j].RecordDate
		}
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ID > ms[j].ID
	})
}
