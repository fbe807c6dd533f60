package memory

import (
	"context"
	"fmt"
	"sort"

	"prism/internal/domain"
)

// --- ConditionRepository ---

// CreateCondition stores a new condition.
func (db *DB) CreateCondition(ctx context.Context, c *domain.HealthCondition) (*domain.HealthCondition, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, e := range db.conditions {
		if e.UserID == c.UserID && e.ConditionCode == c.ConditionCode {
			return nil, fmt.Errorf("condition %q %w", c.ConditionCode, domain.ErrDuplicate)
		}
	}
	db.conditionIDCounter++
	created := *c
	created.ID = db.conditionIDCounter
	if created.CreatedAt.IsZero() {
		created.CreatedAt = db.now()
		created.UpdatedAt = created.CreatedAt
	}
	db.conditions = append(db.conditions, created)
	return &created, nil
}

// GetCondition retrieves one of the user's conditions.
func (db *DB) GetCondition(ctx context.Context, userID, id int64) (*domain.HealthCondition, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, c := range db.conditions {
		if c.UserID == userID && c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

// FindConditionByCode retrieves a condition by its code.
func (db *DB) FindConditionByCode(ctx context.Context, userID int64, code string) (*domain.HealthCondition, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, c := range db.conditions {
		if c.UserID == userID && c.ConditionCode == code {
			return &c, nil
		}
	}
	return nil, nil
}

// ListConditions lists the user's conditions of typ, newest first.
func (db *DB) ListConditions(ctx context.Context, userID int64, typ domain.ConditionType) ([]domain.HealthCondition, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.HealthCondition
	for _, c := range db.conditions {
		if c.UserID == userID && (typ == "" || c.Type == typ) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateCondition replaces a stored condition.
func (db *DB) UpdateCondition(ctx context.Context, c *domain.HealthCondition) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.conditions {
		if db.conditions[i].UserID == c.UserID && db.conditions[i].ID == c.ID {
			db.conditions[i] = *c
			return nil
		}
	}
	return fmt.Errorf("condition %d: %w", c.ID, domain.ErrNotFound)
}

// DeleteCondition removes one of the user's conditions.
func (db *DB) DeleteCondition(ctx context.Context, userID, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, c := range db.conditions {
		if c.UserID == userID && c.ID == id {
			db.conditions = append(db.conditions[:i], db.conditions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("condition %d: %w", id, domain.ErrNotFound)
}
