package app

import (
	"context"
	"fmt"
	"time"

	"prism/internal/domain"
)

// SyncDeltaLimit caps the number of server records returned by a sync.
const SyncDeltaLimit = 100

// SyncResult reports the outcome of one reconcile call. Inserted is used
// by callers to find the dates touched by the batch.
type SyncResult struct {
	SyncedCount int           `json:"synced_count"`
	Conflicts   []string      `json:"conflicts"`
	ServerMeals []domain.Meal `json:"server_meals"`
	Inserted    []domain.Meal `json:"-"`
}

// Reconciler merges a batch of offline-created meals into the store.
// Server state always wins: a key that already exists is reported as a
// conflict and left untouched.
type Reconciler struct {
	meals domain.MealStore
	users domain.UserRepository
}

// NewReconciler creates a reconciler over the given stores.
func NewReconciler(meals domain.MealStore, users domain.UserRepository) *Reconciler {
	return &Reconciler{meals: meals, users: users}
}

// Reconcile inserts every batch item whose client id is new for ownerID,
// reports the rest as conflicts and returns the records modified after
// lastSyncAt (all records when nil), newest first. Within one batch the
// first occurrence of a client id wins. The whole call is one transaction.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID int64, batch []domain.MealInput, lastSyncAt *time.Time) (*SyncResult, error) {
	owner, err := r.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrUserNotFound
	}
	if !owner.IsActive {
		return nil, ErrUserInactive
	}

	for i, in := range batch {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("meals[%d]: %w", i, err)
		}
	}

	var res *SyncResult
	err = r.meals.WithinMealTx(ctx, func(tx domain.MealRepository) error {
		res = &SyncResult{Conflicts: []string{}, ServerMeals: []domain.Meal{}}
		seen := make(map[string]struct{}, len(batch))

		for _, in := range batch {
			if _, dup := seen[in.ClientID]; dup {
				res.Conflicts = append(res.Conflicts, in.ClientID)
				continue
			}
			seen[in.ClientID] = struct{}{}

			existing, err := tx.FindByClientID(ctx, ownerID, in.ClientID)
			if err != nil {
				return fmt.Errorf("lookup %q: %w", in.ClientID, err)
			}
			if existing != nil {
				res.Conflicts = append(res.Conflicts, in.ClientID)
				continue
			}

			m := in.Meal(ownerID)
			inserted, err := tx.Insert(ctx, &m)
			if err != nil {
				return fmt.Errorf("insert %q: %w", in.ClientID, err)
			}
			res.Inserted = append(res.Inserted, *inserted)
			res.SyncedCount++
		}

		delta, err := tx.ListUpdatedSince(ctx, ownerID, lastSyncAt, SyncDeltaLimit)
		if err != nil {
			return fmt.Errorf("server delta: %w", err)
		}
		if delta != nil {
			res.ServerMeals = delta
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
