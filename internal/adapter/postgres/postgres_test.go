package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"prism/internal/domain"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		dup  bool
	}{
		{"unique violation", &pq.Error{Code: "23505", Constraint: "uq_meals_user_client"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"check violation", &pq.Error{Code: "23514"}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dup, errors.Is(mapError(tt.err), domain.ErrDuplicate))
		})
	}
}

// openTestDB connects to PRISM_TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("PRISM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PRISM_TEST_DATABASE_URL not set")
	}
	d, err := Open(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestMealRepository(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	u, err := d.Create(ctx, &domain.User{SSOSubject: fmt.Sprintf("pg-%d", time.Now().UnixNano()), Nickname: "pg", IsActive: true})
	require.NoError(t, err)

	meal := domain.Meal{
		UserID: u.ID, ClientID: "c1", Name: "Rice", Portion: "1 bowl",
		Calories: 200, Sodium: 5, Purine: 20,
		MealType: domain.MealLunch, Category: domain.CategoryStaple, RecordDate: "2026-01-15",
	}
	created, err := d.Insert(ctx, &meal)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, created.SyncStatus)

	_, err = d.Insert(ctx, &meal)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	found, err := d.FindByClientID(ctx, u.ID, "c1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	// A failing unit of work leaves nothing behind.
	boom := errors.New("boom")
	err = d.WithinMealTx(ctx, func(tx domain.MealRepository) error {
		m := meal
		m.ClientID = "c2"
		if _, err := tx.Insert(ctx, &m); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	missing, err := d.FindByClientID(ctx, u.ID, "c2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	intake, err := d.DailyIntake(ctx, u.ID, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 1, intake.MealCount)
	assert.InDelta(t, 200, intake.TotalCalories, 0.001)

	delta, err := d.ListUpdatedSince(ctx, u.ID, nil, 10)
	require.NoError(t, err)
	assert.Len(t, delta, 1)

	require.NoError(t, d.DeleteMeal(ctx, u.ID, created.ID))
	assert.ErrorIs(t, d.DeleteMeal(ctx, u.ID, created.ID), domain.ErrNotFound)
}
