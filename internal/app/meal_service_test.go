package app_test

import (
	"context"
	"sync"
	"testing"

	"prism/internal/adapter/memory"
	"prism/internal/app"
	"prism/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu   sync.Mutex
	days []string
}

func (o *recordingObserver) CheckIntake(ctx context.Context, userID int64, day string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.days = append(o.days, day)
}

func newMealService(t *testing.T) (*app.MealService, *memory.DB, *domain.User, *recordingObserver) {
	t.Helper()
	db := memory.New()
	owner := newUser(t, db, true)
	obs := &recordingObserver{}
	return app.NewMealService(db, app.NewReconciler(db, db), obs), db, owner, obs
}

func TestMealCreate_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, obs := newMealService(t)

	first, created, err := svc.Create(ctx, owner.ID, mealInput("a", 500))
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.Create(ctx, owner.ID, mealInput("a", 999))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 500.0, again.Calories)

	assert.Equal(t, []string{"2026-01-15"}, obs.days)
}

func TestMealCreate_Validation(t *testing.T) {
	svc, _, owner, _ := newMealService(t)

	in := mealInput("a", 1)
	in.Purine = nil
	_, _, err := svc.Create(context.Background(), owner.ID, in)
	assert.True(t, domain.IsValidation(err))
}

func TestMealUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, db, owner, obs := newMealService(t)

	m, _, err := svc.Create(ctx, owner.ID, mealInput("a", 500))
	require.NoError(t, err)

	name := "Dumplings"
	updated, err := svc.Update(ctx, owner.ID, m.ID, domain.MealPatch{Name: &name, Sodium: ptr(1200.0)})
	require.NoError(t, err)
	assert.Equal(t, "Dumplings", updated.Name)
	assert.Equal(t, 1200.0, updated.Sodium)
	assert.Equal(t, 500.0, updated.Calories)
	assert.False(t, updated.UpdatedAt.Before(m.UpdatedAt))
	assert.Len(t, obs.days, 2)

	other, err := db.Create(ctx, &domain.User{SSOSubject: "other", IsActive: true})
	require.NoError(t, err)
	_, err = svc.Get(ctx, other.ID, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Update(ctx, other.ID, m.ID, domain.MealPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, other.ID, m.ID), domain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, owner.ID, m.ID))
	_, err = svc.Get(ctx, owner.ID, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMealList(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, _ := newMealService(t)

	for _, key := range []string{"a", "b", "c"} {
		_, _, err := svc.Create(ctx, owner.ID, mealInput(key, 1))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, owner.ID, domain.MealFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Items, 1)

	page, err = svc.List(ctx, owner.ID, domain.MealFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 1, page.Page)

	empty, err := svc.List(ctx, owner.ID, domain.MealFilter{Date: "2020-01-01"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)

	_, err = svc.List(ctx, owner.ID, domain.MealFilter{StartDate: "yesterday"})
	assert.True(t, domain.IsValidation(err))
}

func TestMealSummary(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, _ := newMealService(t)

	_, _, err := svc.Create(ctx, owner.ID, mealInput("a", 500))
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, owner.ID, mealInput("b", 250))
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, owner.ID, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 750.0, sum.TotalCalories)
	assert.Equal(t, 200.0, sum.TotalSodium)
	assert.Equal(t, 2, sum.MealCount)

	_, err = svc.Summary(ctx, owner.ID, "15-01-2026")
	assert.True(t, domain.IsValidation(err))
}

func TestMealSync_NotifiesEachDayOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, obs := newMealService(t)

	other := mealInput("c", 1)
	other.RecordDate = "2026-01-16"
	res, err := svc.Sync(ctx, owner.ID, []domain.MealInput{mealInput("a", 1), mealInput("b", 1), other}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SyncedCount)
	assert.ElementsMatch(t, []string{"2026-01-15", "2026-01-16"}, obs.days)
}
