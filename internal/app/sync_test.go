package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"prism/internal/adapter/memory"
	"prism/internal/app"
	"prism/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails the insert of one client id inside a transaction.
type failingStore struct {
	*memory.DB
	failOn string
}

func (f *failingStore) WithinMealTx(ctx context.Context, fn func(tx domain.MealRepository) error) error {
	return f.DB.WithinMealTx(ctx, func(tx domain.MealRepository) error {
		return fn(&failingTx{MealRepository: tx, failOn: f.failOn})
	})
}

type failingTx struct {
	domain.MealRepository
	failOn string
}

func (t *failingTx) Insert(ctx context.Context, m *domain.Meal) (*domain.Meal, error) {
	if m.ClientID == t.failOn {
		return nil, errors.New("disk full")
	}
	return t.MealRepository.Insert(ctx, m)
}

func clientIDs(ms []domain.Meal) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ClientID)
	}
	return out
}

func TestReconcile_InsertsNewRecords(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	res, err := r.Reconcile(ctx, owner.ID, []domain.MealInput{mealInput("a", 500)}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SyncedCount)
	assert.Empty(t, res.Conflicts)
	require.Len(t, res.ServerMeals, 1)
	assert.Equal(t, "a", res.ServerMeals[0].ClientID)
	assert.Equal(t, 500.0, res.ServerMeals[0].Calories)
	assert.Equal(t, domain.SyncSynced, res.ServerMeals[0].SyncStatus)
	assert.Equal(t, owner.ID, res.ServerMeals[0].UserID)
}

func TestReconcile_IdempotentUnderRetry(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	batch := []domain.MealInput{mealInput("a", 500), mealInput("b", 300), mealInput("c", 200)}

	first, err := r.Reconcile(ctx, owner.ID, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.SyncedCount)
	assert.Empty(t, first.Conflicts)

	second, err := r.Reconcile(ctx, owner.ID, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SyncedCount)
	assert.Equal(t, []string{"a", "b", "c"}, second.Conflicts)
	assert.Len(t, second.ServerMeals, 3)
}

func TestReconcile_ServerStateWins(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	_, err := r.Reconcile(ctx, owner.ID, []domain.MealInput{mealInput("a", 500)}, nil)
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, owner.ID, []domain.MealInput{mealInput("a", 999)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SyncedCount)
	assert.Equal(t, []string{"a"}, res.Conflicts)

	stored, err := db.FindByClientID(ctx, owner.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, 500.0, stored.Calories)
}

func TestReconcile_DuplicateKeysInBatchFirstWins(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	batch := []domain.MealInput{mealInput("x", 100), mealInput("x", 200), mealInput("x", 300)}
	res, err := r.Reconcile(ctx, owner.ID, batch, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, []string{"x", "x"}, res.Conflicts)

	stored, err := db.FindByClientID(ctx, owner.ID, "x")
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Calories)
}

func TestReconcile_CountsAddUp(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	_, err := r.Reconcile(ctx, owner.ID, []domain.MealInput{mealInput("a", 1), mealInput("b", 1)}, nil)
	require.NoError(t, err)

	batches := [][]domain.MealInput{
		{},
		{mealInput("a", 1)},
		{mealInput("a", 1), mealInput("c", 1), mealInput("c", 1), mealInput("d", 1)},
		{mealInput("e", 1), mealInput("b", 1), mealInput("e", 1)},
	}
	for _, batch := range batches {
		res, err := r.Reconcile(ctx, owner.ID, batch, nil)
		require.NoError(t, err)
		assert.Equal(t, len(batch), res.SyncedCount+len(res.Conflicts))
	}
}

func TestReconcile_DeltaStrictlyAfterLastSync(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	first, err := r.Reconcile(ctx, owner.ID, []domain.MealInput{mealInput("a", 1), mealInput("b", 1)}, nil)
	require.NoError(t, err)
	require.Len(t, first.ServerMeals, 2)
	lastSync := first.ServerMeals[0].UpdatedAt

	time.Sleep(2 * time.Millisecond)
	res, err := r.Reconcile(ctx, owner.ID, []domain.MealInput{mealInput("c", 1)}, &lastSync)
	require.NoError(t, err)
	for _, m := range res.ServerMeals {
		assert.True(t, m.UpdatedAt.After(lastSync), "record %q not after lastSyncAt", m.ClientID)
	}
	assert.Contains(t, clientIDs(res.ServerMeals), "c")

	future := time.Now().Add(time.Hour)
	res, err = r.Reconcile(ctx, owner.ID, nil, &future)
	require.NoError(t, err)
	assert.Empty(t, res.ServerMeals)
	assert.NotNil(t, res.ServerMeals)
}

func TestReconcile_EmptyBatchReturnsNewestFirstCapped(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	for i := 0; i < 105; i++ {
		m := mealInput(fmt.Sprintf("m%d", i), 1).Meal(owner.ID)
		_, err := db.Insert(ctx, &m)
		require.NoError(t, err)
	}

	res, err := r.Reconcile(ctx, owner.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SyncedCount)
	assert.Empty(t, res.Conflicts)
	require.Len(t, res.ServerMeals, app.SyncDeltaLimit)
	for i := 1; i < len(res.ServerMeals); i++ {
		prev, cur := res.ServerMeals[i-1], res.ServerMeals[i]
		assert.False(t, cur.UpdatedAt.After(prev.UpdatedAt), "delta not ordered newest first at %d", i)
	}
}

func TestReconcile_ValidationFailsWholeBatch(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(db, db)

	bad := mealInput("b", 1)
	bad.Sodium = nil

	_, err := r.Reconcile(ctx, owner.ID, []domain.MealInput{mealInput("a", 1), bad}, nil)
	require.Error(t, err)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sodium", verr.Field)

	all, err := db.ListUpdatedSince(ctx, owner.ID, nil, 100)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReconcile_StoreFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	owner := newUser(t, db, true)
	r := app.NewReconciler(&failingStore{DB: db, failOn: "c"}, db)

	batch := []domain.MealInput{mealInput("a", 1), mealInput("b", 1), mealInput("c", 1)}
	_, err := r.Reconcile(ctx, owner.ID, batch, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	all, err := db.ListUpdatedSince(ctx, owner.ID, nil, 100)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReconcile_OwnerChecks(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	inactive := newUser(t, db, false)
	r := app.NewReconciler(db, db)

	_, err := r.Reconcile(ctx, 9999, []domain.MealInput{mealInput("a", 1)}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Reconcile(ctx, inactive.ID, []domain.MealInput{mealInput("a", 1)}, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	all, _ := db.ListUpdatedSince(ctx, inactive.ID, nil, 100)
	assert.Empty(t, all)
}

func TestReconcile_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	r := app.NewReconciler(db, db)

	alice, err := db.Create(ctx, &domain.User{SSOSubject: "alice", IsActive: true})
	require.NoError(t, err)
	bob, err := db.Create(ctx, &domain.User{SSOSubject: "bob", IsActive: true})
	require.NoError(t, err)

	_, err = r.Reconcile(ctx, alice.ID, []domain.MealInput{mealInput("a", 1)}, nil)
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, bob.ID, []domain.MealInput{mealInput("a", 1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Empty(t, res.Conflicts)
	require.Len(t, res.ServerMeals, 1)
	assert.Equal(t, bob.ID, res.ServerMeals[0].UserID)
}
