package app_test

import (
	"context"
	"testing"

	"prism/internal/adapter/memory"
	"prism/internal/app"
	"prism/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionService(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	svc := app.NewConditionService(db)

	gout, err := svc.Create(ctx, 1, domain.ConditionInput{ConditionCode: "gout", Title: "Gout", Type: domain.ConditionChronic})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMonitoring, gout.Status)
	assert.Equal(t, domain.TrendStable, gout.Trend)
	assert.Equal(t, "medical_services", gout.Icon)

	_, err = svc.Create(ctx, 1, domain.ConditionInput{ConditionCode: "gout", Title: "Gout again", Type: domain.ConditionChronic})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = svc.Create(ctx, 1, domain.ConditionInput{ConditionCode: "peanut", Title: "Peanuts", Type: domain.ConditionAllergy})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, domain.ConditionInput{ConditionCode: "x", Title: "X", Type: "OTHER"})
	assert.True(t, domain.IsValidation(err))

	all, err := svc.List(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	allergies, err := svc.List(ctx, 1, domain.ConditionAllergy)
	require.NoError(t, err)
	require.Len(t, allergies, 1)
	assert.Equal(t, "peanut", allergies[0].ConditionCode)

	status := domain.StatusStable
	value := "420"
	updated, err := svc.Update(ctx, 1, gout.ID, domain.ConditionPatch{Status: &status, Value: &value})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStable, updated.Status)
	assert.Equal(t, "420", updated.Value)

	_, err = svc.Get(ctx, 2, gout.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, 1, gout.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1, gout.ID), domain.ErrNotFound)

	empty, err := svc.List(ctx, 3, "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}
