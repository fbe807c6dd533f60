package app_test

import (
	"context"
	"testing"

	"prism/internal/adapter/memory"
	"prism/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func mealInput(clientID string, calories float64) domain.MealInput {
	return domain.MealInput{
		ClientID:   clientID,
		Name:       "Meal " + clientID,
		Portion:    "1 serving",
		Calories:   ptr(calories),
		Sodium:     ptr(100.0),
		Purine:     ptr(50.0),
		MealType:   domain.MealLunch,
		Category:   domain.CategoryStaple,
		RecordDate: "2026-01-15",
	}
}

func newUser(t *testing.T, db *memory.DB, active bool) *domain.User {
	t.Helper()
	u, err := db.Create(context.Background(), &domain.User{Phone: "", SSOSubject: t.Name(), IsActive: active})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}
