package domain_test

import (
	"testing"

	"prism/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestComputeDailyTargets(t *testing.T) {
	male := &domain.User{Gender: domain.GenderMale, Age: ptr(30), Height: ptr(175.0), Weight: ptr(70.0)}
	female := &domain.User{Gender: domain.GenderFemale, Age: ptr(25), Height: ptr(165.0), Weight: ptr(60.0)}

	tests := []struct {
		name       string
		user       *domain.User
		conditions []domain.HealthCondition
		want       domain.DailyTargets
	}{
		{"no user", nil, nil, domain.DailyTargets{Calories: 2000, Sodium: 2300, Purine: 600}},
		{"missing metrics", &domain.User{Gender: domain.GenderMale, Age: ptr(30)}, nil,
			domain.DailyTargets{Calories: 2000, Sodium: 2300, Purine: 600}},
		{"male", male, nil, domain.DailyTargets{Calories: 2267, Sodium: 2300, Purine: 600}},
		{"female", female, nil, domain.DailyTargets{Calories: 1849, Sodium: 2300, Purine: 600}},
		{"hypertension active", male, []domain.HealthCondition{
			{ConditionCode: "hypertension", Status: domain.StatusActive},
		}, domain.DailyTargets{Calories: 2267, Sodium: 1500, Purine: 600}},
		{"gout monitoring", male, []domain.HealthCondition{
			{ConditionCode: "gout", Status: domain.StatusMonitoring},
		}, domain.DailyTargets{Calories: 2267, Sodium: 2300, Purine: 300}},
		{"stable conditions ignored", male, []domain.HealthCondition{
			{ConditionCode: "gout", Status: domain.StatusStable},
			{ConditionCode: "hypertension", Status: domain.StatusAlert},
		}, domain.DailyTargets{Calories: 2267, Sodium: 2300, Purine: 600}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.ComputeDailyTargets(tc.user, tc.conditions)
			if got != tc.want {
				t.Errorf("ComputeDailyTargets() = %+v; want %+v", got, tc.want)
			}
		})
	}
}
