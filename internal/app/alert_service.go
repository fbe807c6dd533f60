package app

import (
	"context"
	"fmt"
	"strings"

	"prism/internal/domain"

	"go.uber.org/zap"
)

const alertAttribution = "Prism nutrition monitor"

// AlertService turns daily intake into warnings and evening briefs.
type AlertService struct {
	meals      domain.MealRepository
	users      domain.UserRepository
	conditions domain.ConditionRepository
	messages   *MessageService
	log        *zap.Logger
}

// NewAlertService creates an alert service.
func NewAlertService(meals domain.MealRepository, users domain.UserRepository, conditions domain.ConditionRepository, messages *MessageService, log *zap.Logger) *AlertService {
	return &AlertService{meals: meals, users: users, conditions: conditions, messages: messages, log: log}
}

// CheckIntake compares a day's sodium and purine totals with the user's
// targets and publishes one warning per exceeded nutrient and day. Errors
// are logged; they never fail the meal write that triggered the check.
func (s *AlertService) CheckIntake(ctx context.Context, userID int64, day string) {
	if err := s.checkIntake(ctx, userID, day); err != nil {
		s.log.Warn("intake check failed", zap.Int64("user_id", userID), zap.String("day", day), zap.Error(err))
	}
}

func (s *AlertService) checkIntake(ctx context.Context, userID int64, day string) error {
	intake, targets, err := s.intakeAndTargets(ctx, userID, day)
	if err != nil || targets == nil {
		return err
	}

	checks := []struct {
		nutrient string
		total    float64
		limit    int
	}{
		{"Sodium", intake.TotalSodium, targets.Sodium},
		{"Purine", intake.TotalPurine, targets.Purine},
	}
	for _, c := range checks {
		if c.total <= float64(c.limit) {
			continue
		}
		title := fmt.Sprintf("%s limit exceeded on %s", c.nutrient, day)
		exists, err := s.messages.Exists(ctx, userID, domain.MessageWarning, title)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		content := fmt.Sprintf("Your %s intake on %s is %.0f mg, above your daily limit of %d mg.",
			strings.ToLower(c.nutrient), day, c.total, c.limit)
		if _, err := s.messages.Publish(ctx, userID, domain.MessageWarning, title, content, alertAttribution); err != nil {
			return err
		}
		s.log.Info("intake warning published", zap.Int64("user_id", userID), zap.String("nutrient", c.nutrient), zap.String("day", day))
	}
	return nil
}

// DailyBrief publishes an intake summary for day to every active user who
// logged at least one meal. It returns the number of briefs sent.
func (s *AlertService) DailyBrief(ctx context.Context, day string) (int, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range users {
		u := &users[i]
		intake, targets, err := s.intakeAndTargets(ctx, u.ID, day)
		if err != nil {
			s.log.Warn("daily brief failed", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}
		if targets == nil || intake.MealCount == 0 {
			continue
		}
		title := "Daily brief for " + day
		content := fmt.Sprintf(
			"%d meals logged. Calories %.0f / %d kcal, sodium %.0f / %d mg, purine %.0f / %d mg.",
			intake.MealCount,
			intake.TotalCalories, targets.Calories,
			intake.TotalSodium, targets.Sodium,
			intake.TotalPurine, targets.Purine,
		)
		if _, err := s.messages.Publish(ctx, u.ID, domain.MessageBrief, title, content, alertAttribution); err != nil {
			s.log.Warn("daily brief publish failed", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// intakeAndTargets returns nil targets when the user no longer exists.
func (s *AlertService) intakeAndTargets(ctx context.Context, userID int64, day string) (domain.DailyIntake, *domain.DailyTargets, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		return domain.DailyIntake{}, nil, err
	}
	intake, err := s.meals.DailyIntake(ctx, userID, day)
	if err != nil {
		return domain.DailyIntake{}, nil, err
	}
	conditions, err := s.conditions.ListConditions(ctx, userID, "")
	if err != nil {
		return domain.DailyIntake{}, nil, err
	}
	t := domain.ComputeDailyTargets(user, conditions)
	return intake, &t, nil
}
