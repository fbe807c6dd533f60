package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prism/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// IntakeObserver is notified after a user's meals for a day change.
type IntakeObserver interface {
	CheckIntake(ctx context.Context, userID int64, day string)
}

// MealService handles meal logging and offline sync.
type MealService struct {
	meals    domain.MealStore
	sync     *Reconciler
	observer IntakeObserver
	now      func() time.Time
}

// NewMealService creates a meal service. observer may be nil.
func NewMealService(meals domain.MealStore, sync *Reconciler, observer IntakeObserver) *MealService {
	return &MealService{meals: meals, sync: sync, observer: observer, now: time.Now}
}

// Create stores a meal. It is idempotent by client id: when the user
// already has a meal with that key it is returned unchanged and created
// is false.
func (s *MealService) Create(ctx context.Context, userID int64, in domain.MealInput) (*domain.Meal, bool, error) {
	if err := in.Validate(); err != nil {
		return nil, false, err
	}

	existing, err := s.meals.FindByClientID(ctx, userID, in.ClientID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	m := in.Meal(userID)
	created, err := s.meals.Insert(ctx, &m)
	if errors.Is(err, domain.ErrDuplicate) {
		existing, err = s.meals.FindByClientID(ctx, userID, in.ClientID)
		if err == nil && existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	s.notify(ctx, userID, created.RecordDate)
	return created, true, nil
}

// List returns one page of the user's meals.
func (s *MealService) List(ctx context.Context, userID int64, f domain.MealFilter) (*Page[domain.Meal], error) {
	for field, v := range map[string]string{"date": f.Date, "start_date": f.StartDate, "end_date": f.EndDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(domain.DayLayout, v); err != nil {
			return nil, &domain.ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
		}
	}
	f.Page, f.PageSize = clampPage(f.Page, f.PageSize)

	items, total, err := s.meals.ListMeals(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, f.Page, f.PageSize), nil
}

// Today returns the meals recorded for the current local day.
func (s *MealService) Today(ctx context.Context, userID int64) ([]domain.Meal, error) {
	meals, err := s.meals.ListMealsForDay(ctx, userID, s.today())
	if err != nil {
		return nil, err
	}
	if meals == nil {
		meals = []domain.Meal{}
	}
	return meals, nil
}

// Get returns one of the user's meals.
func (s *MealService) Get(ctx context.Context, userID, id int64) (*domain.Meal, error) {
	m, err := s.meals.GetMeal(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("meal %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// Update applies the provided fields to a meal and bumps its update time.
func (s *MealService) Update(ctx context.Context, userID, id int64, patch domain.MealPatch) (*domain.Meal, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(m)
	if err := s.meals.UpdateMeal(ctx, m); err != nil {
		return nil, err
	}
	s.notify(ctx, userID, m.RecordDate)
	return m, nil
}

// Delete removes one of the user's meals.
func (s *MealService) Delete(ctx context.Context, userID, id int64) error {
	return s.meals.DeleteMeal(ctx, userID, id)
}

// Summary totals the user's intake for day; an empty day means today.
func (s *MealService) Summary(ctx context.Context, userID int64, day string) (domain.DailyIntake, error) {
	if day == "" {
		day = s.today()
	}
	if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return domain.DailyIntake{}, &domain.ValidationError{Field: "target_date", Reason: "must be a YYYY-MM-DD date"}
	}
	return s.meals.DailyIntake(ctx, userID, day)
}

// Sync reconciles an offline batch and checks intake for every touched day.
func (s *MealService) Sync(ctx context.Context, userID int64, batch []domain.MealInput, lastSyncAt *time.Time) (*SyncResult, error) {
	res, err := s.sync.Reconcile(ctx, userID, batch, lastSyncAt)
	if err != nil {
		return nil, err
	}
	days := make(map[string]struct{})
	for _, m := range res.Inserted {
		if _, ok := days[m.RecordDate]; ok {
			continue
		}
		days[m.RecordDate] = struct{}{}
		s.notify(ctx, userID, m.RecordDate)
	}
	return res, nil
}

func (s *MealService) notify(ctx context.Context, userID int64, day string) {
	if s.observer != nil {
		s.observer.CheckIntake(ctx, userID, day)
	}
}

func (s *MealService) today() string {
	return s.now().In(time.Local).Format(domain.DayLayout)
}
