package app

import (
	"context"
	"fmt"
	"time"

	"prism/internal/domain"
)

// ConditionService manages chronic conditions and allergies.
type ConditionService struct {
	repo domain.ConditionRepository
	now  func() time.Time
}

// NewConditionService creates a condition service.
func NewConditionService(repo domain.ConditionRepository) *ConditionService {
	return &ConditionService{repo: repo, now: time.Now}
}

// Create adds a condition. A code may appear only once per user.
func (s *ConditionService) Create(ctx context.Context, userID int64, in domain.ConditionInput) (*domain.HealthCondition, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindConditionByCode(ctx, userID, in.ConditionCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("condition %q %w", in.ConditionCode, domain.ErrDuplicate)
	}

	c := in.Condition(userID)
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return s.repo.CreateCondition(ctx, &c)
}

// List returns the user's conditions of typ, newest first. An empty typ
// returns every condition.
func (s *ConditionService) List(ctx context.Context, userID int64, typ domain.ConditionType) ([]domain.HealthCondition, error) {
	out, err := s.repo.ListConditions(ctx, userID, typ)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.HealthCondition{}
	}
	return out, nil
}

// Get returns one of the user's conditions.
func (s *ConditionService) Get(ctx context.Context, userID, id int64) (*domain.HealthCondition, error) {
	c, err := s.repo.GetCondition(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("condition %d: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// Update applies the provided fields.
func (s *ConditionService) Update(ctx context.Context, userID, id int64, patch domain.ConditionPatch) (*domain.HealthCondition, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateCondition(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes one of the user's conditions.
func (s *ConditionService) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteCondition(ctx, userID, id)
}
