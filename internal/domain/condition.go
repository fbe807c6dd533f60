package domain

import (
	"context"
	"strings"
	"time"
)

// ConditionType separates chronic conditions from allergies.
type ConditionType string

const (
	ConditionChronic ConditionType = "CHRONIC"
	ConditionAllergy ConditionType = "ALLERGY"
)

// ConditionStatus is the clinical state of a condition.
type ConditionStatus string

const (
	StatusActive     ConditionStatus = "ACTIVE"
	StatusMonitoring ConditionStatus = "MONITORING"
	StatusStable     ConditionStatus = "STABLE"
	StatusAlert      ConditionStatus = "ALERT"
)

// Trend is the direction a condition is moving in.
type Trend string

const (
	TrendImproved  Trend = "IMPROVED"
	TrendWorsening Trend = "WORSENING"
	TrendStable    Trend = "STABLE"
)

// Well-known condition codes that change daily targets.
const (
	CodeHypertension = "hypertension"
	CodeGout         = "gout"
)

const defaultConditionIcon = "medical_services"

// HealthCondition is a chronic condition or allergy on a user's profile.
type HealthCondition struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"-"`
	ConditionCode string          `json:"condition_code"`
	Title         string          `json:"title"`
	Icon          string          `json:"icon"`
	Type          ConditionType   `json:"condition_type"`
	Status        ConditionStatus `json:"status"`
	Trend         Trend           `json:"trend"`
	Value         string          `json:"value,omitempty"`
	Unit          string          `json:"unit,omitempty"`
	Dictum        string          `json:"dictum,omitempty"`
	Attribution   string          `json:"attribution,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Affects reports whether the condition currently influences diet targets.
func (c HealthCondition) Affects() bool {
	return c.Status == StatusActive || c.Status == StatusMonitoring
}

// ConditionInput is the body of a create request.
type ConditionInput struct {
	ConditionCode string          `json:"condition_code"`
	Title         string          `json:"title"`
	Icon          string          `json:"icon"`
	Type          ConditionType   `json:"condition_type"`
	Status        ConditionStatus `json:"status"`
	Trend         Trend           `json:"trend"`
	Value         string          `json:"value"`
	Unit          string          `json:"unit"`
	Dictum        string          `json:"dictum"`
	Attribution   string          `json:"attribution"`
}

// Normalize fills defaults for omitted optional fields.
func (in *ConditionInput) Normalize() {
	in.ConditionCode = strings.TrimSpace(in.ConditionCode)
	if in.Icon == "" {
		in.Icon = defaultConditionIcon
	}
	if in.Status == "" {
		in.Status = StatusMonitoring
	}
	if in.Trend == "" {
		in.Trend = TrendStable
	}
}

// Validate checks presence and bounds of every field.
func (in ConditionInput) Validate() error {
	if err := validateText("condition_code", in.ConditionCode, 50, true); err != nil {
		return err
	}
	if err := validateText("title", in.Title, 100, true); err != nil {
		return err
	}
	if err := validateText("icon", in.Icon, 50, false); err != nil {
		return err
	}
	if in.Type != ConditionChronic && in.Type != ConditionAllergy {
		return invalid("condition_type", "must be CHRONIC or ALLERGY")
	}
	if !validStatus(in.Status) {
		return invalid("status", "must be one of ACTIVE, MONITORING, STABLE, ALERT")
	}
	if !validTrend(in.Trend) {
		return invalid("trend", "must be one of IMPROVED, WORSENING, STABLE")
	}
	if err := validateText("value", in.Value, 50, false); err != nil {
		return err
	}
	return validateText("unit", in.Unit, 20, false)
}

// Condition converts the input into a record owned by userID.
func (in ConditionInput) Condition(userID int64) HealthCondition {
	return HealthCondition{
		UserID:        userID,
		ConditionCode: in.ConditionCode,
		Title:         in.Title,
		Icon:          in.Icon,
		Type:          in.Type,
		Status:        in.Status,
		Trend:         in.Trend,
		Value:         in.Value,
		Unit:          in.Unit,
		Dictum:        in.Dictum,
		Attribution:   in.Attribution,
	}
}

// ConditionPatch holds the mutable fields of a condition.
type ConditionPatch struct {
	Status      *ConditionStatus `json:"status"`
	Trend       *Trend           `json:"trend"`
	Value       *string          `json:"value"`
	Unit        *string          `json:"unit"`
	Dictum      *string          `json:"dictum"`
	Attribution *string          `json:"attribution"`
}

// Validate checks the bounds of every provided field.
func (p ConditionPatch) Validate() error {
	if p.Status != nil && !validStatus(*p.Status) {
		return invalid("status", "must be one of ACTIVE, MONITORING, STABLE, ALERT")
	}
	if p.Trend != nil && !validTrend(*p.Trend) {
		return invalid("trend", "must be one of IMPROVED, WORSENING, STABLE")
	}
	if p.Value != nil {
		if err := validateText("value", *p.Value, 50, false); err != nil {
			return err
		}
	}
	if p.Unit != nil {
		return validateText("unit", *p.Unit, 20, false)
	}
	return nil
}

// Apply copies the provided fields onto c.
func (p ConditionPatch) Apply(c *HealthCondition) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Trend != nil {
		c.Trend = *p.Trend
	}
	if p.Value != nil {
		c.Value = *p.Value
	}
	if p.Unit != nil {
		c.Unit = *p.Unit
	}
	if p.Dictum != nil {
		c.Dictum = *p.Dictum
	}
	if p.Attribution != nil {
		c.Attribution = *p.Attribution
	}
}

func validStatus(s ConditionStatus) bool {
	switch s {
	case StatusActive, StatusMonitoring, StatusStable, StatusAlert:
		return true
	}
	return false
}

func validTrend(t Trend) bool {
	switch t {
	case TrendImproved, TrendWorsening, TrendStable:
		return true
	}
	return false
}

// ConditionRepository is the port for condition persistence. Lookups
// return (nil, nil) when nothing matches. An empty type lists every type.
type ConditionRepository interface {
	CreateCondition(ctx context.Context, c *HealthCondition) (*HealthCondition, error)
	GetCondition(ctx context.Context, userID, id int64) (*HealthCondition, error)
	FindConditionByCode(ctx context.Context, userID int64, code string) (*HealthCondition, error)
	ListConditions(ctx context.Context, userID int64, typ ConditionType) ([]HealthCondition, error)
	UpdateCondition(ctx context.Context, c *HealthCondition) error
	DeleteCondition(ctx context.Context, userID, id int64) error
}
