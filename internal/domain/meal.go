package domain

import (
	"context"
	"strings"
	"time"
)

// DayLayout is the calendar-date format used for record dates.
const DayLayout = "2006-01-02"

// MealType is the meal slot a record belongs to.
type MealType string

const (
	MealBreakfast MealType = "BREAKFAST"
	MealLunch     MealType = "LUNCH"
	MealDinner    MealType = "DINNER"
	MealSnack     MealType = "SNACK"
)

// Valid reports whether t is a known meal type.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// FoodCategory is the coarse food group of a record.
type FoodCategory string

const (
	CategoryStaple FoodCategory = "STAPLE"
	CategoryMeat   FoodCategory = "MEAT"
	CategoryVeg    FoodCategory = "VEG"
	CategoryDrink  FoodCategory = "DRINK"
	CategorySnack  FoodCategory = "SNACK"
)

// Valid reports whether c is a known food category.
func (c FoodCategory) Valid() bool {
	switch c {
	case CategoryStaple, CategoryMeat, CategoryVeg, CategoryDrink, CategorySnack:
		return true
	}
	return false
}

// SyncStatus tracks a record's offline-sync state.
type SyncStatus string

const (
	SyncPending  SyncStatus = "PENDING"
	SyncSynced   SyncStatus = "SYNCED"
	SyncConflict SyncStatus = "CONFLICT"
)

// Meal is one logged food intake event.
type Meal struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"-"`
	ClientID     string       `json:"client_id"`
	Name         string       `json:"name"`
	Portion      string       `json:"portion"`
	Calories     float64      `json:"calories"`
	Sodium       float64      `json:"sodium"`
	Purine       float64      `json:"purine"`
	Protein      *float64     `json:"protein"`
	Carbs        *float64     `json:"carbs"`
	Fat          *float64     `json:"fat"`
	Fiber        *float64     `json:"fiber"`
	MealType     MealType     `json:"meal_type"`
	Category     FoodCategory `json:"category"`
	RecordDate   string       `json:"record_date"`
	Note         string       `json:"note,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	AIRecognized bool         `json:"ai_recognized"`
	SyncStatus   SyncStatus   `json:"sync_status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// MealInput is a client-proposed meal, either created directly or uploaded
// in a sync batch. The three required nutrition values are pointers so that
// an omitted field can be told apart from an explicit zero.
type MealInput struct {
	ClientID     string       `json:"client_id"`
	Name         string       `json:"name"`
	Portion      string       `json:"portion"`
	Calories     *float64     `json:"calories"`
	Sodium       *float64     `json:"sodium"`
	Purine       *float64     `json:"purine"`
	Protein      *float64     `json:"protein"`
	Carbs        *float64     `json:"carbs"`
	Fat          *float64     `json:"fat"`
	Fiber        *float64     `json:"fiber"`
	MealType     MealType     `json:"meal_type"`
	Category     FoodCategory `json:"category"`
	RecordDate   string       `json:"record_date"`
	Note         string       `json:"note"`
	ImageURL     string       `json:"image_url"`
	AIRecognized bool         `json:"ai_recognized"`
}

// Validate checks presence and bounds of every field.
func (in MealInput) Validate() error {
	switch {
	case strings.TrimSpace(in.ClientID) == "":
		return invalid("client_id", "is required")
	case len(in.ClientID) > 36:
		return invalid("client_id", "must be at most 36 characters")
	}
	if err := validateText("name", in.Name, 100, true); err != nil {
		return err
	}
	if err := validateText("portion", in.Portion, 50, true); err != nil {
		return err
	}
	required := []struct {
		field string
		v     *float64
	}{{"calories", in.Calories}, {"sodium", in.Sodium}, {"purine", in.Purine}}
	for _, r := range required {
		if r.v == nil {
			return invalid(r.field, "is required")
		}
		if err := nonNegative(r.field, r.v); err != nil {
			return err
		}
	}
	optional := []struct {
		field string
		v     *float64
	}{{"protein", in.Protein}, {"carbs", in.Carbs}, {"fat", in.Fat}, {"fiber", in.Fiber}}
	for _, o := range optional {
		if err := nonNegative(o.field, o.v); err != nil {
			return err
		}
	}
	if !in.MealType.Valid() {
		return invalid("meal_type", "must be one of BREAKFAST, LUNCH, DINNER, SNACK")
	}
	if !in.Category.Valid() {
		return invalid("category", "must be one of STAPLE, MEAT, VEG, DRINK, SNACK")
	}
	if _, err := time.Parse(DayLayout, in.RecordDate); err != nil {
		return invalid("record_date", "must be a YYYY-MM-DD date")
	}
	if err := validateText("note", in.Note, 500, false); err != nil {
		return err
	}
	return validateText("image_url", in.ImageURL, 500, false)
}

// Meal converts a validated input into a record owned by userID.
func (in MealInput) Meal(userID int64) Meal {
	return Meal{
		UserID:       userID,
		ClientID:     in.ClientID,
		Name:         in.Name,
		Portion:      in.Portion,
		Calories:     deref(in.Calories),
		Sodium:       deref(in.Sodium),
		Purine:       deref(in.Purine),
		Protein:      in.Protein,
		Carbs:        in.Carbs,
		Fat:          in.Fat,
		Fiber:        in.Fiber,
		MealType:     in.MealType,
		Category:     in.Category,
		RecordDate:   in.RecordDate,
		Note:         in.Note,
		ImageURL:     in.ImageURL,
		AIRecognized: in.AIRecognized,
		SyncStatus:   SyncSynced,
	}
}

// MealPatch holds the fields of an update request; nil fields are kept.
type MealPatch struct {
	Name     *string       `json:"name"`
	Portion  *string       `json:"portion"`
	Calories *float64      `json:"calories"`
	Sodium   *float64      `json:"sodium"`
	Purine   *float64      `json:"purine"`
	Protein  *float64      `json:"protein"`
	Carbs    *float64      `json:"carbs"`
	Fat      *float64      `json:"fat"`
	Fiber    *float64      `json:"fiber"`
	MealType *MealType     `json:"meal_type"`
	Category *FoodCategory `json:"category"`
	Note     *string       `json:"note"`
}

// Validate checks the bounds of every provided field.
func (p MealPatch) Validate() error {
	if p.Name != nil {
		if err := validateText("name", *p.Name, 100, true); err != nil {
			return err
		}
	}
	if p.Portion != nil {
		if err := validateText("portion", *p.Portion, 50, true); err != nil {
			return err
		}
	}
	nums := []struct {
		field string
		v     *float64
	}{
		{"calories", p.Calories}, {"sodium", p.Sodium}, {"purine", p.Purine},
		{"protein", p.Protein}, {"carbs", p.Carbs}, {"fat", p.Fat}, {"fiber", p.Fiber},
	}
	for _, n := range nums {
		if err := nonNegative(n.field, n.v); err != nil {
			return err
		}
	}
	if p.MealType != nil && !p.MealType.Valid() {
		return invalid("meal_type", "must be one of BREAKFAST, LUNCH, DINNER, SNACK")
	}
	if p.Category != nil && !p.Category.Valid() {
		return invalid("category", "must be one of STAPLE, MEAT, VEG, DRINK, SNACK")
	}
	if p.Note != nil {
		return validateText("note", *p.Note, 500, false)
	}
	return nil
}

// Apply copies the provided fields onto m.
func (p MealPatch) Apply(m *Meal) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Portion != nil {
		m.Portion = *p.Portion
	}
	if p.Calories != nil {
		m.Calories = *p.Calories
	}
	if p.Sodium != nil {
		m.Sodium = *p.Sodium
	}
	if p.Purine != nil {
		m.Purine = *p.Purine
	}
	if p.Protein != nil {
		m.Protein = p.Protein
	}
	if p.Carbs != nil {
		m.Carbs = p.Carbs
	}
	if p.Fat != nil {
		m.Fat = p.Fat
	}
	if p.Fiber != nil {
		m.Fiber = p.Fiber
	}
	if p.MealType != nil {
		m.MealType = *p.MealType
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.Note != nil {
		m.Note = *p.Note
	}
}

// MealFilter narrows a meal listing. Date wins over StartDate/EndDate.
type MealFilter struct {
	Date      string
	StartDate string
	EndDate   string
	Page      int
	PageSize  int
}

// Offset returns the row offset of the requested page.
func (f MealFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// DailyIntake aggregates a user's meals for one calendar day.
type DailyIntake struct {
	Date          string  `json:"date"`
	TotalCalories float64 `json:"total_calories"`
	TotalSodium   float64 `json:"total_sodium"`
	TotalPurine   float64 `json:"total_purine"`
	TotalProtein  float64 `json:"total_protein"`
	TotalCarbs    float64 `json:"total_carbs"`
	TotalFat      float64 `json:"total_fat"`
	MealCount     int     `json:"meal_count"`
}

// Add accumulates m into the totals.
func (d *DailyIntake) Add(m Meal) {
	d.TotalCalories += m.Calories
	d.TotalSodium += m.Sodium
	d.TotalPurine += m.Purine
	d.TotalProtein += deref(m.Protein)
	d.TotalCarbs += deref(m.Carbs)
	d.TotalFat += deref(m.Fat)
	d.MealCount++
}

// MealRepository is the port for meal persistence. Lookups return
// (nil, nil) when nothing matches; Update and Delete return ErrNotFound.
type MealRepository interface {
	FindByClientID(ctx context.Context, userID int64, clientID string) (*Meal, error)
	Insert(ctx context.Context, m *Meal) (*Meal, error)
	ListUpdatedSince(ctx context.Context, userID int64, since *time.Time, limit int) ([]Meal, error)
	GetMeal(ctx context.Context, userID, id int64) (*Meal, error)
	UpdateMeal(ctx context.Context, m *Meal) error
	DeleteMeal(ctx context.Context, userID, id int64) error
	ListMeals(ctx context.Context, userID int64, f MealFilter) ([]Meal, int, error)
	ListMealsForDay(ctx context.Context, userID int64, day string) ([]Meal, error)
	DailyIntake(ctx context.Context, userID int64, day string) (DailyIntake, error)
}

// MealStore is a MealRepository that can run a unit of work atomically.
// fn receives a repository bound to the transaction; a non-nil return
// rolls every write back.
type MealStore interface {
	MealRepository
	WithinMealTx(ctx context.Context, fn func(tx MealRepository) error) error
}

func validateText(field, v string, max int, required bool) error {
	if required && strings.TrimSpace(v) == "" {
		return invalid(field, "is required")
	}
	if len([]rune(v)) > max {
		return invalid(field, "is too long")
	}
	return nil
}

func nonNegative(field string, v *float64) error {
	if v != nil && *v < 0 {
		return invalid(field, "must be >= 0")
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
