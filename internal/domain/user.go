// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"regexp"
	"time"
)

// Gender is the biological sex used for energy expenditure estimates.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// User represents an account holder.
type User struct {
	ID           int64      `json:"id"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"`
	SSOSubject   string     `json:"-"`
	Nickname     string     `json:"nickname,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	Gender       Gender     `json:"gender,omitempty"`
	Age          *int       `json:"age,omitempty"`
	Height       *float64   `json:"height,omitempty"`
	Weight       *float64   `json:"weight,omitempty"`
	IsActive     bool       `json:"is_active"`
	IsVerified   bool       `json:"is_verified"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// HasBodyMetrics reports whether every field needed for a BMR estimate is set.
func (u *User) HasBodyMetrics() bool {
	return u.Gender != "" && u.Age != nil && u.Height != nil && u.Weight != nil
}

// ProfilePatch carries the optional profile fields a user may change.
// Nil fields are left untouched.
type ProfilePatch struct {
	Nickname  *string  `json:"nickname"`
	AvatarURL *string  `json:"avatar_url"`
	Gender    *Gender  `json:"gender"`
	Age       *int     `json:"age"`
	Height    *float64 `json:"height"`
	Weight    *float64 `json:"weight"`
}

// Validate checks the bounds of every provided field.
func (p ProfilePatch) Validate() error {
	if p.Nickname != nil && len([]rune(*p.Nickname)) > 50 {
		return invalid("nickname", "must be at most 50 characters")
	}
	if p.AvatarURL != nil && len(*p.AvatarURL) > 500 {
		return invalid("avatar_url", "must be at most 500 characters")
	}
	if p.Gender != nil && *p.Gender != GenderMale && *p.Gender != GenderFemale {
		return invalid("gender", "must be MALE or FEMALE")
	}
	if p.Age != nil && (*p.Age < 1 || *p.Age > 150) {
		return invalid("age", "must be within [1, 150]")
	}
	if p.Height != nil && (*p.Height < 50 || *p.Height > 300) {
		return invalid("height", "must be within [50, 300] cm")
	}
	if p.Weight != nil && (*p.Weight < 10 || *p.Weight > 500) {
		return invalid("weight", "must be within [10, 500] kg")
	}
	return nil
}

// Apply copies the provided fields onto u.
func (p ProfilePatch) Apply(u *User) {
	if p.Nickname != nil {
		u.Nickname = *p.Nickname
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.Age != nil {
		u.Age = p.Age
	}
	if p.Height != nil {
		u.Height = p.Height
	}
	if p.Weight != nil {
		u.Weight = p.Weight
	}
}

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// ValidatePhone checks the 11-digit mobile number format used as login name.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return invalid("phone", "must be an 11-digit mobile number")
	}
	return nil
}

// ValidatePassword checks the password length policy.
func ValidatePassword(field, password string) error {
	if n := len([]rune(password)); n < 6 || n > 50 {
		return invalid(field, "must be 6 to 50 characters")
	}
	return nil
}

// Session represents an issued refresh token.
type Session struct {
	Token     string
	UserID    int64
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
// Lookups return (nil, nil) when no user matches.
type UserRepository interface {
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetBySSOSubject(ctx context.Context, subject string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u *User) (*User, error)
	Update(ctx context.Context, u *User) error
	ListActive(ctx context.Context) ([]User, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
