// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"prism/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided phone or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid phone or password")
	// ErrSessionNotFound indicates that the refresh session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session or token has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidToken indicates a malformed or forged token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", domain.ErrNotFound)
	// ErrUserInactive indicates a disabled account.
	ErrUserInactive = fmt.Errorf("user is disabled: %w", domain.ErrForbidden)
)

// TokenPair is returned by every successful sign-in.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// AuthService handles accounts, token issuing and refresh sessions.
type AuthService struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	conditions domain.ConditionRepository
	tokens     *TokenIssuer
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, conditions domain.ConditionRepository, tokens *TokenIssuer, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		conditions: conditions,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Register creates a phone account and signs it in.
func (s *AuthService) Register(ctx context.Context, phone, password, nickname, userAgent, ip string) (*domain.User, *TokenPair, error) {
	if err := domain.ValidatePhone(phone); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidatePassword("password", password); err != nil {
		return nil, nil, err
	}
	if len([]rune(nickname)) > 50 {
		return nil, nil, &domain.ValidationError{Field: "nickname", Reason: "must be at most 50 characters"}
	}

	existing, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("phone %w", domain.ErrDuplicate)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	if nickname == "" {
		nickname = "User " + phone[len(phone)-4:]
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, &domain.User{
		Phone:        phone,
		PasswordHash: string(hash),
		Nickname:     nickname,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issue(ctx, user.ID, userAgent, ip)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login authenticates a phone account and opens a refresh session.
func (s *AuthService) Login(ctx context.Context, phone, password, userAgent, ip string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issue(ctx, user.ID, userAgent, ip)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh session: the old token is consumed and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (*TokenPair, error) {
	session, err := s.sessions.GetByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}
	if s.now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}
	return s.issue(ctx, user.ID, userAgent, ip)
}

// Logout invalidates a refresh session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Delete(ctx, refreshToken)
}

// Authenticate resolves the user behind an access token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	id, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// UpdateProfile applies a partial profile update.
func (s *AuthService) UpdateProfile(ctx context.Context, user *domain.User, patch domain.ProfilePatch) (*domain.User, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	updated := *user
	patch.Apply(&updated)
	updated.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) error {
	if err := domain.ValidatePassword("new_password", newPassword); err != nil {
		return err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	updated := *user
	updated.PasswordHash = string(hash)
	updated.UpdatedAt = s.now().UTC()
	return s.users.Update(ctx, &updated)
}

// DailyTargets computes the user's daily nutrient limits.
func (s *AuthService) DailyTargets(ctx context.Context, user *domain.User) (domain.DailyTargets, error) {
	conditions, err := s.conditions.ListConditions(ctx, user.ID, "")
	if err != nil {
		return domain.DailyTargets{}, err
	}
	return domain.ComputeDailyTargets(user, conditions), nil
}

// LoginWithSSO signs in a user authenticated by an identity provider,
// provisioning the account on first use.
func (s *AuthService) LoginWithSSO(ctx context.Context, subject, nickname, userAgent, ip string) (*domain.User, *TokenPair, error) {
	user, err := s.ValidateForwardAuth(ctx, subject, nickname)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.issue(ctx, user.ID, userAgent, ip)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// ValidateForwardAuth resolves the user named by a trusted proxy header,
// creating it if it does not exist yet.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, subject, nickname string) (*domain.User, error) {
	if subject == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetBySSOSubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if nickname == "" {
			nickname = subject
		}
		now := s.now().UTC()
		user, err = s.users.Create(ctx, &domain.User{
			SSOSubject: subject,
			Nickname:   nickname,
			IsActive:   true,
			IsVerified: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if errors.Is(err, domain.ErrDuplicate) {
			// Lost a provisioning race.
			user, err = s.users.GetBySSOSubject(ctx, subject)
		}
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// SweepSessions removes expired refresh sessions.
func (s *AuthService) SweepSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func (s *AuthService) issue(ctx context.Context, userID int64, userAgent, ip string) (*TokenPair, error) {
	access, exp, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.sessions.Create(ctx, &domain.Session{
		Token:     refresh,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(exp.Sub(now).Seconds()),
	}, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
