package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/excel-analytics/internal/auth"
)

// Name length bounds for accounts.
const (
	MinNameLength = 2
	MaxNameLength = 50
)

// AuthResult is returned by every operation that signs a user in.
type AuthResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate changes a user's own profile. Nil fields are left alone.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return fmt.Errorf("%w: name must be between %d and %d characters", ErrInvalidRequest, MinNameLength, MaxNameLength)
	}
	return nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < auth.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidRequest, auth.MinPasswordLength)
	}
	return nil
}

// Register creates an account with the user role and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       u.ID,
		Action:       ActionRegister,
		ResourceType: ResourceUser,
		ResourceID:   u.ID,
	})

	return s.signIn(u)
}

// Login checks credentials and records the login.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.touchLogin(ctx, u); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activityParams{
		UserID:       u.ID,
		Action:       ActionLogin,
		ResourceType: ResourceUser,
		ResourceID:   u.ID,
	})
	return s.signIn(u)
}

// AdminLogin is Login restricted to admin accounts. Non-admins get the
// same error as a wrong password.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleAdmin {
		return nil, ErrInvalidCredentials
	}
	if err := s.touchLogin(ctx, u); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activityParams{
		UserID:       u.ID,
		Action:       ActionAdminLogin,
		ResourceType: ResourceUser,
		ResourceID:   u.ID,
	})
	return s.signIn(u)
}

// Logout records the logout. Tokens are stateless and simply expire.
func (s *Service) Logout(ctx context.Context, userID string) {
	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionLogout,
		ResourceType: ResourceUser,
		ResourceID:   userID,
	})
}

// Profile returns a user's own account.
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound("user")
	}
	return u, err
}

// UpdateProfile changes a user's own name or email.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*User, error) {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var fields []string
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name != "" {
			if err := validateName(name); err != nil {
				return nil, err
			}
			u.Name = name
		}
		fields = append(fields, "name")
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != "" && email != u.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return nil, err
			}
			u.Email = email
		}
		fields = append(fields, "email")
	}

	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       u.ID,
		Action:       ActionProfileUpdate,
		ResourceType: ResourceUser,
		ResourceID:   u.ID,
		Metadata:     map[string]any{"updatedFields": fields},
	})
	return u, nil
}

// ForgotPassword checks that an account exists for email. No reset mail is
// sent.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	_, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return notFound("user")
	}
	return err
}

// ResetPassword validates the request and acknowledges it. Reset tokens are
// not issued, so nothing is changed.
func (s *Service) ResetPassword(_ context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: reset token is required", ErrInvalidRequest)
	}
	return validatePassword(password)
}

// Refresh exchanges a refresh token for a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.activeUser(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	return s.signIn(u)
}

// Authenticate resolves an access token to its active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.activeUser(ctx, claims.ID)
}

func (s *Service) activeUser(ctx context.Context, id string) (*User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: user not found", auth.ErrTokenInvalid)
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	return u, nil
}

func (s *Service) checkCredentials(ctx context.Context, email, password string) (*User, error) {
	u, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) touchLogin(ctx context.Context, u *User) error {
	now := s.now()
	u.LastLogin = &now
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) signIn(u *User) (*AuthResult, error) {
	token, err := s.issuer.Generate(u.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.GenerateRefresh(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, RefreshToken: refresh, User: u}, nil
}
