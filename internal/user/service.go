package user

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"socialqueue/internal/apperr"
	"socialqueue/internal/observability"
	"socialqueue/internal/security"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	minPasswordLength = 6
	maxPasswordLength = 30
)

type Service struct {
	repo      *Repository
	passwords *security.PasswordManager
	logger    *observability.Logger
}

func NewService(repo *Repository, passwords *security.PasswordManager, logger *observability.Logger) *Service {
	return &Service{repo: repo, passwords: passwords, logger: logger}
}

func (s *Service) Create(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailRegex.MatchString(email) {
		return nil, apperr.Validation("email address is invalid")
	}
	if err := validatePasswordStrength(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u, err := s.repo.Create(ctx, email, hash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user_created", map[string]any{"user_id": u.ID})
	return u, nil
}

// Delete removes an account. Callers may only delete themselves; the
// authenticated identity already proved itself, so failures here are
// specific, not generic.
func (s *Service) Delete(ctx context.Context, targetID string, current *User) error {
	target, err := s.repo.Get(ctx, targetID)
	if err != nil {
		return err
	}

	if current.ID != target.ID {
		return apperr.NotAuthorized("you are not authorized to delete this user")
	}

	if err := s.repo.Delete(ctx, target.ID); err != nil {
		return err
	}

	s.logger.Warn("user_deleted", map[string]any{"user_id": target.ID})
	return nil
}

func validatePasswordStrength(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return apperr.Validation("password must be between 6 and 30 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return apperr.Validation("password must contain at least one uppercase letter")
	case !hasLower:
		return apperr.Validation("password must contain at least one lowercase letter")
	case !hasDigit:
		return apperr.Validation("password must contain at least one digit")
	case !hasSpecial:
		return apperr.Validation("password must contain at least one special character")
	}

	return nil
}
