// Package auth orchestrates login, refresh-token rotation, logout and bulk
// token invalidation on top of the session-security engine.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"socialqueue/internal/apperr"
	"socialqueue/internal/observability"
	"socialqueue/internal/security"
	"socialqueue/internal/user"
)

// UserStore is the slice of the user repository the auth flows consume.
type UserStore interface {
	Get(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateHashedPassword(ctx context.Context, id, hashedPassword string) error
	SetTokensValidFrom(ctx context.Context, id string, validFrom time.Time) error
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type Service struct {
	users     UserStore
	tokens    *security.TokenManager
	passwords *security.PasswordManager
	limiter   *RateLimitService
	logger    *observability.Logger
	now       func() time.Time
}

func NewService(
	users UserStore,
	tokens *security.TokenManager,
	passwords *security.PasswordManager,
	limiter *RateLimitService,
	logger *observability.Logger,
) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		limiter:   limiter,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Login authenticates email+password. A locked-out client, an unknown
// account and a wrong password all produce the same invalid-credentials
// error; success is the only asymmetric branch.
func (s *Service) Login(ctx context.Context, email, password, clientID string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, apperr.InvalidCredentials()
	}

	limited, err := s.limiter.IsAuthRateLimited(ctx, clientID)
	if err != nil {
		// Fail closed: if the counter store cannot answer, do not let the
		// attempt through.
		return TokenPair{}, apperr.Internal(err)
	}
	if limited {
		return TokenPair{}, apperr.InvalidCredentials()
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return TokenPair{}, err
	}

	ok := u != nil && s.passwords.Verify(password, u.HashedPassword)
	if !ok {
		if recordErr := s.limiter.RecordFailedAuthAttempt(ctx, clientID); recordErr != nil {
			s.logger.Error("record_failed_auth_attempt_failed", map[string]any{"error": recordErr.Error()})
		}
		return TokenPair{}, apperr.InvalidCredentials()
	}

	if clearErr := s.limiter.ClearFailedAuthAttempts(ctx, clientID); clearErr != nil {
		s.logger.Error("clear_failed_auth_attempts_failed", map[string]any{"error": clearErr.Error()})
	}

	s.upgradeHashIfNeeded(ctx, u, password)

	pair, err := s.issuePair(u.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("user_logged_in", map[string]any{"user_id": u.ID})
	return pair, nil
}

// upgradeHashIfNeeded transparently re-hashes a verified password whose
// stored cost is below the configured target. Best effort: a failed persist
// must not fail the login.
func (s *Service) upgradeHashIfNeeded(ctx context.Context, u *user.User, password string) {
	if !s.passwords.NeedsUpgrade(u.HashedPassword) {
		return
	}

	newHash, err := s.passwords.Hash(password)
	if err != nil {
		s.logger.Warn("password_rehash_failed", map[string]any{"user_id": u.ID, "error": err.Error()})
		return
	}
	if err := s.users.UpdateHashedPassword(ctx, u.ID, newHash); err != nil {
		s.logger.Warn("password_rehash_persist_failed", map[string]any{"user_id": u.ID, "error": err.Error()})
		return
	}

	s.logger.Info("password_rehashed", map[string]any{"user_id": u.ID})
}

// Refresh rotates a refresh token: the presented token is revoked before the
// replacement pair is issued, and the revocation write is the exclusive
// arbiter between concurrent rotations of the same token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(ctx, refreshToken, security.TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	u, err := s.users.Get(ctx, claims.Subject)
	if err != nil {
		// Account deleted after the token was issued.
		return TokenPair{}, err
	}

	if err := s.tokens.RevokeOnce(ctx, refreshToken, "token refreshed"); err != nil {
		// Either another rotation won the race (token-revoked) or the write
		// could not be confirmed. In neither case may a new pair be issued.
		return TokenPair{}, err
	}

	pair, err := s.issuePair(u.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("token_refreshed", map[string]any{"user_id": u.ID})
	return pair, nil
}

// Logout revokes both tokens of a session. Best effort per token: both are
// attempted even if one fails, revoking an already-revoked token is a no-op
// success, and a malformed token cannot name a live session so it is
// skipped rather than failing the logout.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var errs []error
	for _, tokenString := range []string{accessToken, refreshToken} {
		if tokenString == "" {
			continue
		}
		err := s.tokens.Revoke(ctx, tokenString, "user logout")
		if err != nil && !apperr.Is(err, apperr.CodeInvalidToken) {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return apperr.Internal(err)
	}

	s.logger.Info("user_logged_out", nil)
	return nil
}

// RevokeAllUserTokens invalidates every token issued to the user before now
// by stamping the per-user cutoff. Tokens minted in the same instant remain
// valid; that skew is accepted in exchange for not enumerating token ids.
func (s *Service) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if err := s.users.SetTokensValidFrom(ctx, userID, s.now().UTC()); err != nil {
		return err
	}

	s.logger.Info("all_tokens_revoked", map[string]any{"user_id": userID})
	return nil
}

func (s *Service) issuePair(userID string) (TokenPair, error) {
	access, err := s.tokens.Create(userID, security.TokenTypeAccess)
	if err != nil {
		return TokenPair{}, apperr.Internal(err)
	}
	refresh, err := s.tokens.Create(userID, security.TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, apperr.Internal(err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}
