package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeInvalidCredentials, CodeOf(InvalidCredentials()))
	require.Equal(t, CodeTokenRevoked, CodeOf(TokenRevoked()))

	// Unknown errors are internal by policy.
	require.Equal(t, CodeInternal, CodeOf(errors.New("driver exploded")))

	// The code survives wrapping.
	wrapped := fmt.Errorf("login: %w", InvalidCredentials())
	require.Equal(t, CodeInvalidCredentials, CodeOf(wrapped))
	require.True(t, Is(wrapped, CodeInvalidCredentials))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, http.StatusInternalServerError, err.Status)
	require.NotContains(t, err.Message, "connection refused")
}

func TestAsErrorWrapsUnknown(t *testing.T) {
	appErr := AsError(errors.New("boom"))
	require.Equal(t, CodeInternal, appErr.Code)

	original := NotFound("post")
	require.Same(t, original, AsError(original))
}

func TestStatuses(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, InvalidCredentials().Status)
	require.Equal(t, http.StatusUnauthorized, InvalidToken("").Status)
	require.Equal(t, http.StatusUnauthorized, TokenExpired().Status)
	require.Equal(t, http.StatusUnauthorized, TokenRevoked().Status)
	require.Equal(t, http.StatusNotFound, NotFound("user").Status)
	require.Equal(t, http.StatusForbidden, NotAuthorized("").Status)
	require.Equal(t, http.StatusConflict, Conflict("exists").Status)
	require.Equal(t, http.StatusUnprocessableEntity, Validation("bad").Status)
	require.Equal(t, http.StatusTooManyRequests, RateLimited(time.Minute).Status)
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := RateLimited(5 * time.Minute)
	require.Equal(t, 5*time.Minute, err.RetryAfter)
}
