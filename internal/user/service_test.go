package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"socialqueue/internal/apperr"
)

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Sup3rSecret!", false},
		{"minimum length", "Aa1!bb", false},
		{"too short", "Aa1!b", true},
		{"too long", strings.Repeat("Aa1!", 8), true},
		{"no uppercase", "sup3rsecret!", true},
		{"no lowercase", "SUP3RSECRET!", true},
		{"no digit", "SuperSecret!", true},
		{"no special", "Sup3rSecret", true},
		{"empty", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePasswordStrength(tc.password)
			if tc.wantErr {
				require.True(t, apperr.Is(err, apperr.CodeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestEmailValidation(t *testing.T) {
	valid := []string{"ada@example.com", "a.b+c@sub.example.org"}
	for _, email := range valid {
		require.True(t, emailRegex.MatchString(email), email)
	}

	invalid := []string{"", "ada", "ada@", "@example.com", "ada@example", "a b@example.com"}
	for _, email := range invalid {
		require.False(t, emailRegex.MatchString(email), email)
	}
}
