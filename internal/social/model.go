package social

import "time"

type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformLinkedIn, PlatformTwitter, PlatformInstagram:
		return true
	}
	return false
}

// Account links a user to one external platform identity. The platform
// tokens are stored opaque; talking to the providers is the worker's job.
type Account struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Platform       Platform   `json:"platform"`
	PlatformUserID string     `json:"platform_user_id"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
