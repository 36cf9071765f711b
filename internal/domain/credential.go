package domain

import "time"

// Credential holds the OAuth token pair issued for a single tenant (a CRM
// location). Tokens are exchanged once during onboarding and refreshed
// whenever they expire.
type Credential struct {
	TenantID     string    `json:"tenant_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token has passed its expiry time.
// A token expiring exactly now is considered expired.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
