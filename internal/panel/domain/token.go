package domain

import "time"

// TokenGrant is what a successful login returns. The access token is
// stateless; nothing here is persisted.
type TokenGrant struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"` // always "bearer"
	ExpiresIn   time.Duration `json:"expires_in"` // seconds until expiry
}
