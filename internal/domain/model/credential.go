package model

import "time"

// CredentialPair holds the provider credentials for one user. AccessToken is
// short-lived and replaced on every refresh. RefreshToken is long-lived and
// only replaced when the provider rotates it; an empty RefreshToken means the
// user has to repeat the authorization handshake once the access token expires.
type CredentialPair struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// HasRefreshToken reports whether a refresh credential is stored.
func (c CredentialPair) HasRefreshToken() bool {
	return c.RefreshToken != ""
}
