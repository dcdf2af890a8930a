package driven

import "context"

// TokenGrant is the credential pair issued by the provider's token endpoint.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
}

// CodeExchanger defines the driven port for the provider's authorization
// handshake.
type CodeExchanger interface {
	// AuthCodeURL returns the consent URL carrying the given correlation state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a credential pair.
	Exchange(ctx context.Context, code string) (TokenGrant, error)
}
