package googlefit

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// Scopes requested during authorization, read-only for every metric family.
var Scopes = []string{
	"https://www.googleapis.com/auth/fitness.activity.read",
	"https://www.googleapis.com/auth/fitness.body.read",
	"https://www.googleapis.com/auth/fitness.heart_rate.read",
	"https://www.googleapis.com/auth/fitness.location.read",
	"https://www.googleapis.com/auth/fitness.sleep.read",
}

// Endpoints of the Google OAuth 2.0 server.
const (
	DefaultAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
)

// NewOAuthConfig builds the OAuth client configuration shared by the
// Refresher and the CodeExchanger.
func NewOAuthConfig(clientID, clientSecret, redirectURL, authURL, tokenURL string) *oauth2.Config {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Compile-time interface satisfaction check.
var _ driven.CodeExchanger = (*CodeExchanger)(nil)

// CodeExchanger implements driven.CodeExchanger with golang.org/x/oauth2.
type CodeExchanger struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

// NewCodeExchanger creates a CodeExchanger. nil httpClient selects http.DefaultClient.
func NewCodeExchanger(oauth *oauth2.Config, httpClient *http.Client) *CodeExchanger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CodeExchanger{oauth: oauth, httpClient: httpClient}
}

// AuthCodeURL requests offline access with forced consent so the provider
// always issues a refresh credential.
func (x *CodeExchanger) AuthCodeURL(state string) string {
	return x.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a credential pair.
func (x *CodeExchanger) Exchange(ctx context.Context, code string) (driven.TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, x.httpClient)
	token, err := x.oauth.Exchange(ctx, code)
	if err != nil {
		return driven.TokenGrant{}, &model.ProviderError{Message: "exchange authorization code", Err: err}
	}
	if token.AccessToken == "" {
		return driven.TokenGrant{}, fmt.Errorf("exchange authorization code: %w", model.ErrUnauthenticated)
	}
	return driven.TokenGrant{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}
