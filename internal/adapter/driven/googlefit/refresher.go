package googlefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ TokenRefresher = (*Refresher)(nil)

// Refresher exchanges a user's refresh credential for a new access credential
// at the provider's token endpoint. Concurrent refreshes for the same user
// share one token request.
type Refresher struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	creds      driven.CredentialStore
	logger     *slog.Logger
	group      singleflight.Group
}

// NewRefresher creates a Refresher. httpClient is used for token endpoint
// calls; nil selects http.DefaultClient.
func NewRefresher(oauth *oauth2.Config, httpClient *http.Client, creds driven.CredentialStore, logger *slog.Logger) *Refresher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		oauth:      oauth,
		httpClient: httpClient,
		creds:      creds,
		logger:     logger,
	}
}

// Refresh returns a usable access credential for userID. staleAccess is the
// credential the provider just rejected; if the store already holds a
// different one, it is returned without contacting the token endpoint.
//
// Errors: model.ErrNoRefreshCredential and model.ErrRefreshCredentialExpired
// are terminal; model.ErrRefreshFailed is transient.
func (r *Refresher) Refresh(ctx context.Context, userID, staleAccess string) (string, error) {
	// The shared call must outlive any single waiter's context.
	ch := r.group.DoChan(userID, func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx), userID, staleAccess)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", model.ErrRefreshFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Refresher) refresh(ctx context.Context, userID, staleAccess string) (string, error) {
	pair, err := r.creds.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: load credentials: %w", model.ErrRefreshFailed, err)
	}
	if pair == nil || !pair.HasRefreshToken() {
		return "", model.ErrNoRefreshCredential
	}
	if pair.AccessToken != "" && pair.AccessToken != staleAccess {
		r.logger.Debug("credential already refreshed", "user_id", userID)
		return pair.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	token, err := r.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: pair.RefreshToken}).Token()
	if err != nil {
		return "", classifyRefreshError(err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint returned no access credential", model.ErrRefreshFailed)
	}

	// An empty refresh value keeps the stored one.
	rotated := ""
	if token.RefreshToken != "" && token.RefreshToken != pair.RefreshToken {
		rotated = token.RefreshToken
	}
	if err := r.creds.Set(ctx, userID, token.AccessToken, rotated); err != nil {
		return "", fmt.Errorf("%w: store refreshed credentials: %w", model.ErrRefreshFailed, err)
	}

	r.logger.Info("credential refreshed", "user_id", userID, "refresh_rotated", rotated != "")
	return token.AccessToken, nil
}

// classifyRefreshError separates a rejected refresh credential from a
// transient token endpoint failure.
func classifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %s", model.ErrRefreshCredentialExpired, retrieveErr.ErrorCode)
		}
		if retrieveErr.Response != nil {
			switch retrieveErr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				return fmt.Errorf("%w: token endpoint status %d", model.ErrRefreshCredentialExpired, retrieveErr.Response.StatusCode)
			}
		}
	}
	return fmt.Errorf("%w: %w", model.ErrRefreshFailed, err)
}
