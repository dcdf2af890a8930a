package googlefit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// RequestSpec fully describes one provider call. The executor does not
// interpret it beyond building the HTTP request.
type RequestSpec struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// TokenRefresher exchanges a rejected access credential for a fresh one.
type TokenRefresher interface {
	Refresh(ctx context.Context, userID, staleAccess string) (string, error)
}

// Executor issues authenticated provider calls. On an unauthorized response
// it refreshes the user's credential once and retries the call once; the
// retried outcome is final.
type Executor struct {
	httpClient *http.Client
	baseURL    string
	creds      driven.CredentialStore
	refresher  TokenRefresher
	logger     *slog.Logger
}

// NewExecutor creates an Executor. baseURL is the provider API root without a
// trailing slash, e.g. DefaultBaseURL.
func NewExecutor(httpClient *http.Client, baseURL string, creds driven.CredentialStore, refresher TokenRefresher, logger *slog.Logger) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
		refresher:  refresher,
		logger:     logger,
	}
}

// Execute performs spec on behalf of userID and decodes a successful JSON
// response into out (which may be nil).
//
// Errors:
//   - model.ErrUnauthenticated when no access credential is stored.
//   - *model.ReauthError when the credential expired and could not be refreshed.
//   - *model.ProviderError for every other non-success status or transport
//     failure; 403 and 404 match model.ErrMetricUnavailable.
func (e *Executor) Execute(ctx context.Context, userID string, spec RequestSpec, out any) error {
	ctx = withCacheScope(ctx, userID)

	pair, err := e.creds.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load credentials for %s: %w", userID, err)
	}
	if pair == nil || pair.AccessToken == "" {
		return model.ErrUnauthenticated
	}

	body, err := encodeBody(spec.Body)
	if err != nil {
		return err
	}

	resp, err := e.do(ctx, spec, body, pair.AccessToken)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainAndClose(resp)
		e.logger.Warn("access credential rejected, refreshing", "user_id", userID, "path", spec.Path)

		access, err := e.refresher.Refresh(ctx, userID, pair.AccessToken)
		if err != nil {
			return &model.ReauthError{Cause: err}
		}

		resp, err = e.do(ctx, spec, body, access)
		if err != nil {
			return err
		}
	}

	return decodeResponse(resp, out)
}

// do builds and sends a single request. The body is re-read from the encoded
// bytes on every attempt.
func (e *Executor) do(ctx context.Context, spec RequestSpec, body []byte, accessToken string) (*http.Response, error) {
	u, err := url.Parse(e.baseURL + spec.Path)
	if err != nil {
		return nil, fmt.Errorf("parse request URL %q: %w", spec.Path, err)
	}
	if len(spec.Query) > 0 {
		u.RawQuery = spec.Query.Encode()
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, spec.Path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Message: err.Error(), URL: u.Redacted(), Err: err}
	}
	return resp, nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return data, nil
}

func decodeResponse(resp *http.Response, out any) error {
	if err := parseErrorResponse(resp); err != nil {
		return err
	}
	defer drainAndClose(resp)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    "decode response: " + err.Error(),
			Err:        err,
		}
	}
	return nil
}
