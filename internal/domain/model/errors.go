package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a fetch failure for diagnostics and API responses.
type ErrorKind string

const (
	KindNone                     ErrorKind = ""
	KindUnauthenticated          ErrorKind = "unauthenticated"
	KindReauthRequired           ErrorKind = "reauth_required"
	KindNoRefreshCredential      ErrorKind = "no_refresh_credential"
	KindRefreshCredentialExpired ErrorKind = "refresh_credential_expired"
	KindRefreshFailed            ErrorKind = "refresh_failed"
	KindMetricUnavailable        ErrorKind = "metric_unavailable"
	KindProviderError            ErrorKind = "provider_error"
)

var (
	// ErrUnauthenticated means no credential is stored for the user at all.
	ErrUnauthenticated = errors.New("no stored credential: authorization required")

	// ErrReauthRequired is matched by every *ReauthError.
	ErrReauthRequired = errors.New("credential refresh exhausted: reauthorization required")

	// ErrNoRefreshCredential means the stored pair has no refresh credential.
	ErrNoRefreshCredential = errors.New("no refresh credential stored")

	// ErrRefreshCredentialExpired means the provider rejected the refresh credential itself.
	ErrRefreshCredentialExpired = errors.New("refresh credential rejected by provider")

	// ErrRefreshFailed is a transient token-endpoint failure. Callers may retry.
	ErrRefreshFailed = errors.New("credential refresh failed")

	// ErrMetricUnavailable is matched by a *ProviderError carrying a
	// permission or not-found status. The metric is not authorized or not
	// present for this account.
	ErrMetricUnavailable = errors.New("metric unavailable")
)

// ReauthError is returned by the request executor when an expired access
// credential could not be refreshed. Cause is the refresher's error.
type ReauthError struct {
	Cause error
}

func (e *ReauthError) Error() string {
	return fmt.Sprintf("%s: %v", ErrReauthRequired, e.Cause)
}

func (e *ReauthError) Unwrap() error { return e.Cause }

// Is matches ErrReauthRequired.
func (e *ReauthError) Is(target error) bool {
	return target == ErrReauthRequired
}

// ProviderError is a non-success response or transport failure from the
// provider. StatusCode is zero for transport failures.
type ProviderError struct {
	StatusCode int
	Message    string
	URL        string
	Err        error
}

func (e *ProviderError) Error() string {
	status := "transport error"
	if e.StatusCode != 0 {
		status = fmt.Sprintf("%s (status %d)", http.StatusText(e.StatusCode), e.StatusCode)
	}
	if e.Message != "" {
		return fmt.Sprintf("provider %s: %s", status, e.Message)
	}
	return "provider " + status
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches ErrMetricUnavailable for permission and not-found statuses.
func (e *ProviderError) Is(target error) bool {
	return target == ErrMetricUnavailable && e.Unavailable()
}

// Unavailable reports whether the status means the metric is not authorized
// or not present for this account.
func (e *ProviderError) Unavailable() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusNotFound
}

// KindOf maps err onto the closed error taxonomy. Nil maps to KindNone and
// unrecognised errors to KindProviderError.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrNoRefreshCredential):
		return KindNoRefreshCredential
	case errors.Is(err, ErrRefreshCredentialExpired):
		return KindRefreshCredentialExpired
	case errors.Is(err, ErrRefreshFailed):
		return KindRefreshFailed
	case errors.Is(err, ErrReauthRequired):
		return KindReauthRequired
	case errors.Is(err, ErrMetricUnavailable):
		return KindMetricUnavailable
	default:
		return KindProviderError
	}
}

// RequiresReauthorization reports whether err can only be resolved by the
// user repeating the authorization handshake.
func RequiresReauthorization(err error) bool {
	switch KindOf(err) {
	case KindUnauthenticated, KindReauthRequired, KindNoRefreshCredential, KindRefreshCredentialExpired:
		return true
	default:
		return false
	}
}
