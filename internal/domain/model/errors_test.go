package model_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"nil", nil, model.KindNone},
		{"unauthenticated", fmt.Errorf("lookup: %w", model.ErrUnauthenticated), model.KindUnauthenticated},
		{"no refresh credential", &model.ReauthError{Cause: model.ErrNoRefreshCredential}, model.KindNoRefreshCredential},
		{"refresh credential expired", &model.ReauthError{Cause: model.ErrRefreshCredentialExpired}, model.KindRefreshCredentialExpired},
		{"refresh failed", &model.ReauthError{Cause: fmt.Errorf("%w: status 503", model.ErrRefreshFailed)}, model.KindRefreshFailed},
		{"reauth other cause", &model.ReauthError{Cause: errors.New("boom")}, model.KindReauthRequired},
		{"forbidden", &model.ProviderError{StatusCode: http.StatusForbidden}, model.KindMetricUnavailable},
		{"not found", &model.ProviderError{StatusCode: http.StatusNotFound}, model.KindMetricUnavailable},
		{"server error", &model.ProviderError{StatusCode: http.StatusBadGateway}, model.KindProviderError},
		{"transport", &model.ProviderError{Err: errors.New("dial tcp: refused")}, model.KindProviderError},
		{"unknown", errors.New("something else"), model.KindProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.KindOf(tt.err))
		})
	}
}

func TestReauthError_MatchesSentinelAndCause(t *testing.T) {
	err := fmt.Errorf("fetch steps: %w", &model.ReauthError{Cause: model.ErrRefreshCredentialExpired})

	assert.ErrorIs(t, err, model.ErrReauthRequired)
	assert.ErrorIs(t, err, model.ErrRefreshCredentialExpired)
	assert.True(t, model.RequiresReauthorization(err))
}

func TestRequiresReauthorization_TransientRefreshFailure(t *testing.T) {
	err := &model.ReauthError{Cause: model.ErrRefreshFailed}
	assert.False(t, model.RequiresReauthorization(err))
}

func TestProviderError_Message(t *testing.T) {
	err := &model.ProviderError{StatusCode: http.StatusInternalServerError, Message: "backend error"}
	assert.Equal(t, "provider Internal Server Error (status 500): backend error", err.Error())

	transport := &model.ProviderError{Err: errors.New("timeout")}
	assert.Equal(t, "provider transport error", transport.Error())
	assert.NotErrorIs(t, transport, model.ErrMetricUnavailable)
}
