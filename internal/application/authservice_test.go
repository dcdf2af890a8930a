package application_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitsync/internal/application"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

func newAuthService(t *testing.T, exchanger *mockCodeExchanger, creds *mockCredentialStore) *application.AuthService {
	t.Helper()
	svc, err := application.NewAuthService(exchanger, creds, time.Minute, discardLogger())
	require.NoError(t, err)
	return svc
}

func stateFrom(t *testing.T, consentURL string) string {
	t.Helper()
	u, err := url.Parse(consentURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestAuthService_BeginAndComplete(t *testing.T) {
	creds := newMockCredentialStore()
	exchanger := &mockCodeExchanger{grant: driven.TokenGrant{AccessToken: "access-new", RefreshToken: "refresh-new"}}
	svc := newAuthService(t, exchanger, creds)
	ctx := context.Background()

	consentURL, err := svc.Begin("user-1")
	require.NoError(t, err)
	state := stateFrom(t, consentURL)

	userID, err := svc.Complete(ctx, state, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "auth-code", exchanger.lastCode)

	pair, err := creds.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "access-new", pair.AccessToken)
	assert.Equal(t, "refresh-new", pair.RefreshToken)
}

func TestAuthService_StatesAreDistinct(t *testing.T) {
	svc := newAuthService(t, &mockCodeExchanger{}, newMockCredentialStore())

	first, err := svc.Begin("user-1")
	require.NoError(t, err)
	second, err := svc.Begin("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, stateFrom(t, first), stateFrom(t, second))
}

func TestAuthService_StateIsSingleUse(t *testing.T) {
	exchanger := &mockCodeExchanger{grant: driven.TokenGrant{AccessToken: "a", RefreshToken: "r"}}
	svc := newAuthService(t, exchanger, newMockCredentialStore())
	ctx := context.Background()

	consentURL, err := svc.Begin("user-1")
	require.NoError(t, err)
	state := stateFrom(t, consentURL)

	_, err = svc.Complete(ctx, state, "code")
	require.NoError(t, err)

	_, err = svc.Complete(ctx, state, "code")
	require.ErrorIs(t, err, application.ErrUnknownAuthState)
}

func TestAuthService_UnknownState(t *testing.T) {
	creds := newMockCredentialStore()
	svc := newAuthService(t, &mockCodeExchanger{}, creds)

	_, err := svc.Complete(context.Background(), "never-issued", "code")
	require.ErrorIs(t, err, application.ErrUnknownAuthState)

	_, err = svc.Complete(context.Background(), "", "code")
	require.ErrorIs(t, err, application.ErrUnknownAuthState)

	ids, err := creds.ListUserIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAuthService_BeginRequiresUser(t *testing.T) {
	svc := newAuthService(t, &mockCodeExchanger{}, newMockCredentialStore())

	_, err := svc.Begin("")
	require.ErrorIs(t, err, application.ErrMissingUserID)
}

func TestAuthService_ExchangeFailureStoresNothing(t *testing.T) {
	creds := newMockCredentialStore()
	exchangeErr := errors.New("invalid_grant")
	svc := newAuthService(t, &mockCodeExchanger{err: exchangeErr}, creds)
	ctx := context.Background()

	consentURL, err := svc.Begin("user-1")
	require.NoError(t, err)

	_, err = svc.Complete(ctx, stateFrom(t, consentURL), "bad-code")
	require.ErrorIs(t, err, exchangeErr)

	pair, err := creds.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestAuthService_Disconnect(t *testing.T) {
	creds := newMockCredentialStore("user-1", "user-2")
	svc := newAuthService(t, &mockCodeExchanger{}, creds)
	ctx := context.Background()

	require.NoError(t, svc.Disconnect(ctx, "user-1"))

	pair, err := creds.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, pair)

	other, err := creds.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.NotNil(t, other)
}
