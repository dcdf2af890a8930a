package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/collection"

	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

var (
	// ErrUnknownAuthState means the callback carried a state that was never
	// issued, was already used or has expired.
	ErrUnknownAuthState = errors.New("unknown or expired authorization state")

	// ErrMissingUserID means an authorization was started without a user.
	ErrMissingUserID = errors.New("user id is required")
)

// AuthService runs the provider's authorization handshake: it issues a
// single-use correlation state, and on callback trades the code for a
// credential pair that it stores for the user.
type AuthService struct {
	exchanger driven.CodeExchanger
	creds     driven.CredentialStore
	logger    *slog.Logger

	mu     sync.Mutex
	states *collection.Cache
}

// NewAuthService creates an AuthService. Pending states expire after stateTTL.
func NewAuthService(exchanger driven.CodeExchanger, creds driven.CredentialStore, stateTTL time.Duration, logger *slog.Logger) (*AuthService, error) {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	states, err := collection.NewCache(stateTTL, collection.WithName("auth-states"))
	if err != nil {
		return nil, fmt.Errorf("create auth state cache: %w", err)
	}

	return &AuthService{
		exchanger: exchanger,
		creds:     creds,
		logger:    logger,
		states:    states,
	}, nil
}

// Begin starts an authorization for userID and returns the consent URL.
func (s *AuthService) Begin(userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}

	state := uuid.NewString()
	s.states.Set(state, userID)

	s.logger.Info("authorization started", "user_id", userID)
	return s.exchanger.AuthCodeURL(state), nil
}

// Complete consumes state, exchanges code and stores the resulting
// credential pair. It returns the user the state was issued for.
func (s *AuthService) Complete(ctx context.Context, state, code string) (string, error) {
	userID, ok := s.takeState(state)
	if !ok {
		return "", ErrUnknownAuthState
	}

	grant, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code for %s: %w", userID, err)
	}

	if err := s.creds.Set(ctx, userID, grant.AccessToken, grant.RefreshToken); err != nil {
		return "", fmt.Errorf("store credentials for %s: %w", userID, err)
	}

	s.logger.Info("authorization completed", "user_id", userID, "refresh_issued", grant.RefreshToken != "")
	return userID, nil
}

// Disconnect forgets the stored credential pair for userID.
func (s *AuthService) Disconnect(ctx context.Context, userID string) error {
	if err := s.creds.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete credentials for %s: %w", userID, err)
	}
	s.logger.Info("user disconnected", "user_id", userID)
	return nil
}

// takeState removes state from the pending set. Each state is usable once.
func (s *AuthService) takeState(state string) (string, bool) {
	if state == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.states.Get(state)
	if !ok {
		return "", false
	}
	s.states.Del(state)

	userID, ok := v.(string)
	return userID, ok
}
