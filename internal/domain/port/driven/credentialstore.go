package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// FITSYNC_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set FITSYNC_SECRET_KEY")

// CredentialStore defines the driven port for durable per-user credential
// pairs. The adapter layer is responsible for encryption/decryption; this
// interface operates on plaintext values at the domain boundary.
// Implementations must be safe for concurrent use. Set replaces the pair
// atomically and the last writer wins.
type CredentialStore interface {
	// Get returns the credential pair for userID, or (nil, nil) if none exists.
	Get(ctx context.Context, userID string) (*model.CredentialPair, error)

	// Set stores the access credential for userID. An empty refresh value
	// keeps the previously stored refresh credential.
	Set(ctx context.Context, userID, access, refresh string) error

	// Delete removes the credential pair for userID.
	Delete(ctx context.Context, userID string) error

	// ListUserIDs returns every user with a stored credential pair.
	ListUserIDs(ctx context.Context) ([]string, error)
}
