package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Both credentials of a pair are encrypted with AES-256-GCM before write and
// decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (all operations will return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Set stores the access credential for userID. An empty refresh value keeps
// the stored refresh credential. The whole pair is written in one statement,
// so concurrent writers never interleave and the last writer wins.
func (r *CredentialRepo) Set(ctx context.Context, userID, access, refresh string) error {
	encAccess, err := r.encrypt(access)
	if err != nil {
		return err
	}

	var encRefresh sql.NullString
	if refresh != "" {
		encRefresh.String, err = r.encrypt(refresh)
		if err != nil {
			return err
		}
		encRefresh.Valid = true
	}

	const query = `
		INSERT INTO credentials (user_id, access_token, refresh_token, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, credentials.refresh_token),
			updated_at    = excluded.updated_at`
	if _, err := r.db.Writer.ExecContext(ctx, query, userID, encAccess, encRefresh); err != nil {
		return fmt.Errorf("set credentials for %q: %w", userID, err)
	}
	return nil
}

// Get retrieves the plaintext credential pair for userID.
// Returns (nil, nil) if no pair is stored.
func (r *CredentialRepo) Get(ctx context.Context, userID string) (*model.CredentialPair, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT access_token, refresh_token, updated_at FROM credentials WHERE user_id = ?`
	var (
		encAccess  string
		encRefresh sql.NullString
		updatedAt  string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&encAccess, &encRefresh, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials for %q: %w", userID, err)
	}

	pair := &model.CredentialPair{UserID: userID}
	pair.AccessToken, err = r.decrypt(encAccess)
	if err != nil {
		return nil, fmt.Errorf("decrypt access credential for %q: %w", userID, err)
	}
	if encRefresh.Valid {
		pair.RefreshToken, err = r.decrypt(encRefresh.String)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh credential for %q: %w", userID, err)
		}
	}
	pair.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for %q: %w", userID, err)
	}
	return pair, nil
}

// ListUserIDs returns every user with a stored credential pair, ordered by ID.
func (r *CredentialRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT user_id FROM credentials ORDER BY user_id`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credential users: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan credential user: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential users: %w", err)
	}
	return ids, nil
}

// Delete removes the credential pair for userID.
func (r *CredentialRepo) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM credentials WHERE user_id = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("delete credentials for %q: %w", userID, err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *CredentialRepo) gcm() (cipher.AEAD, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
