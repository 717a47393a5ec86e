// Package auth authenticates API callers by key and issues new keys.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/agendabeleza/internal/api/authz"
	"github.com/codr1/agendabeleza/internal/db"
)

const (
	keyPrefix       = "ak_"
	keySecretBytes  = 32
	verifiedKeyTTL  = 5 * time.Minute
	bearerPrefix    = "bearer "
	apiKeyHeaderKey = "X-API-Key"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// KeyStore reads stored API keys.
type KeyStore interface {
	GetAPIKey(ctx context.Context, id string) (db.APIKey, error)
}

type verifiedKey struct {
	ownerID   string
	digest    [sha256.Size]byte
	expiresAt time.Time
}

// Authenticator verifies API keys against their bcrypt hashes. Successful
// verifications are remembered briefly so repeated calls skip bcrypt.
type Authenticator struct {
	store KeyStore
	now   func() time.Time

	mu       sync.RWMutex
	verified map[string]verifiedKey
}

func NewAuthenticator(store KeyStore) *Authenticator {
	return &Authenticator{
		store:    store,
		now:      time.Now,
		verified: make(map[string]verifiedKey),
	}
}

// CredentialFromHeaders extracts a key from "Authorization: Bearer" or X-API-Key.
func CredentialFromHeaders(authorization, apiKey string) string {
	authorization = strings.TrimSpace(authorization)
	if len(authorization) > len(bearerPrefix) && strings.EqualFold(authorization[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(authorization[len(bearerPrefix):])
	}
	return strings.TrimSpace(apiKey)
}

// APIKeyHeader is the alternative header carrying a key.
func APIKeyHeader() string {
	return apiKeyHeaderKey
}

// Authenticate resolves the owner for a presented key.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*authz.Owner, error) {
	if credential == "" {
		return nil, ErrMissingCredentials
	}
	keyID, secret, ok := splitKey(credential)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	digest := sha256.Sum256([]byte(secret))
	now := a.now()

	a.mu.RLock()
	cached, hit := a.verified[keyID]
	a.mu.RUnlock()
	if hit && now.Before(cached.expiresAt) && subtle.ConstantTimeCompare(cached.digest[:], digest[:]) == 1 {
		return &authz.Owner{ID: cached.ownerID, KeyID: keyID}, nil
	}

	key, err := a.store.GetAPIKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load api key: %w", err)
	}
	if key.RevokedAt.Valid || !VerifySecret(key.SecretHash, secret) {
		a.Forget(keyID)
		return nil, ErrInvalidCredentials
	}

	a.mu.Lock()
	a.verified[keyID] = verifiedKey{ownerID: key.OwnerID, digest: digest, expiresAt: now.Add(verifiedKeyTTL)}
	a.mu.Unlock()

	return &authz.Owner{ID: key.OwnerID, KeyID: keyID}, nil
}

// Forget drops a cached verification, e.g. after revocation.
func (a *Authenticator) Forget(keyID string) {
	a.mu.Lock()
	delete(a.verified, keyID)
	a.mu.Unlock()
}

// IssuedKey is a freshly minted key. Plaintext is only available here.
type IssuedKey struct {
	ID        string
	Plaintext string
}

// IssueKey creates and stores a new key for the owner.
func IssueKey(ctx context.Context, q *db.Queries, ownerID, label string) (IssuedKey, error) {
	secretBytes := make([]byte, keySecretBytes)
	if _, err := rand.Read(secretBytes); err != nil {
		return IssuedKey{}, fmt.Errorf("generate key secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	keyID := strings.ReplaceAll(uuid.New().String(), "-", "")

	hash, err := HashSecret(secret)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("hash key secret: %w", err)
	}

	label = strings.TrimSpace(label)
	if err := q.CreateAPIKey(ctx, db.CreateAPIKeyParams{
		ID:         keyID,
		OwnerID:    ownerID,
		SecretHash: hash,
		Label:      sql.NullString{String: label, Valid: label != ""},
	}); err != nil {
		return IssuedKey{}, fmt.Errorf("store api key: %w", err)
	}

	return IssuedKey{ID: keyID, Plaintext: keyPrefix + keyID + "." + secret}, nil
}

func splitKey(credential string) (keyID, secret string, ok bool) {
	if !strings.HasPrefix(credential, keyPrefix) {
		return "", "", false
	}
	keyID, secret, ok = strings.Cut(strings.TrimPrefix(credential, keyPrefix), ".")
	if !ok || keyID == "" || secret == "" {
		return "", "", false
	}
	return keyID, secret, true
}
