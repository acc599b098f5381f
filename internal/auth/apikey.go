package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gantrydb/gantry/internal/model"
)

// KeyPrefix marks raw API keys so the gatekeeper can tell them apart from
// JWTs in an Authorization: Bearer header.
const KeyPrefix = "gk_"

// prefixLen is how many characters of the raw key are stored for display and
// candidate lookup. Long enough to keep collisions rare, short enough to leak
// nothing useful.
const prefixLen = 8

// KeyStore is the slice of the credential store the authenticator needs.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id int64) error
}

// KeyAuthenticator validates presented API keys against stored hashes.
type KeyAuthenticator struct {
	store KeyStore
	now   func() time.Time
}

// NewKeyAuthenticator creates an authenticator backed by the given store.
func NewKeyAuthenticator(store KeyStore) *KeyAuthenticator {
	return &KeyAuthenticator{store: store, now: time.Now}
}

// Authenticate hashes the presented key and compares it against stored hashes
// in constant time. Unknown, inactive, and expired keys fail with distinct
// internal errors; callers must collapse all of them into one generic
// unauthorized signal outward.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, rawKey string) (*model.Identity, error) {
	rawKey = strings.TrimSpace(rawKey)
	if !strings.HasPrefix(rawKey, KeyPrefix) || len(rawKey) < prefixLen {
		return nil, ErrMalformedKey
	}

	hash := HashAPIKey(rawKey)
	candidates, err := a.store.GetAPIKeysByPrefix(ctx, rawKey[:prefixLen])
	if err != nil {
		return nil, err
	}

	// Compare against every candidate so timing does not reveal at which
	// position a match sits.
	var matched *model.APIKey
	for i := range candidates {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(candidates[i].KeyHash)) == 1 {
			matched = &candidates[i]
		}
	}
	if matched == nil {
		return nil, ErrUnknownKey
	}
	if !matched.IsActive {
		return nil, ErrInactiveKey
	}
	if matched.Expired(a.now()) {
		return nil, ErrExpiredKey
	}

	// Stamp last_used off the request path.
	go a.store.UpdateAPIKeyLastUsed(context.WithoutCancel(ctx), matched.ID)

	return &model.Identity{
		Kind:    model.IdentityAPIKey,
		ID:      matched.ID,
		Name:    matched.Name,
		IsAdmin: false,
		Perms:   matched.Permissions,
	}, nil
}

// GenerateAPIKey produces a new raw API key. The raw value is shown to the
// caller exactly once; only its hash and display prefix are persisted.
func GenerateAPIKey() string {
	buf := make([]byte, 24)
	rand.Read(buf)
	return KeyPrefix + hex.EncodeToString(buf)
}

// HashAPIKey returns the hex SHA-256 digest stored in place of the raw key.
func HashAPIKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}

// DisplayPrefix returns the stored identification prefix for a raw key.
func DisplayPrefix(rawKey string) string {
	if len(rawKey) < prefixLen {
		return rawKey
	}
	return rawKey[:prefixLen]
}
