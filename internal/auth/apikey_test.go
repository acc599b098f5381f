package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gantrydb/gantry/internal/model"
)

// fakeKeyStore serves candidates from memory and records last-used stamps.
type fakeKeyStore struct {
	mu       sync.Mutex
	keys     []model.APIKey
	lastUsed []int64
}

func (f *fakeKeyStore) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.APIKey
	for _, k := range f.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeyStore) UpdateAPIKeyLastUsed(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUsed = append(f.lastUsed, id)
	return nil
}

func storedKey(id int64, rawKey string) model.APIKey {
	return model.APIKey{
		ID:        id,
		Name:      "key-" + rawKey[3:8],
		KeyHash:   HashAPIKey(rawKey),
		KeyPrefix: DisplayPrefix(rawKey),
		IsActive:  true,
		Permissions: model.Permissions{
			CanCreate: true, CanRead: true, CanUpdate: true,
		},
	}
}

func TestAuthenticateValidKey(t *testing.T) {
	raw := GenerateAPIKey()
	fs := &fakeKeyStore{keys: []model.APIKey{storedKey(7, raw)}}
	a := NewKeyAuthenticator(fs)

	id, err := a.Authenticate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.Kind != model.IdentityAPIKey {
		t.Errorf("Kind: got %q, want %q", id.Kind, model.IdentityAPIKey)
	}
	if id.ID != 7 {
		t.Errorf("ID: got %d, want 7", id.ID)
	}
	if !id.Perms.CanRead || id.Perms.CanDelete {
		t.Errorf("Perms: got %+v, want read without delete", id.Perms)
	}
	if id.IsAdmin {
		t.Error("API key identities must never be admin")
	}
}

func TestAuthenticateUnknownKey(t *testing.T) {
	raw := GenerateAPIKey()
	fs := &fakeKeyStore{keys: []model.APIKey{storedKey(1, raw)}}
	a := NewKeyAuthenticator(fs)

	// Same prefix, different tail: candidate lookup hits, hash compare misses.
	other := raw[:len(raw)-4] + "0000"
	if other == raw {
		other = raw[:len(raw)-4] + "ffff"
	}
	if _, err := a.Authenticate(context.Background(), other); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("Authenticate unknown: got %v, want ErrUnknownKey", err)
	}
}

func TestAuthenticateMalformedKey(t *testing.T) {
	a := NewKeyAuthenticator(&fakeKeyStore{})
	for _, raw := range []string{"", "gk", "not-a-key", "Bearer xyz"} {
		if _, err := a.Authenticate(context.Background(), raw); !errors.Is(err, ErrMalformedKey) {
			t.Errorf("Authenticate(%q): got %v, want ErrMalformedKey", raw, err)
		}
	}
}

func TestAuthenticateInactiveKey(t *testing.T) {
	raw := GenerateAPIKey()
	k := storedKey(2, raw)
	k.IsActive = false
	a := NewKeyAuthenticator(&fakeKeyStore{keys: []model.APIKey{k}})

	if _, err := a.Authenticate(context.Background(), raw); !errors.Is(err, ErrInactiveKey) {
		t.Fatalf("Authenticate inactive: got %v, want ErrInactiveKey", err)
	}
}

func TestAuthenticateExpiredKey(t *testing.T) {
	raw := GenerateAPIKey()
	k := storedKey(3, raw)
	past := time.Now().Add(-time.Hour)
	k.ExpiresAt = &past
	a := NewKeyAuthenticator(&fakeKeyStore{keys: []model.APIKey{k}})

	if _, err := a.Authenticate(context.Background(), raw); !errors.Is(err, ErrExpiredKey) {
		t.Fatalf("Authenticate expired: got %v, want ErrExpiredKey", err)
	}
}

func TestAuthenticateTrimsWhitespace(t *testing.T) {
	raw := GenerateAPIKey()
	a := NewKeyAuthenticator(&fakeKeyStore{keys: []model.APIKey{storedKey(4, raw)}})

	if _, err := a.Authenticate(context.Background(), "  "+raw+"\n"); err != nil {
		t.Fatalf("Authenticate padded key: %v", err)
	}
}

func TestGenerateAPIKeyShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		raw := GenerateAPIKey()
		if !strings.HasPrefix(raw, KeyPrefix) {
			t.Fatalf("key %q missing prefix %q", raw, KeyPrefix)
		}
		if len(raw) != len(KeyPrefix)+48 {
			t.Fatalf("key length: got %d, want %d", len(raw), len(KeyPrefix)+48)
		}
		if seen[raw] {
			t.Fatal("duplicate key generated")
		}
		seen[raw] = true
	}
}
