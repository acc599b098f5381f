package model

import "time"

// Permissions is the capability set attached to an API key. The four flags
// are independent booleans, not a hierarchy.
type Permissions struct {
	CanCreate bool `json:"can_create" db:"can_create"`
	CanRead   bool `json:"can_read" db:"can_read"`
	CanUpdate bool `json:"can_update" db:"can_update"`
	CanDelete bool `json:"can_delete" db:"can_delete"`
}

// APIKey represents a service credential used to authenticate non-interactive
// callers. The raw key is never stored; only a SHA-256 hash and a short prefix
// for identification are persisted.
type APIKey struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	KeyHash     string `json:"-" db:"key_hash"` // SHA-256 hash, never expose
	KeyPrefix   string `json:"key_prefix" db:"key_prefix"`
	Description string `json:"description" db:"description"`
	IsActive    bool   `json:"is_active" db:"is_active"`
	Permissions
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Expired reports whether the key carries an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}
