package model

import "fmt"

// IdentityKind discriminates the two credential variants the gatekeeper
// understands.
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"
	IdentityAPIKey IdentityKind = "api_key"
)

// Identity is the resolved caller attached to a request after authentication.
// It is a flattened view over the User and APIKey variants: permission flags
// are populated from the backing record at authentication time, so admin
// toggles take effect on the very next request.
type Identity struct {
	Kind    IdentityKind
	ID      int64
	Name    string // username or API key name
	IsAdmin bool
	Perms   Permissions
}

// RateKey returns the bucket key used by the rate limiter for this identity.
func (id *Identity) RateKey() string {
	return fmt.Sprintf("%s:%d", id.Kind, id.ID)
}
