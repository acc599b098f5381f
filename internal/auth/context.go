package auth

import (
	"context"

	"github.com/gantrydb/gantry/internal/model"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// WithIdentity attaches the resolved identity to the request context.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated identity from the context.
// Returns nil for unauthenticated (public) requests.
func IdentityFromContext(ctx context.Context) *model.Identity {
	if id, ok := ctx.Value(identityKey).(*model.Identity); ok {
		return id
	}
	return nil
}
