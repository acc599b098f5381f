package auth

import (
	"github.com/gantrydb/gantry/internal/model"
)

// Authorize decides whether an identity may perform an operation on a route
// of the given endpoint class. Deny is a hard stop; the downstream handler
// never runs.
//
// Rule table:
//
//	admin user:        everything
//	non-admin user:    public, read, write; never admin or delete
//	api key:           public always; read/write/delete per permission flag
func Authorize(id *model.Identity, class model.EndpointClass, op model.Operation) error {
	if class == model.ClassPublic {
		return nil
	}
	if id == nil {
		return ErrInsufficientPermission
	}
	if id.IsAdmin {
		return nil
	}

	switch id.Kind {
	case model.IdentityUser:
		// Non-admin users may do anything except admin and delete operations.
		if class == model.ClassAdmin || class == model.ClassDelete {
			return ErrInsufficientPermission
		}
		return nil

	case model.IdentityAPIKey:
		switch class {
		case model.ClassRead:
			if id.Perms.CanRead {
				return nil
			}
		case model.ClassWrite:
			if op == model.OpUpdate && id.Perms.CanUpdate {
				return nil
			}
			if op == model.OpCreate && id.Perms.CanCreate {
				return nil
			}
		case model.ClassDelete:
			if id.Perms.CanDelete {
				return nil
			}
		}
		return ErrInsufficientPermission
	}

	return ErrInsufficientPermission
}
