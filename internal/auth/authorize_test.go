package auth

import (
	"testing"

	"github.com/gantrydb/gantry/internal/model"
)

func TestAuthorize(t *testing.T) {
	admin := &model.Identity{Kind: model.IdentityUser, ID: 1, IsAdmin: true}
	user := &model.Identity{Kind: model.IdentityUser, ID: 2}
	fullKey := &model.Identity{
		Kind: model.IdentityAPIKey, ID: 3,
		Perms: model.Permissions{CanCreate: true, CanRead: true, CanUpdate: true, CanDelete: true},
	}
	readKey := &model.Identity{
		Kind: model.IdentityAPIKey, ID: 4,
		Perms: model.Permissions{CanRead: true},
	}
	createOnlyKey := &model.Identity{
		Kind: model.IdentityAPIKey, ID: 5,
		Perms: model.Permissions{CanCreate: true},
	}

	tests := []struct {
		name  string
		id    *model.Identity
		class model.EndpointClass
		op    model.Operation
		allow bool
	}{
		{"anonymous public", nil, model.ClassPublic, model.OpNone, true},
		{"anonymous read", nil, model.ClassRead, model.OpRead, false},

		{"admin read", admin, model.ClassRead, model.OpRead, true},
		{"admin write", admin, model.ClassWrite, model.OpCreate, true},
		{"admin delete", admin, model.ClassDelete, model.OpDelete, true},
		{"admin admin", admin, model.ClassAdmin, model.OpAdmin, true},

		{"user read", user, model.ClassRead, model.OpRead, true},
		{"user create", user, model.ClassWrite, model.OpCreate, true},
		{"user update", user, model.ClassWrite, model.OpUpdate, true},
		{"user delete denied", user, model.ClassDelete, model.OpDelete, false},
		{"user admin denied", user, model.ClassAdmin, model.OpAdmin, false},

		{"full key read", fullKey, model.ClassRead, model.OpRead, true},
		{"full key delete", fullKey, model.ClassDelete, model.OpDelete, true},
		{"key admin denied", fullKey, model.ClassAdmin, model.OpAdmin, false},

		{"read key read", readKey, model.ClassRead, model.OpRead, true},
		{"read key create denied", readKey, model.ClassWrite, model.OpCreate, false},
		{"read key update denied", readKey, model.ClassWrite, model.OpUpdate, false},
		{"read key delete denied", readKey, model.ClassDelete, model.OpDelete, false},

		{"create key create", createOnlyKey, model.ClassWrite, model.OpCreate, true},
		{"create key update denied", createOnlyKey, model.ClassWrite, model.OpUpdate, false},
		{"create key read denied", createOnlyKey, model.ClassRead, model.OpRead, false},

		{"key public", readKey, model.ClassPublic, model.OpNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.id, tt.class, tt.op)
			if tt.allow && err != nil {
				t.Errorf("Authorize: got %v, want allow", err)
			}
			if !tt.allow && err == nil {
				t.Error("Authorize: got allow, want deny")
			}
		})
	}
}
