package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gantrydb/gantry/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$fakehash",
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.Email != "alice@example.com" || !got.IsAdmin {
		t.Errorf("got %+v", got)
	}

	// Unique username.
	dup := &model.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate username: got %v, want ErrDuplicate", err)
	}

	if err := s.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	got, err = s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.IsActive {
		t.Error("expected user deactivated")
	}

	if err := s.UpdateUserLastLogin(ctx, u.ID); err != nil {
		t.Fatalf("UpdateUserLastLogin: %v", err)
	}
	got, _ = s.GetUserByID(ctx, u.ID)
	if got.LastLoginAt == nil {
		t.Error("expected last_login_at stamped")
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetUserByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestAPIKeyCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expiry := time.Now().Add(24 * time.Hour).UTC()
	k := &model.APIKey{
		Name:      "ci-pipeline",
		KeyHash:   "deadbeef",
		KeyPrefix: "gk_12345",
		IsActive:  true,
		Permissions: model.Permissions{
			CanCreate: true, CanRead: true,
		},
		ExpiresAt: &expiry,
	}
	if err := s.CreateAPIKey(ctx, k); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	got, err := s.GetAPIKeyByID(ctx, k.ID)
	if err != nil {
		t.Fatalf("GetAPIKeyByID: %v", err)
	}
	if !got.CanCreate || !got.CanRead || got.CanUpdate || got.CanDelete {
		t.Errorf("permission flags: got %+v", got.Permissions)
	}
	if got.ExpiresAt == nil {
		t.Error("expected expires_at persisted")
	}

	// Prefix lookup feeds the authenticator's candidate set.
	keys, err := s.GetAPIKeysByPrefix(ctx, "gk_12345")
	if err != nil {
		t.Fatalf("GetAPIKeysByPrefix: %v", err)
	}
	if len(keys) != 1 || keys[0].ID != k.ID {
		t.Errorf("prefix lookup: got %d keys", len(keys))
	}
	keys, _ = s.GetAPIKeysByPrefix(ctx, "gk_other")
	if len(keys) != 0 {
		t.Errorf("mismatched prefix lookup: got %d keys, want 0", len(keys))
	}

	// Flip permission flags; the next lookup must observe them.
	k.Permissions.CanRead = false
	k.Permissions.CanDelete = true
	if err := s.UpdateAPIKey(ctx, k); err != nil {
		t.Fatalf("UpdateAPIKey: %v", err)
	}
	got, _ = s.GetAPIKeyByID(ctx, k.ID)
	if got.CanRead || !got.CanDelete {
		t.Errorf("updated flags: got %+v", got.Permissions)
	}

	if err := s.UpdateAPIKeyLastUsed(ctx, k.ID); err != nil {
		t.Fatalf("UpdateAPIKeyLastUsed: %v", err)
	}
	got, _ = s.GetAPIKeyByID(ctx, k.ID)
	if got.LastUsed == nil {
		t.Error("expected last_used stamped")
	}

	if err := s.SetAPIKeyActive(ctx, k.ID, false); err != nil {
		t.Fatalf("SetAPIKeyActive: %v", err)
	}
	got, _ = s.GetAPIKeyByID(ctx, k.ID)
	if got.IsActive {
		t.Error("expected key deactivated")
	}

	if err := s.DeleteAPIKey(ctx, k.ID); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if _, err := s.GetAPIKeyByID(ctx, k.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
}

func TestToolCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tool := &model.Tool{
		Name:        "summarize",
		Version:     "1.0.0",
		Description: "Summarize a document",
		SchemaJSON:  `{"type":"object"}`,
	}
	if err := s.CreateTool(ctx, tool); err != nil {
		t.Fatalf("CreateTool: %v", err)
	}

	if err := s.CreateTool(ctx, &model.Tool{Name: "summarize", Version: "2.0.0", SchemaJSON: "{}"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate name: got %v, want ErrDuplicate", err)
	}

	got, err := s.GetToolByName(ctx, "summarize")
	if err != nil {
		t.Fatalf("GetToolByName: %v", err)
	}
	if got.Version != "1.0.0" {
		t.Errorf("Version: got %q", got.Version)
	}

	got.Version = "1.1.0"
	got.Description = "Summarize any document"
	if err := s.UpdateTool(ctx, got); err != nil {
		t.Fatalf("UpdateTool: %v", err)
	}
	updated, _ := s.GetToolByName(ctx, "summarize")
	if updated.Version != "1.1.0" {
		t.Errorf("after update Version: got %q", updated.Version)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("updated_at must not precede created_at")
	}

	if err := s.DeleteTool(ctx, "summarize"); err != nil {
		t.Fatalf("DeleteTool: %v", err)
	}
	if _, err := s.GetToolByName(ctx, "summarize"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteTool(ctx, "summarize"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing: got %v, want ErrNotFound", err)
	}
}

func TestListToolsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		tool := &model.Tool{
			Name:       fmt.Sprintf("tool-%02d", i),
			Version:    "1.0.0",
			SchemaJSON: "{}",
		}
		if err := s.CreateTool(ctx, tool); err != nil {
			t.Fatalf("CreateTool %d: %v", i, err)
		}
	}

	tools, total, err := s.ListTools(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if total != 25 {
		t.Errorf("total: got %d, want 25", total)
	}
	if len(tools) != 10 {
		t.Errorf("page 1 size: got %d, want 10", len(tools))
	}

	tools, _, err = s.ListTools(ctx, 3, 10)
	if err != nil {
		t.Fatalf("ListTools page 3: %v", err)
	}
	if len(tools) != 5 {
		t.Errorf("page 3 size: got %d, want 5", len(tools))
	}

	tools, _, _ = s.ListTools(ctx, 4, 10)
	if len(tools) != 0 {
		t.Errorf("page past the end: got %d tools, want 0", len(tools))
	}
}

func TestSearchTools(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []model.Tool{
		{Name: "web-search", Version: "1.0.0", Description: "Search the web", SchemaJSON: "{}"},
		{Name: "calculator", Version: "1.0.0", Description: "Evaluate math", SchemaJSON: "{}"},
		{Name: "doc-search", Version: "1.0.0", Description: "Search documents", SchemaJSON: "{}"},
	}
	for i := range seed {
		if err := s.CreateTool(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateTool: %v", err)
		}
	}

	tools, total, err := s.SearchTools(ctx, "search", 1, 10)
	if err != nil {
		t.Fatalf("SearchTools: %v", err)
	}
	if total != 2 || len(tools) != 2 {
		t.Errorf("search %q: got total=%d len=%d, want 2/2", "search", total, len(tools))
	}

	// Description matches count too.
	_, total, _ = s.SearchTools(ctx, "math", 1, 10)
	if total != 1 {
		t.Errorf("search %q: got total=%d, want 1", "math", total)
	}

	_, total, _ = s.SearchTools(ctx, "nothing-here", 1, 10)
	if total != 0 {
		t.Errorf("search miss: got total=%d, want 0", total)
	}
}
