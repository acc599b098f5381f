package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gantrydb/gantry/internal/auth"
	"github.com/gantrydb/gantry/internal/model"
	"github.com/gantrydb/gantry/internal/store"
)

// AdminHandler manages identities: admin users and service API keys. Every
// route it serves sits behind the gate's admin class, so the caller is always
// an authenticated admin by the time these run.
type AdminHandler struct {
	store *store.Store
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(st *store.Store) *AdminHandler {
	return &AdminHandler{store: st}
}

// ---------------------------------------------------------------------------
// API key management
// ---------------------------------------------------------------------------

type apiKeyCreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CanCreate   *bool      `json:"can_create"`
	CanRead     *bool      `json:"can_read"`
	CanUpdate   *bool      `json:"can_update"`
	CanDelete   *bool      `json:"can_delete"`
}

// permissions applies the original defaults: create/read/update on, delete off.
func (req *apiKeyCreateRequest) permissions() model.Permissions {
	orDefault := func(v *bool, def bool) bool {
		if v == nil {
			return def
		}
		return *v
	}
	return model.Permissions{
		CanCreate: orDefault(req.CanCreate, true),
		CanRead:   orDefault(req.CanRead, true),
		CanUpdate: orDefault(req.CanUpdate, true),
		CanDelete: orDefault(req.CanDelete, false),
	}
}

type apiKeyCreateResponse struct {
	model.APIKey
	// Key is the raw API key, returned exactly once at creation.
	Key string `json:"key"`
}

// CreateAPIKey generates a new API key. The raw key value appears only in
// this response; afterwards only its hash exists.
// POST /admin/api-keys
func (h *AdminHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "API key name is required")
		return
	}

	rawKey := auth.GenerateAPIKey()
	key := &model.APIKey{
		Name:        req.Name,
		KeyHash:     auth.HashAPIKey(rawKey),
		KeyPrefix:   auth.DisplayPrefix(rawKey),
		Description: req.Description,
		IsActive:    true,
		Permissions: req.permissions(),
		ExpiresAt:   req.ExpiresAt,
	}
	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "API key name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	writeJSON(w, http.StatusCreated, apiKeyCreateResponse{APIKey: *key, Key: rawKey})
}

// ListAPIKeys returns all API keys (hashes excluded).
// GET /admin/api-keys
func (h *AdminHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// GetAPIKey returns a single API key by id.
// GET /admin/api-keys/{keyID}
func (h *AdminHandler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// UpdateAPIKey rewrites an API key's name, description, expiry, and
// permission flags. Flag changes are observed on the key's next request.
// PUT /admin/api-keys/{keyID}
func (h *AdminHandler) UpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFromPath(w, r)
	if !ok {
		return
	}

	var req apiKeyCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != "" {
		key.Name = req.Name
	}
	key.Description = req.Description
	key.ExpiresAt = req.ExpiresAt
	key.Permissions = req.permissions()

	if err := h.store.UpdateAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "API key name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update API key")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// ToggleAPIKey flips an API key's active flag.
// POST /admin/api-keys/{keyID}/toggle
func (h *AdminHandler) ToggleAPIKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFromPath(w, r)
	if !ok {
		return
	}
	key.IsActive = !key.IsActive
	if err := h.store.SetAPIKeyActive(r.Context(), key.ID, key.IsActive); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to toggle API key")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// DeleteAPIKey removes an API key permanently.
// DELETE /admin/api-keys/{keyID}
func (h *AdminHandler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFromPath(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteAPIKey(r.Context(), key.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete API key")
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "API key deleted successfully"})
}

func (h *AdminHandler) keyFromPath(w http.ResponseWriter, r *http.Request) (*model.APIKey, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid API key id")
		return nil, false
	}
	key, err := h.store.GetAPIKeyByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to load API key")
		return nil, false
	}
	return key, true
}

// ---------------------------------------------------------------------------
// User management
// ---------------------------------------------------------------------------

type userCreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// CreateUser registers a new admin user.
// POST /admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      req.IsAdmin,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "Username or email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// ListUsers returns all users.
// GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser returns a single user by id.
// GET /admin/users/{userID}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ToggleUser flips a user's active flag. Admins cannot deactivate their own
// account.
// POST /admin/users/{userID}/toggle
func (h *AdminHandler) ToggleUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}
	if caller := auth.IdentityFromContext(r.Context()); caller != nil &&
		caller.Kind == model.IdentityUser && caller.ID == user.ID {
		writeError(w, http.StatusBadRequest, "Cannot deactivate your own account")
		return
	}
	user.IsActive = !user.IsActive
	if err := h.store.SetUserActive(r.Context(), user.ID, user.IsActive); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to toggle user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user permanently. Admins cannot delete their own
// account.
// DELETE /admin/users/{userID}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}
	if caller := auth.IdentityFromContext(r.Context()); caller != nil &&
		caller.Kind == model.IdentityUser && caller.ID == user.ID {
		writeError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}
	if err := h.store.DeleteUser(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "User deleted successfully"})
}

func (h *AdminHandler) userFromPath(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return nil, false
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return nil, false
	}
	return user, true
}
