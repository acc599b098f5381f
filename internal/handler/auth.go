package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gantrydb/gantry/internal/auth"
	"github.com/gantrydb/gantry/internal/model"
	"github.com/gantrydb/gantry/internal/store"
)

// AuthHandler exposes login and token lifecycle endpoints.
type AuthHandler struct {
	store  *store.Store
	tokens *auth.TokenService
	keys   *auth.KeyAuthenticator
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(st *store.Store, tokens *auth.TokenService, keys *auth.KeyAuthenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: st, tokens: tokens, keys: keys, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user by username and password and returns a token
// pair.
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same message as a wrong password; usernames are not probeable.
			writeError(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "Authentication error")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	// The stamp is advisory; a failed write must not block the login.
	if err := h.store.UpdateUserLastLogin(r.Context(), user.ID); err != nil {
		h.logger.Warn("failed to stamp last login", "user_id", user.ID, "error", err)
	}

	pair, err := h.tokens.Issue(&model.Identity{
		Kind:    model.IdentityUser,
		ID:      user.ID,
		Name:    user.Username,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type apiKeyLoginRequest struct {
	APIKey string `json:"api_key"`
}

// APIKeyLogin exchanges a raw API key for a token pair, so short-lived
// bearer tokens can stand in for the long-lived key.
// POST /auth/api-key-login
func (h *AuthHandler) APIKeyLogin(w http.ResponseWriter, r *http.Request) {
	var req apiKeyLoginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "API key is required")
		return
	}

	identity, err := h.keys.Authenticate(r.Context(), req.APIKey)
	if err != nil {
		// Unknown, inactive, and expired keys are indistinguishable here.
		writeError(w, http.StatusUnauthorized, "Invalid API key")
		return
	}

	pair, err := h.tokens.Issue(identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Refresh mints a new access token from a valid refresh token. Presenting an
// access token here is rejected; refresh tokens never extend their own
// lifetime.
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	access, claims, err := h.tokens.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	// The backing identity must still exist and be active.
	if err := h.verifyIdentity(r, claims); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(h.tokens.AccessTTL().Seconds()),
	})
}

func (h *AuthHandler) verifyIdentity(r *http.Request, claims *auth.Claims) error {
	switch claims.IdentityKind {
	case model.IdentityUser:
		u, err := h.store.GetUserByID(r.Context(), claims.IdentityID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return auth.ErrInactiveUser
		}
	case model.IdentityAPIKey:
		k, err := h.store.GetAPIKeyByID(r.Context(), claims.IdentityID)
		if err != nil {
			return err
		}
		if !k.IsActive {
			return auth.ErrInactiveKey
		}
	default:
		return auth.ErrInvalidToken
	}
	return nil
}

// Me returns the authenticated caller's own record.
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	switch identity.Kind {
	case model.IdentityUser:
		user, err := h.store.GetUserByID(r.Context(), identity.ID)
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"type":          "user",
			"username":      user.Username,
			"email":         user.Email,
			"is_admin":      user.IsAdmin,
			"is_active":     user.IsActive,
			"created_at":    user.CreatedAt,
			"last_login_at": user.LastLoginAt,
		})
	case model.IdentityAPIKey:
		key, err := h.store.GetAPIKeyByID(r.Context(), identity.ID)
		if err != nil {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"type":        "api_key",
			"name":        key.Name,
			"description": key.Description,
			"is_active":   key.IsActive,
			"created_at":  key.CreatedAt,
			"last_used":   key.LastUsed,
			"expires_at":  key.ExpiresAt,
			"permissions": key.Permissions,
		})
	}
}

// Logout acknowledges a logout. Tokens are stateless, so the server has
// nothing to revoke; clients discard their pair.
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if auth.IdentityFromContext(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}
