package middleware

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gantrydb/gantry/internal/auth"
	"github.com/gantrydb/gantry/internal/model"
	"github.com/gantrydb/gantry/internal/obs"
	"github.com/gantrydb/gantry/internal/ratelimit"
	"github.com/gantrydb/gantry/internal/store"
)

// StatusClientClosedRequest is recorded when the caller's connection drops
// before the request is forwarded downstream.
const StatusClientClosedRequest = 499

// Gatekeeper runs the fixed admission pipeline in front of every route:
// authenticate, authorize, rate-check, then forward with the resolved
// identity on the request context. Rejections short-circuit; the audit and
// security-header middleware outside the gate run regardless.
type Gatekeeper struct {
	tokens  *auth.TokenService
	keys    *auth.KeyAuthenticator
	limiter *ratelimit.Limiter
	store   *store.Store
}

// NewGatekeeper wires the gate's collaborators together.
func NewGatekeeper(tokens *auth.TokenService, keys *auth.KeyAuthenticator, limiter *ratelimit.Limiter, st *store.Store) *Gatekeeper {
	return &Gatekeeper{tokens: tokens, keys: keys, limiter: limiter, store: st}
}

// Guard returns the admission middleware for routes of the given endpoint
// class. Every route in the server is wrapped by exactly one Guard; the class
// table is fixed at router setup.
func (g *Gatekeeper) Guard(class model.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trail := trailFromContext(r.Context())

			// Authenticating
			identity, authType, detail, err := g.authenticate(r)
			if trail != nil {
				trail.AuthType = authType
				trail.AuthDetail = detail
			}
			if err != nil {
				obs.AuthFailures.WithLabelValues(detail).Inc()
				obs.RequestsTotal.WithLabelValues(string(class), "unauthenticated").Inc()
				// One generic message outward; the precise reason stays in
				// the audit trail to avoid credential enumeration.
				writeDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
				return
			}
			if identity == nil && class != model.ClassPublic {
				if trail != nil {
					trail.AuthDetail = "missing credentials"
				}
				obs.RequestsTotal.WithLabelValues(string(class), "unauthenticated").Inc()
				writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if trail != nil && identity != nil {
				trail.Identity = identity.Name
			}

			// Authorizing
			op := model.OperationFor(class, r.Method)
			if err := auth.Authorize(identity, class, op); err != nil {
				obs.RequestsTotal.WithLabelValues(string(class), "forbidden").Inc()
				writeDetail(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			// RateChecking
			key := rateKey(identity, r)
			res := g.limiter.Allow(key, class)
			setRateHeaders(w, res)
			if !res.Allowed {
				obs.RateLimited.WithLabelValues(string(class)).Inc()
				obs.RequestsTotal.WithLabelValues(string(class), "rate_limited").Inc()
				retry := int(math.Ceil(res.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeJSON(w, http.StatusTooManyRequests, model.RateLimitResponse{
					Detail:     "Rate limit exceeded. Please try again later.",
					RetryAfter: retry,
				})
				return
			}

			// The caller may have hung up while we were checking; start no
			// downstream work in that case, but still emit one audit record.
			if r.Context().Err() != nil {
				obs.RequestsTotal.WithLabelValues(string(class), "cancelled").Inc()
				w.WriteHeader(StatusClientClosedRequest)
				return
			}

			// Forwarded
			obs.RequestsTotal.WithLabelValues(string(class), "forwarded").Inc()
			if identity != nil {
				r = r.WithContext(auth.WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate resolves the presented credential, if any, into an identity.
// Returns (nil, "", "", nil) when no credential is present. The detail string
// is the internal failure reason destined for the audit trail.
func (g *Gatekeeper) authenticate(r *http.Request) (*model.Identity, string, string, error) {
	// API key via dedicated header.
	if rawKey := r.Header.Get("X-API-Key"); rawKey != "" {
		id, err := g.keys.Authenticate(r.Context(), rawKey)
		if err != nil {
			return nil, "api_key", err.Error(), err
		}
		return id, "api_key", "", nil
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, "", "", nil
	}
	credential := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	// Raw API keys are distinguishable from JWTs by their prefix.
	if strings.HasPrefix(credential, auth.KeyPrefix) {
		id, err := g.keys.Authenticate(r.Context(), credential)
		if err != nil {
			return nil, "api_key", err.Error(), err
		}
		return id, "api_key", "", nil
	}

	claims, err := g.tokens.Validate(credential)
	if err != nil {
		return nil, "bearer", err.Error(), err
	}
	if claims.Kind != auth.KindAccess {
		return nil, "bearer", auth.ErrWrongTokenKind.Error(), auth.ErrWrongTokenKind
	}

	// Re-resolve the identity so disabled accounts and flipped permission
	// flags take effect on the next request, not at next login.
	id, err := g.resolve(r.Context(), claims)
	if err != nil {
		return nil, "bearer", err.Error(), err
	}
	return id, "bearer", "", nil
}

func (g *Gatekeeper) resolve(ctx context.Context, claims *auth.Claims) (*model.Identity, error) {
	switch claims.IdentityKind {
	case model.IdentityUser:
		u, err := g.store.GetUserByID(ctx, claims.IdentityID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, auth.ErrInvalidToken
			}
			return nil, err
		}
		if !u.IsActive {
			return nil, auth.ErrInactiveUser
		}
		return &model.Identity{
			Kind:    model.IdentityUser,
			ID:      u.ID,
			Name:    u.Username,
			IsAdmin: u.IsAdmin,
		}, nil

	case model.IdentityAPIKey:
		k, err := g.store.GetAPIKeyByID(ctx, claims.IdentityID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, auth.ErrUnknownKey
			}
			return nil, err
		}
		if !k.IsActive {
			return nil, auth.ErrInactiveKey
		}
		if k.Expired(time.Now()) {
			return nil, auth.ErrExpiredKey
		}
		return &model.Identity{
			Kind:  model.IdentityAPIKey,
			ID:    k.ID,
			Name:  k.Name,
			Perms: k.Permissions,
		}, nil
	}
	return nil, auth.ErrInvalidToken
}

// rateKey buckets authenticated callers by identity and anonymous callers by
// client IP.
func rateKey(id *model.Identity, r *http.Request) string {
	if id != nil {
		return id.RateKey()
	}
	return "ip:" + clientIP(r)
}

// clientIP returns the remote address without the port. RealIP middleware has
// already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRateHeaders(w http.ResponseWriter, res ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
}
