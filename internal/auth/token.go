package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gantrydb/gantry/internal/model"
)

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Default token lifetimes. Both are configurable at startup.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims are the JWT claims Gantry issues: the identity they bind plus the
// token kind. Signature uses HS256 with the server-wide secret.
type Claims struct {
	Kind         TokenKind          `json:"kind"`
	IdentityKind model.IdentityKind `json:"identity_kind"`
	IdentityID   int64              `json:"identity_id"`
	Name         string             `json:"name"`
	IsAdmin      bool               `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenPair is the result of issuing credentials: a short-lived access token
// and a longer-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // access token lifetime, seconds
}

// TokenService issues and validates signed tokens. The secret is loaded once
// at startup and immutable afterwards; all methods are safe for concurrent
// use.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService creates a token service signing with secret. Zero TTLs fall
// back to the defaults (30m access, 7d refresh).
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Issue generates a signed access/refresh token pair bound to the identity.
func (s *TokenService) Issue(id *model.Identity) (*TokenPair, error) {
	access, err := s.sign(id, KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(id, KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

// Validate verifies the token signature and expiry and returns the decoded
// claims. Tampering yields ErrInvalidToken; a correct signature past its
// expiry yields ErrExpiredToken.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh validates a refresh token and mints a new access token for the same
// identity. Presenting any other token kind yields ErrWrongTokenKind. No new
// refresh token is issued; clients re-authenticate when theirs expires, so a
// refresh chain can never outlive the original grant.
func (s *TokenService) Refresh(refreshToken string) (string, *Claims, error) {
	claims, err := s.Validate(refreshToken)
	if err != nil {
		return "", nil, err
	}
	if claims.Kind != KindRefresh {
		return "", nil, ErrWrongTokenKind
	}

	id := &model.Identity{
		Kind:    claims.IdentityKind,
		ID:      claims.IdentityID,
		Name:    claims.Name,
		IsAdmin: claims.IsAdmin,
	}
	access, err := s.sign(id, KindAccess, s.accessTTL)
	if err != nil {
		return "", nil, err
	}
	return access, claims, nil
}

func (s *TokenService) sign(id *model.Identity, kind TokenKind, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Kind:         kind,
		IdentityKind: id.Kind,
		IdentityID:   id.ID,
		Name:         id.Name,
		IsAdmin:      id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "gantry",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
