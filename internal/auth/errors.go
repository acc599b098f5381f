package auth

import "errors"

// Sentinel errors for authentication and authorization. The HTTP layer maps
// all authentication failures to one generic unauthorized message; these
// values exist so the audit trail can record the precise internal reason.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token service
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrWrongTokenKind = errors.New("wrong token kind")

	// API key authenticator
	ErrMalformedKey = errors.New("malformed api key")
	ErrUnknownKey   = errors.New("unknown api key")
	ErrInactiveKey  = errors.New("inactive key")
	ErrExpiredKey   = errors.New("api key expired")

	// Identity state
	ErrInactiveUser = errors.New("user account disabled")

	// Permission evaluator
	ErrInsufficientPermission = errors.New("insufficient permission")
)
