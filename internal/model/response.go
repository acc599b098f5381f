package model

// ErrorResponse is the standard envelope for error responses. Authentication
// and authorization failures always carry a generic detail string; the precise
// internal reason lives only in the audit trail.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// RateLimitResponse extends the error envelope with the retry hint required
// on every rate-limit rejection.
type RateLimitResponse struct {
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// MessageResponse is the envelope for simple success acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}
