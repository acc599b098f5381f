package model

// AuditRecord is the immutable per-request record emitted exactly once when a
// request completes or is rejected. Field names match the JSON written to the
// audit sink.
type AuditRecord struct {
	Timestamp     float64 `json:"timestamp"` // unix seconds
	RequestID     string  `json:"request_id,omitempty"`
	Method        string  `json:"method"`
	Path          string  `json:"path"`
	QueryParams   string  `json:"query_params,omitempty"`
	ClientIP      string  `json:"client_ip"`
	UserAgent     string  `json:"user_agent"`
	StatusCode    int     `json:"status_code"`
	ProcessTime   float64 `json:"process_time"` // seconds, 4 decimal places
	AuthType      string  `json:"auth_type,omitempty"`
	AuthDetail    string  `json:"auth_detail,omitempty"` // internal failure reason, never surfaced
	Identity      string  `json:"identity,omitempty"`
	ContentLength int64   `json:"content_length"`
}
