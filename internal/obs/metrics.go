// Package obs holds Gantry's Prometheus metrics and the /metrics handler.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts gatekeeper decisions by endpoint class and outcome
	// (forwarded, unauthenticated, forbidden, rate_limited, cancelled).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_requests_total",
			Help: "Gatekeeper decisions by endpoint class and outcome.",
		},
		[]string{"class", "outcome"},
	)

	// AuthFailures counts authentication rejections by internal reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_auth_failures_total",
			Help: "Authentication failures by internal reason.",
		},
		[]string{"reason"},
	)

	// RateLimited counts rate-limit rejections by endpoint class.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by endpoint class.",
		},
		[]string{"class"},
	)

	// AuditDropped counts audit records discarded because the queue was full.
	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gantry_audit_dropped_total",
		Help: "Audit records dropped due to a full queue.",
	})

	// AuditSinkErrors counts failed writes to the audit sink.
	AuditSinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gantry_audit_sink_errors_total",
		Help: "Failed writes to the audit sink.",
	})
)

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
