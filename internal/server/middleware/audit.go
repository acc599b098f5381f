package middleware

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gantrydb/gantry/internal/audit"
	"github.com/gantrydb/gantry/internal/model"
)

// Trail is the mutable per-request carrier inner middleware writes into so
// the audit record can name the authentication kind and internal failure
// reason. It is created by Audit before the gate runs.
type Trail struct {
	AuthType   string
	AuthDetail string
	Identity   string
}

type trailKey struct{}

func trailFromContext(ctx context.Context) *Trail {
	t, _ := ctx.Value(trailKey{}).(*Trail)
	return t
}

// Audit emits exactly one audit record per request, successful or rejected.
// It wraps the gate and the handlers, so early rejections are captured the
// same way as completed requests. The record is written from a defer: a
// panicking handler still leaves a record (status 500) before the recoverer
// takes over.
func Audit(logger *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			trail := &Trail{}
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			r = r.WithContext(context.WithValue(r.Context(), trailKey{}, trail))

			panicked := true
			defer func() {
				status := ww.status
				if panicked && !ww.wroteHeader {
					// Handler unwound before writing; the recoverer above
					// us will answer with 500.
					status = http.StatusInternalServerError
				}
				elapsed := time.Since(start).Seconds()
				logger.Record(model.AuditRecord{
					Timestamp:     float64(start.UnixMicro()) / 1e6,
					RequestID:     GetRequestID(r.Context()),
					Method:        r.Method,
					Path:          r.URL.Path,
					QueryParams:   r.URL.RawQuery,
					ClientIP:      clientIP(r),
					UserAgent:     r.UserAgent(),
					StatusCode:    status,
					ProcessTime:   math.Round(elapsed*1e4) / 1e4,
					AuthType:      trail.AuthType,
					AuthDetail:    trail.AuthDetail,
					Identity:      trail.Identity,
					ContentLength: r.ContentLength,
				})
			}()

			next.ServeHTTP(ww, r)
			panicked = false
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written. Shared by the audit and request-log middleware.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter, required for http.Flusher
// and other interface assertions through middleware chains.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
