package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logger returns an HTTP middleware that writes one structured log line per
// request: method, path, status, response size, duration, request ID, and
// remote address. It runs inside Audit, so when the gate has resolved a
// caller the line also names the identity and credential kind from the Trail.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if ww.status >= 500 {
				level = slog.LevelError
			} else if ww.status >= 400 {
				level = slog.LevelWarn
			}

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000.0),
				slog.Int("bytes", ww.bytes),
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if trail := trailFromContext(r.Context()); trail != nil {
				if trail.Identity != "" {
					attrs = append(attrs, slog.String("identity", trail.Identity))
				}
				if trail.AuthType != "" {
					attrs = append(attrs, slog.String("auth_type", trail.AuthType))
				}
			}
			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}
