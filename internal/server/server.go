package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gantrydb/gantry/internal/audit"
	"github.com/gantrydb/gantry/internal/auth"
	"github.com/gantrydb/gantry/internal/handler"
	"github.com/gantrydb/gantry/internal/model"
	"github.com/gantrydb/gantry/internal/obs"
	"github.com/gantrydb/gantry/internal/ratelimit"
	"github.com/gantrydb/gantry/internal/server/middleware"
	"github.com/gantrydb/gantry/internal/store"
)

// Version is the service version reported by the info endpoint.
const Version = "0.1.0"

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// LoginRatePerMinute is the per-IP ceiling on the credential-exchange
	// endpoints, independent of the per-identity class limits.
	LoginRatePerMinute int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8000,
		ShutdownTimeout:    30 * time.Second,
		CORSOrigins:        []string{"http://localhost:3000"},
		LoginRatePerMinute: 10,
	}
}

// Server is the top-level HTTP server. It owns the Chi router and wires the
// gatekeeper pipeline in front of every route group.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	tokens     *auth.TokenService
	keys       *auth.KeyAuthenticator
	gate       *middleware.Gatekeeper
	auditLog   *audit.Logger
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready to listen.
func New(cfg Config, st *store.Store, tokens *auth.TokenService, keys *auth.KeyAuthenticator,
	limiter *ratelimit.Limiter, auditLog *audit.Logger, logger *slog.Logger) *Server {

	s := &Server{
		cfg:      cfg,
		store:    st,
		tokens:   tokens,
		keys:     keys,
		gate:     middleware.NewGatekeeper(tokens, keys, limiter, st),
		auditLog: auditLog,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	// Security headers and audit are unconditional finalizers: they apply to
	// every response, including gate rejections and recovered panics. The
	// recoverer sits outside Audit, and Audit outside Logger, so a panicking
	// handler is still audited and the request log can read the Trail.
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Audit(s.auditLog))
	r.Use(middleware.Logger(s.logger))

	authHandler := handler.NewAuthHandler(s.store, s.tokens, s.keys, s.logger)
	adminHandler := handler.NewAdminHandler(s.store)
	toolHandler := handler.NewToolHandler(s.store)

	// --- Public endpoints ---
	r.Group(func(r chi.Router) {
		r.Use(s.gate.Guard(model.ClassPublic))
		r.Get("/", s.handleInfo)
		r.Get("/health", s.handleHealth)
		r.Method("GET", "/metrics", obs.Handler())
	})

	// --- Authentication endpoints ---
	r.Route("/auth", func(r chi.Router) {
		// Credential exchanges carry no identity yet; add a per-IP ceiling
		// on top of the gate's public-class limit.
		r.Group(func(r chi.Router) {
			r.Use(middleware.LoginRateLimit(s.cfg.LoginRatePerMinute))
			r.Use(s.gate.Guard(model.ClassPublic))
			r.Post("/login", authHandler.Login)
			r.Post("/api-key-login", authHandler.APIKeyLogin)
			r.Post("/refresh", authHandler.Refresh)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.gate.Guard(model.ClassPublic))
			r.Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- Tool catalog ---
	r.Route("/tools", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.gate.Guard(model.ClassRead))
			r.Get("/", toolHandler.ListTools)
			r.Get("/search", toolHandler.SearchTools)
			r.Get("/{toolName}", toolHandler.GetTool)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.gate.Guard(model.ClassWrite))
			r.Post("/", toolHandler.CreateTool)
			r.Put("/{toolName}", toolHandler.UpdateTool)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.gate.Guard(model.ClassDelete))
			r.Delete("/{toolName}", toolHandler.DeleteTool)
		})
	})

	// --- Identity management ---
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.gate.Guard(model.ClassAdmin))

		r.Post("/users", adminHandler.CreateUser)
		r.Get("/users", adminHandler.ListUsers)
		r.Get("/users/{userID}", adminHandler.GetUser)
		r.Post("/users/{userID}/toggle", adminHandler.ToggleUser)
		r.Delete("/users/{userID}", adminHandler.DeleteUser)

		r.Post("/api-keys", adminHandler.CreateAPIKey)
		r.Get("/api-keys", adminHandler.ListAPIKeys)
		r.Get("/api-keys/{keyID}", adminHandler.GetAPIKey)
		r.Put("/api-keys/{keyID}", adminHandler.UpdateAPIKey)
		r.Post("/api-keys/{keyID}/toggle", adminHandler.ToggleAPIKey)
		r.Delete("/api-keys/{keyID}", adminHandler.DeleteAPIKey)
	})

	s.router = r
}

// handleInfo reports basic service information.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"message":"Gantry tool registry","version":%q}`+"\n", Version)
}

// handleHealth is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"gantry"}`))
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received, then drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
