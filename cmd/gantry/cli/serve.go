package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gantrydb/gantry/internal/audit"
	"github.com/gantrydb/gantry/internal/auth"
	"github.com/gantrydb/gantry/internal/model"
	"github.com/gantrydb/gantry/internal/ratelimit"
	"github.com/gantrydb/gantry/internal/server"
	"github.com/gantrydb/gantry/internal/store"
)

const banner = `
  ___   _   _  _ _____ _____   __
 / __| /_\ | \| |_   _| _ \ \ / /
| (_ |/ _ \| .\ | | | |   /\ V /
 \___/_/ \_\_|\_| |_| |_|_\ |_|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Gantry registry server",
		Long:  "Start the HTTP server that exposes the guarded tool registry API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8000, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (in-memory store, verbose logging, CORS *)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// 1. Open the backing store. --dev runs everything in memory.
	storeOpts := store.Options{
		Driver: viper.GetString("store.driver"),
		DSN:    viper.GetString("store.dsn"),
	}
	if !dev {
		storeOpts.DataDir = resolveDataDir()
	}
	st, err := store.Open(storeOpts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store opened", "driver", storeOpts.Driver, "data_dir", storeOpts.DataDir)

	// 2. Token service. The secret must come from config or environment in
	// production; a dev fallback keeps --dev one command.
	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		if !dev {
			return fmt.Errorf("auth.jwt_secret is not set (use gantry.yaml or GANTRY_AUTH_JWT_SECRET)")
		}
		jwtSecret = "gantry-dev-secret-change-me"
		logger.Warn("using development JWT secret")
	}
	tokens := auth.NewTokenService(jwtSecret,
		viper.GetDuration("auth.access_ttl"),
		viper.GetDuration("auth.refresh_ttl"))
	keys := auth.NewKeyAuthenticator(st)

	// 3. Rate limiter with its background sweeper.
	limiter := ratelimit.New(ratelimit.Config{
		Window: viper.GetDuration("rate_limit.window"),
		Limits: rateLimits(),
	})
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	limiter.StartSweeper(sweepCtx)

	// 4. Audit trail. Defaults to audit.log in the data directory; --dev
	// streams to stdout instead.
	var auditLog *audit.Logger
	if dev {
		auditLog = audit.New(os.Stdout, logger)
	} else {
		auditPath := viper.GetString("audit.path")
		if auditPath == "" {
			auditPath = filepath.Join(resolveDataDir(), "audit.log")
		}
		auditLog, err = audit.Open(auditPath, logger)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		logger.Info("audit trail opened", "path", auditPath)
	}
	defer auditLog.Close()

	// 5. First-run check: without an admin the /admin API is unreachable.
	users, err := st.ListUsers(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin users", "error", err)
	}
	hasAdmin := false
	for _, u := range users {
		if u.IsAdmin && u.IsActive {
			hasAdmin = true
			break
		}
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: gantry admin create")
	}

	// 6. Build and start the HTTP server.
	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	if origins := viper.GetStringSlice("server.cors.allowed_origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if dev {
		srvCfg.CORSOrigins = []string{"*"}
	}

	srv := server.New(srvCfg, st, tokens, keys, limiter, auditLog, logger)

	fmt.Printf("→ Gantry %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ Health:  http://%s:%d/health\n", host, port)
	fmt.Printf("→ Metrics: http://%s:%d/metrics\n", host, port)
	fmt.Println()

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	return srv.ListenAndServe()
}

// rateLimits merges configured per-class ceilings over the built-in defaults.
// Keys live under rate_limit.limits.<class> in gantry.yaml.
func rateLimits() map[model.EndpointClass]int {
	limits := make(map[model.EndpointClass]int, len(ratelimit.DefaultLimits))
	for class, def := range ratelimit.DefaultLimits {
		limits[class] = def
		if key := "rate_limit.limits." + string(class); viper.IsSet(key) {
			if n := viper.GetInt(key); n > 0 {
				limits[class] = n
			}
		}
	}
	return limits
}
