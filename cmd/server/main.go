package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/picklepals/picklepals/internal/api"
	"github.com/picklepals/picklepals/internal/auth"
	"github.com/picklepals/picklepals/internal/coordinator"
	"github.com/picklepals/picklepals/internal/store"
	"github.com/picklepals/picklepals/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type config struct {
	addr           string
	dbPath         string
	authEnabled    bool
	sessionTimeout time.Duration
	adminPassword  string
	logLevel       string
	logFormat      string
}

func main() {
	// Values from a local .env file never override the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config

	cmd := &cobra.Command{
		Use:           "picklepals",
		Short:         "PicklePals API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cfg.logLevel, cfg.logFormat)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if err := run(cmd.Context(), cfg, log); err != nil {
				log.WithError(err).Error("Server exited")
				return err
			}
			return nil
		},
	}

	bindFlags(cmd.Flags(), &cfg)
	return cmd
}

// bindFlags registers the server flags. Defaults come from the environment.
func bindFlags(f *pflag.FlagSet, cfg *config) {
	f.StringVar(&cfg.addr, "addr", ":"+getEnv("PORT", "8080"), "listen address (env PORT)")
	f.StringVar(&cfg.dbPath, "db", getEnv("DATABASE_PATH", "./data/pickle.db"), "SQLite database path (env DATABASE_PATH)")
	f.BoolVar(&cfg.authEnabled, "auth", getEnvBool("AUTH_ENABLED", true), "enforce authentication and permissions (env AUTH_ENABLED)")
	f.DurationVar(&cfg.sessionTimeout, "session-timeout", getEnvDuration("SESSION_TIMEOUT", auth.DefaultSessionTimeout), "access token lifetime (env SESSION_TIMEOUT)")
	f.StringVar(&cfg.adminPassword, "admin-password", getEnv("ADMIN_PASSWORD", "root"), "password seeded for the admin account (env ADMIN_PASSWORD)")
	f.StringVar(&cfg.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (env LOG_LEVEL)")
	f.StringVar(&cfg.logFormat, "log-format", getEnv("LOG_FORMAT", "text"), "log format: text or json (env LOG_FORMAT)")
}

func newLogger(level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return log, nil
}

func run(parent context.Context, cfg config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := store.NewSQLiteStore(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	hasher := auth.NewHasher()
	if err := auth.SeedAdmin(ctx, db, hasher, cfg.adminPassword); err != nil {
		return err
	}

	sessions := auth.NewSessionRegistry(auth.WithTimeout(cfg.sessionTimeout))

	coordCtx, cancelCoord := context.WithCancel(context.Background())
	coord := coordinator.New(log.WithField("component", "coordinator"))
	coordDone := make(chan struct{})
	go func() {
		defer close(coordDone)
		coord.Run(coordCtx)
	}()
	defer func() {
		cancelCoord()
		<-coordDone
	}()

	dispatcher := api.NewDispatcher(db, sessions, hasher, coord, log.WithField("component", "api"), api.Config{
		AuthEnabled: cfg.authEnabled,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	server := web.NewServer(dispatcher, coord, sessions, reg, log.WithField("component", "web"), web.Config{})

	httpServer := &http.Server{
		Addr:              cfg.addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()

	log.WithFields(logrus.Fields{
		"addr":         cfg.addr,
		"db":           cfg.dbPath,
		"auth_enabled": cfg.authEnabled,
	}).Info("Server running")
	if !cfg.authEnabled {
		log.Warn("Authentication is disabled, every request is trusted")
	}

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}

	log.Info("Server stopped")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
