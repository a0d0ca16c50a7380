// Package main is the entry point for the Gatehouse server. It loads
// configuration, picks the credential store backend, wires the auth module
// together, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/app"
	"github.com/gatehouselabs/gatehouse/internal/auth"
	"github.com/gatehouselabs/gatehouse/internal/config"
	"github.com/gatehouselabs/gatehouse/internal/database"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting Gatehouse",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.Store.Driver),
	)

	// --- Credential Store ---
	// The reference store is memory-resident and non-durable; MariaDB is
	// the durable alternative, selected by STORE_DRIVER=mysql.
	var store auth.UserStore
	switch cfg.Store.Driver {
	case "mysql":
		db, err := database.NewMariaDB(cfg.Database)
		if err != nil {
			slog.Error("failed to connect to MariaDB", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			slog.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}

		store = auth.NewMariaDBStore(db)
		slog.Info("connected to MariaDB")
	default:
		store = auth.NewMemoryStore()
		slog.Warn("using in-memory credential store; accounts do not survive restarts")
	}

	// --- Token Denylist (optional) ---
	// Without Redis, sessions stay fully stateless and delete-account
	// tokens simply ride out their expiry window.
	var denylist *auth.Denylist
	if cfg.Redis.URL != "" {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()

		denylist = auth.NewDenylist(rdb)
		slog.Info("connected to Redis, token revocation enabled")
	}

	// --- Wire the Auth Module ---
	tokens := auth.NewTokenService(cfg.Token.Secret, cfg.Token.TTL)
	service := auth.NewService(store, tokens, denylist)
	handler := auth.NewHandler(service, auth.CookieConfig{
		Secure: !cfg.IsDevelopment(),
		TTL:    cfg.Token.TTL,
	})

	// --- Create Application ---
	application := app.New(cfg)
	application.RegisterRoutes(handler, service)

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	slog.SetDefault(slog.New(handler))
}
