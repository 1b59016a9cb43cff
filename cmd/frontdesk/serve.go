package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperengineering/frontdesk/internal/api"
	"github.com/hyperengineering/frontdesk/internal/config"
	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub every device syncs against",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// openBackend returns the configured hub backend and its closer.
func openBackend(ctx context.Context, c config.ServerConfig) (remote.Backend, func() error, error) {
	switch c.Backend {
	case config.BackendPostgres:
		pg, err := remote.OpenPostgres(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		slog.Warn("serving from memory; data is lost on restart", "component", "hub")
		return remote.NewMemoryBackend(), func() error { return nil }, nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Initialize backend
	backend, closeBackend, err := openBackend(ctx, cfg.Server)
	if err != nil {
		return err
	}
	slog.Info("backend initialized", "backend", cfg.Server.Backend)

	// 3. Initialize HTTP router
	handler := api.NewHandler(backend, cfg.Server.APIKey, Version)
	router := api.NewRouter(handler, api.NewWriteLimiter(cfg.Server.WriteRate, cfg.Server.WriteBurst))
	if cfg.Server.APIKey == "" {
		slog.Warn("no API key configured; collections are open", "component", "hub")
	}

	// 4. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 5. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 6. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 7. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if err := closeBackend(); err != nil {
		slog.Error("backend close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
