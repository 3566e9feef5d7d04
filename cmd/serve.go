package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeto-space/exoclassify/internal/config"
	"github.com/zeto-space/exoclassify/internal/handlers"
	"github.com/zeto-space/exoclassify/internal/storage"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the exoclassify JSON API on the specified port.

Clients can run guided acquisition sessions (/api/sessions), upload bulk CSV or
Parquet files (/api/upload), export result rows (/api/export) and browse the
analysis history (/api/history).`,
		Example: `  # Start server on default port 8888
  exoclassify serve

  # Start server on custom port
  exoclassify serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, func(cfg *config.Config) {
				if cmd.Flags().Changed("port") {
					cfg.Server.Port = port
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			var reader handlers.HistoryReader
			if a.history != nil {
				reader = a.history
			}
			handler := handlers.New(a.service, reader)

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + a.cfg.Server.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if ttl := a.cfg.SessionTTL(); ttl > 0 {
				go pruneSessions(ctx, handler.Sessions(), ttl)
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Exoclassify API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}

// pruneSessions drops acquisition sessions idle for longer than ttl.
func pruneSessions(ctx context.Context, store *storage.SessionStore, ttl time.Duration) {
	ticker := time.NewTicker(min(ttl, time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.Prune(now.Add(-ttl)); n > 0 {
				slog.Info("Pruned idle sessions", "count", n, "remaining", store.Len())
			}
		}
	}
}
