package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scanning API server",
		Long: `Starts the ShelfSense HTTP API on the configured port.

The web client drives scan sessions through the API: it reports decoded
barcode frames and label photos, and reads back the current state, the
guide text and the verdict card once the analysis is done.`,
		Example: `  # Start server on default port 8888
  shelfsense serve

  # Start server on custom port and serve the built web client
  shelfsense serve --port 3000 --static ./web/dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			svc, err := newServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			handler := handlers.New(handlers.Options{
				Lookup:        svc.lookup,
				Analyzer:      svc.analysis,
				Intents:       svc.intents,
				ConfirmFrames: cfg.Scan.ConfirmFrames,
				SettleDelay:   cfg.Scan.SettleDelay,
				StaticDir:     staticDir,
			})

			addr := fmt.Sprintf(":%d", cfg.Port)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("ShelfSense API available", "addr", addr, "url", "http://localhost"+addr, "candidates", len(svc.candidateLabels()))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				handler.Close(shutdownCtx)
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

	cmd.Flags().IntVarP(&port, "port", "p", 8888, "Port to listen on (overrides server.port)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of a built web client to serve at /")

	return cmd
}
