// ABOUTME: CLI command for running the HTTP API.
// ABOUTME: Serves until interrupted, reloading the log level when the config file changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/biomarkers/internal/api"
	"github.com/harperreed/biomarkers/internal/config"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

ENDPOINTS:

  GET    /api/biomarkers                 All entries, oldest first
  POST   /api/biomarkers                 Create an entry (201, 400 on duplicate day)
  GET    /api/biomarkers/{id}            One entry
  DELETE /api/biomarkers/{id}            Delete an entry (204)
  GET    /api/biomarkers/date/{date}     Entry for a day
  GET    /api/biomarkers/series?names=   Chart series (default sleep,mood,energy)
  GET    /api/biomarker-names            Names and labels
  GET    /healthz                        Liveness
  GET    /metrics                        Prometheus text metrics

Editing log_level in the config file while the server runs takes effect
without a restart.

EXAMPLES:

  biomarkers serve
  biomarkers serve --addr 127.0.0.1:8080 --log-format text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.GetAddr()
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handler := api.New(repo, api.WithLocation(loc), api.WithLogger(appLog.Logger))
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			err := config.Watch(ctx, config.GetConfigPath(), func(c *config.Config) {
				if flagLogLevel != "" {
					return
				}
				level, err := c.GetLogLevel()
				if err != nil {
					return
				}
				appLog.SetLevel(level)
			})
			if err != nil {
				appLog.Warn("config watch stopped", "err", err)
			}
		}()

		errCh := make(chan error, 1)
		go func() {
			appLog.Info("http server listening", "addr", addr, "backend", cfg.GetBackend())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		appLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default "+config.DefaultAddr+")")
	rootCmd.AddCommand(serveCmd)
}
