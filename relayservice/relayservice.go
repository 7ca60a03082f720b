// Package relayservice wires the admin HTTP surface of the relay service.
package relayservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/api"
	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

// Wrapper owns the admin HTTP server and its handlers.
type Wrapper struct {
	server *http.Server
	logger zerolog.Logger
}

// New creates the admin service. The gateway provides the presence-aware
// delivery entry points the admin endpoints drive.
func New(cfg *config.AppConfig, gateway api.Gateway, logger zerolog.Logger) (*Wrapper, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway cannot be nil")
	}

	mux := http.NewServeMux()
	api.NewAPI(gateway, logger).Register(mux)

	return &Wrapper{
		server: &http.Server{
			Addr:    ":" + cfg.AdminPort,
			Handler: mux,
		},
		logger: logger.With().Str("component", "AdminService").Logger(),
	}, nil
}

// Start runs the admin HTTP server until shutdown.
func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info().Str("addr", w.server.Addr).Msg("Admin server starting...")
	if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the admin HTTP server.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info().Msg("Shutting down admin server...")
	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Admin server shutdown failed.")
		return err
	}
	w.logger.Info().Msg("Admin server shut down.")
	return nil
}
