// Package app contains the shared, reusable logic for starting and
// stopping the service.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/realtime"
	"github.com/tinywideclouds/go-relay-service/relayservice"
)

// Run executes the main application lifecycle. It starts the admin service
// and the relay gateway, listens for OS signals, and performs a graceful
// shutdown of both.
func Run(
	ctx context.Context,
	logger zerolog.Logger,
	adminService *relayservice.Wrapper,
	gateway *realtime.Gateway,
) {
	var wg sync.WaitGroup
	wg.Add(2)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer wg.Done()
		logger.Info().Msg("Starting Admin Service...")
		err := adminService.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Admin Service failed")
			cancel() // Trigger shutdown of other services.
		}
	}()

	go func() {
		defer wg.Done()
		logger.Info().Msg("Starting Relay Gateway...")
		err := gateway.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Relay Gateway failed")
			cancel() // Trigger shutdown of other services.
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal.")
	case <-ctx.Done():
		logger.Info().Msg("Context cancelled, initiating shutdown.")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info().Msg("Shutting down Admin Service...")
	if err := adminService.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Admin Service shutdown failed.")
	}

	logger.Info().Msg("Shutting down Relay Gateway...")
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Relay Gateway shutdown failed.")
	}

	wg.Wait()
	logger.Info().Msg("All services shut down gracefully.")
}
