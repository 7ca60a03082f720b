// Package cmd provides shared wiring for the service binaries: the embedded
// configuration loader and the in-memory fakes used in local run mode.
package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/platform/persistence"
	"github.com/tinywideclouds/go-relay-service/internal/platform/push"
	"github.com/tinywideclouds/go-relay-service/internal/presence"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// LoggingProvider is a push provider that logs each send instead of
// talking to FCM. It always reports success, so local runs never prune
// tokens from the store.
type LoggingProvider struct {
	logger zerolog.Logger
}

// NewLoggingProvider returns a provider suitable for local development.
func NewLoggingProvider(logger zerolog.Logger) *LoggingProvider {
	return &LoggingProvider{
		logger: logger.With().Str("component", "LoggingProvider").Logger(),
	}
}

func (p *LoggingProvider) Send(ctx context.Context, token, title, body string, dryRun bool) relay.SendOutcome {
	p.logger.Info().
		Str("token", token).
		Str("title", title).
		Str("body", body).
		Bool("dry_run", dryRun).
		Msg("Fake push notification sent.")
	return relay.SendOutcome{
		Token:      token,
		Success:    true,
		StatusCode: relay.ReasonOK,
		MessageID:  "fake-" + uuid.NewString(),
	}
}

// NewFakeDependencies assembles a fully in-memory dependency set: a
// memory-backed token store, an in-process presence tracker, and a fanout
// driven by the logging provider.
func NewFakeDependencies(logger zerolog.Logger) (*relay.ServiceDependencies, error) {
	store := persistence.NewMemoryTokenStore()
	notifier, err := push.NewFanout(NewLoggingProvider(logger), store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fake notifier: %w", err)
	}
	return &relay.ServiceDependencies{
		TokenStore: store,
		Presence:   presence.NewTracker(),
		Notifier:   notifier,
	}, nil
}
