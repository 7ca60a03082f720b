package main

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-relay-service/cmd"
	"github.com/tinywideclouds/go-relay-service/internal/app"
	"github.com/tinywideclouds/go-relay-service/internal/backend"
	"github.com/tinywideclouds/go-relay-service/internal/middleware"
	"github.com/tinywideclouds/go-relay-service/internal/platform/persistence"
	"github.com/tinywideclouds/go-relay-service/internal/platform/push"
	"github.com/tinywideclouds/go-relay-service/internal/presence"
	"github.com/tinywideclouds/go-relay-service/internal/realtime"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
	"github.com/tinywideclouds/go-relay-service/relayservice"
	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

func main() {
	// 1. Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "go-relay-service").Logger()

	// 2. Load config.yaml
	cfg, err := cmd.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err = cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// 3. Create dependencies
	ctx := context.Background()
	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}

	// 4. Create Authentication Middleware
	authMiddleware, err := newAuthMiddleware(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize authentication middleware")
	}

	// 5. Create the backend client and the two main services
	backendClient, err := backend.NewClient(cfg.Backend.BaseURL, cfg.BackendTimeout(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create backend client")
	}

	gateway, err := realtime.NewGateway(
		realtime.GatewayConfig{
			Port:                    cfg.WebSocketPort,
			NotificationTitle:       cfg.Notifications.Title,
			DefaultNotificationText: cfg.NotificationDefaultText(),
			NotificationsEnabled:    cfg.Notifications.Enabled,
		},
		authMiddleware,
		deps,
		backendClient,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Relay Gateway")
	}

	adminService, err := relayservice.New(
		cfg,
		gateway,
		logger.With().Str("component", "AdminService").Logger(),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Admin service")
	}

	// 6. Run the application
	app.Run(ctx, logger, adminService, gateway)
}

// newAuthMiddleware creates the JWT-validating middleware for the
// configured run mode.
func newAuthMiddleware(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (func(http.Handler) http.Handler, error) {
	authCfg := middleware.AuthConfig{JWKSURL: cfg.Auth.JWKSURL}
	if cfg.RunMode == config.RunModeLocal {
		authCfg = middleware.AuthConfig{HMACSecret: []byte(cfg.JWTSecret)}
	}
	return middleware.NewAuthMiddleware(ctx, authCfg, logger)
}

// newDependencies builds the service dependency container.
func newDependencies(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*relay.ServiceDependencies, error) {
	if cfg.RunMode == config.RunModeLocal {
		logger.Warn().Msg("Running in 'local' mode. All external dependencies will be faked.")
		return cmd.NewFakeDependencies(logger)
	}
	return newProdDependencies(ctx, cfg, logger)
}

// newProdDependencies creates real, production-ready dependencies.
func newProdDependencies(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*relay.ServiceDependencies, error) {
	store := newTokenStore(ctx, cfg, logger)

	provider, err := newPushProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := push.NewFanout(provider, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	return &relay.ServiceDependencies{
		TokenStore: store,
		Presence:   presence.NewTracker(),
		Notifier:   notifier,
	}, nil
}

// newTokenStore connects to Firestore. A failed connection degrades the
// service to a no-op store instead of aborting startup: the relay keeps
// delivering to live connections and only push registration is lost.
func newTokenStore(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) relay.TokenStore {
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to connect to firestore; degrading to no-op token store")
		return persistence.NewNoopTokenStore(logger)
	}

	store, err := persistence.NewFirestoreTokenStore(fsClient, cfg.TokenStore.Collection, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create firestore token store; degrading to no-op token store")
		return persistence.NewNoopTokenStore(logger)
	}
	return store
}

// newPushProvider creates the FCM-backed provider. Unlike the token
// store, broken messaging credentials are fatal when notifications are
// enabled: silently dropping every push is worse than failing loudly.
func newPushProvider(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (relay.PushProvider, error) {
	if !cfg.Notifications.Enabled {
		logger.Info().Msg("Push notifications disabled; using logging provider")
		return cmd.NewLoggingProvider(logger), nil
	}

	var opts []option.ClientOption
	if cfg.Notifications.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Notifications.CredentialsFile))
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	msgClient, err := fbApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return push.NewFCMProvider(msgClient, logger)
}
