// Local development entrypoint. All external dependencies are faked:
// tokens live in memory, push sends are logged, and JWTs are verified
// with the shared secret from JWT_SECRET.
package main

import (
	"context"
	_ "embed"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-relay-service/cmd"
	"github.com/tinywideclouds/go-relay-service/internal/app"
	"github.com/tinywideclouds/go-relay-service/internal/backend"
	"github.com/tinywideclouds/go-relay-service/internal/middleware"
	"github.com/tinywideclouds/go-relay-service/internal/realtime"
	"github.com/tinywideclouds/go-relay-service/relayservice"
	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

//go:embed config.yaml
var configFile []byte

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "go-relay-service").Logger()

	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to unmarshal embedded yaml config")
	}
	cfg, err := config.NewConfigFromYaml(&yamlCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build configuration")
	}
	cfg.ApplyEnvOverrides()
	if err = cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	logger.Warn().Msg("Running in 'local' mode. All external dependencies will be faked.")
	deps, err := cmd.NewFakeDependencies(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize fake dependencies")
	}

	authMiddleware, err := middleware.NewAuthMiddleware(
		ctx,
		middleware.AuthConfig{HMACSecret: []byte(cfg.JWTSecret)},
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize authentication middleware")
	}

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

	app.Run(ctx, logger, adminService, gateway)
}
