// Package config holds the relay service's two-stage configuration: the
// raw YAML shape and the validated application config with environment
// overrides applied.
package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// RunModeLocal fakes all external dependencies.
	RunModeLocal = "local"
	// RunModeProd wires Firestore, FCM, and JWKS verification.
	RunModeProd = "prod"

	defaultNotificationText = "Eine geplante Aufgabe ist fertig"
	defaultBackendTimeout   = 5 * time.Minute
)

// AppConfig is the canonical, validated configuration object used
// throughout the application.
type AppConfig struct {
	ProjectID     string
	RunMode       string
	AdminPort     string
	WebSocketPort string
	Backend       YamlBackendConfig
	Notifications YamlNotificationsConfig
	TokenStore    YamlTokenStoreConfig
	Auth          YamlAuthConfig

	// JWTSecret enables HS256 verification for local mode. Environment
	// only; never stored in the YAML file.
	JWTSecret string
}

// ApplyEnvOverrides layers deployment-time environment variables over the
// embedded file values.
func (c *AppConfig) ApplyEnvOverrides() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("RELAY_ADMIN_PORT"); v != "" {
		c.AdminPort = v
	}
	if v := os.Getenv("RELAY_WEBSOCKET_PORT"); v != "" {
		c.WebSocketPort = v
	}
	if v := os.Getenv("RELAY_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("RELAY_JWKS_URL"); v != "" {
		c.Auth.JWKSURL = v
	}
}

// BackendTimeout returns the configured backend timeout, defaulting to
// five minutes. The backend holds streaming responses open for a long
// time, so this is deliberately generous.
func (c *AppConfig) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return defaultBackendTimeout
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// NotificationDefaultText returns the fallback push body used when a
// caller supplies none.
func (c *AppConfig) NotificationDefaultText() string {
	if c.Notifications.DefaultText == "" {
		return defaultNotificationText
	}
	return c.Notifications.DefaultText
}

// Validate checks the config is complete for its run mode.
func (c *AppConfig) Validate() error {
	if c.AdminPort == "" {
		return fmt.Errorf("admin_port is required")
	}
	if c.WebSocketPort == "" {
		return fmt.Errorf("websocket_port is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}

	switch c.RunMode {
	case RunModeLocal:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in local run mode")
		}
	case RunModeProd:
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("auth.jwks_url is required in prod run mode")
		}
		if c.ProjectID == "" {
			return fmt.Errorf("project_id is required in prod run mode")
		}
	default:
		return fmt.Errorf("unknown run_mode %q", c.RunMode)
	}
	return nil
}
