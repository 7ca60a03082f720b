package config

// --- YAML-Specific Structs ---

type YamlBackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type YamlNotificationsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Title           string `yaml:"title"`
	DefaultText     string `yaml:"default_text"`
	CredentialsFile string `yaml:"credentials_file"`
}

type YamlTokenStoreConfig struct {
	Collection string `yaml:"collection"`
}

type YamlAuthConfig struct {
	JWKSURL string `yaml:"jwks_url"`
}

// YamlConfig defines the structure for unmarshaling the embedded
// config.yaml file.
type YamlConfig struct {
	ProjectID     string                  `yaml:"project_id"`
	RunMode       string                  `yaml:"run_mode"`
	AdminPort     string                  `yaml:"admin_port"`
	WebSocketPort string                  `yaml:"websocket_port"`
	Backend       YamlBackendConfig       `yaml:"backend"`
	Notifications YamlNotificationsConfig `yaml:"notifications"`
	TokenStore    YamlTokenStoreConfig    `yaml:"token_store"`
	Auth          YamlAuthConfig          `yaml:"auth"`
}

// NewConfigFromYaml converts the raw unmarshaled data into a clean, base
// AppConfig struct, without environment overrides applied yet.
func NewConfigFromYaml(yamlCfg *YamlConfig) (*AppConfig, error) {
	appCfg := &AppConfig{
		ProjectID:     yamlCfg.ProjectID,
		RunMode:       yamlCfg.RunMode,
		AdminPort:     yamlCfg.AdminPort,
		WebSocketPort: yamlCfg.WebSocketPort,
		Backend:       yamlCfg.Backend,
		Notifications: yamlCfg.Notifications,
		TokenStore:    yamlCfg.TokenStore,
		Auth:          yamlCfg.Auth,
	}
	return appCfg, nil
}
