package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hearth Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	// SecretKey is the application-level secret shared with external services.
	SecretKey string `yaml:"secret_key"`

	// JWTSecretKey signs and verifies API bearer tokens. Token minting lives
	// in the external account service; this core only verifies.
	JWTSecretKey string `yaml:"jwt_secret_key"`

	// AdminUser is an opaque owner identifier, informational only.
	AdminUser string `yaml:"admin_user"`

	App       AppConfig       `yaml:"app"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Engine    EngineConfig    `yaml:"engine"`
	Database  DatabaseConfig  `yaml:"database"`
	Audit     AuditConfig     `yaml:"audit"`
	API       APIConfig       `yaml:"api"`
	CORS      CORSConfig      `yaml:"cors"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AppConfig contains HTTP listener settings.
type AppConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	BrokerHost string `yaml:"broker_host"`
	BrokerPort int    `yaml:"broker_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`

	// TopicBase prefixes the client's own presence topics
	// ({topic_base}/status/{client_id}). Device and rule topics are
	// absolute and unaffected.
	TopicBase string `yaml:"topic_base"`

	// ClientID identifies this client to the broker. Generated when empty.
	ClientID string `yaml:"client_id"`
}

// EngineConfig contains automation engine settings.
type EngineConfig struct {
	// DevicesFile is the path to the JSON device definitions file.
	DevicesFile string `yaml:"devices_file"`

	// RulesFile is the path to the JSON rules file.
	RulesFile string `yaml:"rules_file"`

	// CommandHistorySize bounds the outbound command history ring.
	CommandHistorySize int `yaml:"command_history_size"`

	// ReconnectDelay is the wait between broker reconnect attempts (seconds).
	ReconnectDelay int `yaml:"reconnect_delay"`

	// MaxReconnectAttempts bounds reconnect attempts per disconnect cycle.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
}

// DatabaseConfig contains SQLite settings for the audit store.
type DatabaseConfig struct {
	URI         string `yaml:"uri"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// AuditConfig controls the control-plane audit trail.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// APIConfig contains HTTP API behaviour settings.
type APIConfig struct {
	// RequireAuth enforces bearer-token validation on /api/engine routes.
	RequireAuth bool             `yaml:"require_auth"`
	Timeouts    APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket event-stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEARTH_SECTION_KEY
// For example: HEARTH_MQTT_BROKER_HOST, HEARTH_DATABASE_URI
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Host: "0.0.0.0",
			Port: 5100,
		},
		MQTT: MQTTConfig{
			BrokerHost: "localhost",
			BrokerPort: 1883,
			TopicBase:  "smart_home",
		},
		Engine: EngineConfig{
			DevicesFile:          "data/devices.json",
			RulesFile:            "data/rules.json",
			CommandHistorySize:   50,
			ReconnectDelay:       5,
			MaxReconnectAttempts: 5,
		},
		Database: DatabaseConfig{
			URI:         "data/hearth.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 1024,
			PingInterval:   30,
			PongTimeout:    60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEARTH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Secrets (always prefer the environment in production)
	if v := os.Getenv("HEARTH_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("HEARTH_JWT_SECRET_KEY"); v != "" {
		cfg.JWTSecretKey = v
	}

	// MQTT
	if v := os.Getenv("HEARTH_MQTT_BROKER_HOST"); v != "" {
		cfg.MQTT.BrokerHost = v
	}
	if v := os.Getenv("HEARTH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("HEARTH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("HEARTH_MQTT_TOPIC_BASE"); v != "" {
		cfg.MQTT.TopicBase = v
	}

	// App
	if v := os.Getenv("HEARTH_APP_HOST"); v != "" {
		cfg.App.Host = v
	}

	// Engine files
	if v := os.Getenv("HEARTH_ENGINE_DEVICES_FILE"); v != "" {
		cfg.Engine.DevicesFile = v
	}
	if v := os.Getenv("HEARTH_ENGINE_RULES_FILE"); v != "" {
		cfg.Engine.RulesFile = v
	}

	// Database
	if v := os.Getenv("HEARTH_DATABASE_URI"); v != "" {
		cfg.Database.URI = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Secrets are mandatory. Automation commands drive physical devices;
	// an empty or short signing key would let anyone forge tokens.
	if c.SecretKey == "" {
		errs = append(errs, "secret_key is required (set HEARTH_SECRET_KEY environment variable)")
	}
	const minJWTSecretLength = 32
	if c.JWTSecretKey == "" {
		errs = append(errs, "jwt_secret_key is required (set HEARTH_JWT_SECRET_KEY environment variable)")
	} else if len(c.JWTSecretKey) < minJWTSecretLength {
		errs = append(errs, "jwt_secret_key must be at least 32 characters")
	}

	// MQTT validation
	if c.MQTT.BrokerHost == "" {
		errs = append(errs, "mqtt.broker_host is required")
	}
	if c.MQTT.BrokerPort < 1 || c.MQTT.BrokerPort > 65535 {
		errs = append(errs, "mqtt.broker_port must be between 1 and 65535")
	}

	// App validation
	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, "app.port must be between 1 and 65535")
	}

	// Engine validation
	if c.Engine.DevicesFile == "" {
		errs = append(errs, "engine.devices_file is required")
	}
	if c.Engine.RulesFile == "" {
		errs = append(errs, "engine.rules_file is required")
	}
	if c.Engine.CommandHistorySize < 1 {
		errs = append(errs, "engine.command_history_size must be positive")
	}
	if c.Engine.ReconnectDelay < 1 {
		errs = append(errs, "engine.reconnect_delay must be positive")
	}
	if c.Engine.MaxReconnectAttempts < 1 {
		errs = append(errs, "engine.max_reconnect_attempts must be positive")
	}

	// Database is only needed when the audit trail is on
	if c.Audit.Enabled && c.Database.URI == "" {
		errs = append(errs, "database.uri is required when audit.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ReconnectDelayDuration returns the broker reconnect delay as a Duration.
func (e EngineConfig) ReconnectDelayDuration() time.Duration {
	return time.Duration(e.ReconnectDelay) * time.Second
}
