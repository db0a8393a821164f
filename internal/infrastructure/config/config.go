package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Panel Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies this panel gateway installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// UpstreamConfig contains the HomeMatrix backend connection settings.
type UpstreamConfig struct {
	// BaseURL is the backend origin, e.g. "https://homematrix.example.com".
	BaseURL string `yaml:"base_url"`

	// HandoffRedirectURL is the callback URL registered with the external
	// identity provider. Tokens arriving on this URL are consumed one-shot.
	HandoffRedirectURL string `yaml:"handoff_redirect_url"`
}

// DatabaseConfig contains SQLite database settings.
// The local database stores the durable access token and gateway audit rows.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains the local panel-facing HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	UIDir    string           `yaml:"ui_dir"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
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

// WebSocketConfig contains settings for the panel push channel.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MirrorConfig contains the optional MQTT state-mirror settings.
type MirrorConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MirrorBrokerConfig  `yaml:"broker"`
	Auth      MirrorAuthConfig    `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MirrorReconnectConf `yaml:"reconnect"`
}

// MirrorBrokerConfig contains MQTT broker connection details.
type MirrorBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MirrorAuthConfig contains MQTT authentication credentials.
type MirrorAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MirrorReconnectConf contains MQTT reconnection settings (seconds).
type MirrorReconnectConf struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// HistoryConfig contains the optional InfluxDB state-history settings.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains structured logging settings.
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
// Environment variables follow the pattern: PANELCORE_SECTION_KEY
// For example: PANELCORE_DATABASE_PATH, PANELCORE_UPSTREAM_BASE_URL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "HomeMatrix Panel",
		},
		Database: DatabaseConfig{
			Path:        "./data/panelcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Mirror: MirrorConfig{
			Broker: MirrorBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "panelcore",
			},
			QoS: 1,
			Reconnect: MirrorReconnectConf{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		History: HistoryConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PANELCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Upstream
	if v := os.Getenv("PANELCORE_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}

	// Database
	if v := os.Getenv("PANELCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("PANELCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Mirror
	if v := os.Getenv("PANELCORE_MIRROR_HOST"); v != "" {
		cfg.Mirror.Broker.Host = v
	}
	if v := os.Getenv("PANELCORE_MIRROR_USERNAME"); v != "" {
		cfg.Mirror.Auth.Username = v
	}
	if v := os.Getenv("PANELCORE_MIRROR_PASSWORD"); v != "" {
		cfg.Mirror.Auth.Password = v
	}

	// History
	if v := os.Getenv("PANELCORE_HISTORY_TOKEN"); v != "" {
		cfg.History.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// The gateway is useless without a backend origin, and a malformed
	// origin would surface later as confusing network errors.
	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url is required (set PANELCORE_UPSTREAM_BASE_URL environment variable)")
	} else if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "upstream.base_url must be an absolute URL")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Mirror.QoS < 0 || c.Mirror.QoS > 2 {
		errs = append(errs, "mirror.qos must be 0, 1, or 2")
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
