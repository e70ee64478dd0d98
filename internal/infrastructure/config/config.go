package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Feed sources accepted by feed.source.
const (
	FeedSourceHomeAssistant = "home_assistant"
	FeedSourceStatestream   = "mqtt_statestream"
)

// Config is the root configuration structure for Tracker Grid.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
	Feed          FeedConfig          `yaml:"feed"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	Security      SecurityConfig      `yaml:"security"`
	Terminal      TerminalConfig      `yaml:"terminal"`
	Grid          GridConfig          `yaml:"grid"`
}

// HomeAssistantConfig contains the Home Assistant WebSocket API connection.
// The same connection serves the state feed and the reconnect service calls.
type HomeAssistantConfig struct {
	Enabled     bool                   `yaml:"enabled"`
	URL         string                 `yaml:"url"`   // e.g. ws://homeassistant.local:8123/api/websocket
	Token       string                 `yaml:"token"` // long-lived access token
	CallTimeout int                    `yaml:"call_timeout"`
	Reconnect   HomeAssistantReconnect `yaml:"reconnect"`
}

// HomeAssistantReconnect contains the reconnect backoff bounds (seconds).
type HomeAssistantReconnect struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// FeedConfig selects where device_tracker state comes from.
type FeedConfig struct {
	Source string `yaml:"source"`

	// StatestreamBaseTopic is the base_topic of Home Assistant's
	// mqtt_statestream integration. Only used with the mqtt_statestream source.
	StatestreamBaseTopic string `yaml:"statestream_base_topic"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Panel    PanelConfig      `yaml:"panel"`
}

// PanelConfig controls the browser view served under /panel.
type PanelConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // serve assets from disk instead of the binary
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// TerminalConfig enables the interactive terminal table.
type TerminalConfig struct {
	Enabled   bool `yaml:"enabled"`
	AltScreen bool `yaml:"alt_screen"`
}

// GridConfig holds the device table options.
// Options that default to true are plain bools: defaults are set before the
// YAML decode, so a key absent from the file keeps its default.
type GridConfig struct {
	Title             string   `yaml:"title"`
	Service           string   `yaml:"service"` // "domain.action" shorthand
	ServiceDomain     string   `yaml:"service_domain"`
	ServiceAction     string   `yaml:"service_action"`
	MACParam          string   `yaml:"mac_param"`
	FormatMAC         bool     `yaml:"format_mac"`
	ColumnsOrder      []string `yaml:"columns_order"`
	ShowOffline       bool     `yaml:"show_offline"`
	FilterByEntity    []string `yaml:"filter_by_entity"`
	MaxDevices        int      `yaml:"max_devices"`
	SortBy            string   `yaml:"sort_by"`
	SortOrder         string   `yaml:"sort_order"`
	AlternatingRows   bool     `yaml:"alternating_rows"`
	ShowFilter        bool     `yaml:"show_filter"`
	FilterPlaceholder string   `yaml:"filter_placeholder"`
	StateIndicator    bool     `yaml:"state_indicator"`
	SortableColumns   []string `yaml:"sortable_columns"`
	EnableSorting     bool     `yaml:"enable_sorting"`
	DebounceMS        int      `yaml:"debounce_ms"`
	RestoreDelayMS    int      `yaml:"restore_delay_ms"`
	ActionTimeout     int      `yaml:"action_timeout"` // seconds
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TRACKERGRID_SECTION_KEY
// For example: TRACKERGRID_DATABASE_PATH, TRACKERGRID_HASS_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		HomeAssistant: HomeAssistantConfig{
			Enabled:     true,
			URL:         "ws://homeassistant.local:8123/api/websocket",
			CallTimeout: 10,
			Reconnect: HomeAssistantReconnect{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Feed: FeedConfig{
			Source:               FeedSourceHomeAssistant,
			StatestreamBaseTopic: "homeassistant",
		},
		Database: DatabaseConfig{
			Path:        "./data/trackergrid.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "trackergrid",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "trackergrid",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Panel: PanelConfig{Enabled: true},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Grid: GridConfig{
			Title:             "Device Tracker",
			ServiceDomain:     "tplink_omada",
			ServiceAction:     "reconnect_client",
			MACParam:          "mac",
			FormatMAC:         true,
			ColumnsOrder:      []string{"name", "mac", "ip", "actions"},
			ShowOffline:       true,
			SortBy:            "name",
			SortOrder:         "asc",
			AlternatingRows:   true,
			ShowFilter:        true,
			FilterPlaceholder: "Filter devices...",
			StateIndicator:    true,
			SortableColumns:   []string{"name", "mac", "ip"},
			EnableSorting:     true,
			DebounceMS:        100,
			RestoreDelayMS:    3000,
			ActionTimeout:     10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TRACKERGRID_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Home Assistant
	if v := os.Getenv("TRACKERGRID_HASS_URL"); v != "" {
		cfg.HomeAssistant.URL = v
	}
	if v := os.Getenv("TRACKERGRID_HASS_TOKEN"); v != "" {
		cfg.HomeAssistant.Token = v
	}

	// Database
	if v := os.Getenv("TRACKERGRID_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("TRACKERGRID_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TRACKERGRID_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TRACKERGRID_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("TRACKERGRID_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("TRACKERGRID_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("TRACKERGRID_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("TRACKERGRID_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Feed validation
	switch c.Feed.Source {
	case FeedSourceHomeAssistant:
		if !c.HomeAssistant.Enabled {
			errs = append(errs, "feed.source home_assistant requires home_assistant.enabled")
		}
	case FeedSourceStatestream:
		if !c.MQTT.Enabled {
			errs = append(errs, "feed.source mqtt_statestream requires mqtt.enabled")
		}
		if c.Feed.StatestreamBaseTopic == "" {
			errs = append(errs, "feed.statestream_base_topic is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("feed.source must be %q or %q", FeedSourceHomeAssistant, FeedSourceStatestream))
	}

	// Home Assistant validation
	if c.HomeAssistant.Enabled {
		if c.HomeAssistant.URL == "" {
			errs = append(errs, "home_assistant.url is required")
		}
		if c.HomeAssistant.Token == "" {
			errs = append(errs, "home_assistant.token is required (set TRACKERGRID_HASS_TOKEN environment variable)")
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The API can trigger reconnects on the network, so it is never
		// served without a usable signing secret.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set TRACKERGRID_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// Grid validation (option semantics are checked again by the grid engine)
	if c.Grid.MaxDevices < 0 {
		errs = append(errs, "grid.max_devices must not be negative")
	}
	if c.Grid.DebounceMS <= 0 {
		errs = append(errs, "grid.debounce_ms must be positive")
	}
	if c.Grid.RestoreDelayMS <= 0 {
		errs = append(errs, "grid.restore_delay_ms must be positive")
	}
	if c.Grid.Service != "" && !strings.Contains(c.Grid.Service, ".") {
		errs = append(errs, "grid.service must have the form domain.action")
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

// GetHomeAssistantCallTimeout returns the per-call timeout for service calls.
func (c *Config) GetHomeAssistantCallTimeout() time.Duration {
	return time.Duration(c.HomeAssistant.CallTimeout) * time.Second
}

// Debounce returns the render debounce window.
func (g GridConfig) Debounce() time.Duration {
	return time.Duration(g.DebounceMS) * time.Millisecond
}

// RestoreDelay returns how long a reconnect result stays visible.
func (g GridConfig) RestoreDelay() time.Duration {
	return time.Duration(g.RestoreDelayMS) * time.Millisecond
}

// ActionTimeoutDuration returns the bound on a single reconnect call.
func (g GridConfig) ActionTimeoutDuration() time.Duration {
	return time.Duration(g.ActionTimeout) * time.Second
}
