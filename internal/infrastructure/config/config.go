package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Removal policies applied to registry entries when the import module stops.
const (
	RemoveGenerated = "generated"
	RemoveEnabled   = "enabled"
)

// Config is the whole service configuration, one field per YAML section.
type Config struct {
	Module    ModuleConfig    `yaml:"module"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ModuleConfig contains the settings of one import module instance.
type ModuleConfig struct {
	// ID is the module identity. It is part of every derived device id,
	// so changing it orphans all persisted devices.
	ID string `yaml:"id"`

	// Namespace is the display namespace the device listing is pushed to.
	// Default: "wbmqtt_import_<id>"
	Namespace string `yaml:"namespace"`

	// TopicFilter is the subscription filter used after every connect.
	TopicFilter string `yaml:"topic_filter"`

	// NativePrefixes lists device-name prefixes handled by a separate
	// native integration. Metadata for those devices is skipped.
	NativePrefixes []string `yaml:"native_prefixes"`

	// Devices optionally restricts import to the listed device names.
	// Empty means every device is imported.
	Devices []string `yaml:"devices"`

	// RemoveOnStop is "generated" (entries created this session) or
	// "enabled" (every enabled id).
	RemoveOnStop string `yaml:"remove_on_stop"`

	// FailAfterAttempts is the retry count at which enabled devices are
	// flagged as failed.
	FailAfterAttempts int `yaml:"fail_after_attempts"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig contains the reconnect backoff. The delay before attempt n
// is min(n*step, max).
type RetryConfig struct {
	StepMS int `yaml:"step_ms"`
	MaxMS  int `yaml:"max_ms"`
}

// DatabaseConfig locates the SQLite file holding import state.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig describes the Wiren Board broker.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials. A username or password of
// "none" means anonymous access.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Anonymous reports whether the credentials should be omitted.
func (a MQTTAuthConfig) Anonymous() bool {
	return a.Username == "" || a.Username == "none" || a.Password == "none"
}

// APIConfig configures the inspection API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig holds HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists the browser origins allowed to call the API. Empty
// allows all.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig configures the event feed. Intervals are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig configures optional level telemetry. FlushInterval is in
// seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration from defaults, the YAML file at path and
// WBIMPORT_* environment variables, in that order, and validates it.
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
		Module: ModuleConfig{
			ID:                "1",
			TopicFilter:       "#",
			NativePrefixes:    []string{"zway"},
			RemoveOnStop:      RemoveGenerated,
			FailAfterAttempts: 3,
			Retry: RetryConfig{
				StepMS: 1000,
				MaxMS:  60000,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/wbimport.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "wbimport",
			},
			QoS: 0,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8083,
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
		InfluxDB: InfluxDBConfig{
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
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WBIMPORT_MODULE_ID"); v != "" {
		cfg.Module.ID = v
	}

	if v := os.Getenv("WBIMPORT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("WBIMPORT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WBIMPORT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WBIMPORT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("WBIMPORT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("WBIMPORT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Module.ID == "" {
		errs = append(errs, "module.id is required")
	}
	if c.Module.TopicFilter == "" {
		errs = append(errs, "module.topic_filter is required")
	}
	switch c.Module.RemoveOnStop {
	case RemoveGenerated, RemoveEnabled:
	default:
		errs = append(errs, fmt.Sprintf("module.remove_on_stop must be %q or %q", RemoveGenerated, RemoveEnabled))
	}
	if c.Module.FailAfterAttempts < 1 {
		errs = append(errs, "module.fail_after_attempts must be at least 1")
	}
	if c.Module.Retry.StepMS < 1 {
		errs = append(errs, "module.retry.step_ms must be positive")
	}
	if c.Module.Retry.MaxMS < c.Module.Retry.StepMS {
		errs = append(errs, "module.retry.max_ms must not be below module.retry.step_ms")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// NamespaceName returns the display namespace, defaulting from the module id.
func (c *Config) NamespaceName() string {
	if c.Module.Namespace != "" {
		return c.Module.Namespace
	}
	return "wbmqtt_import_" + c.Module.ID
}

// GetRetryStep returns the reconnect backoff step as a Duration.
func (c *Config) GetRetryStep() time.Duration {
	return time.Duration(c.Module.Retry.StepMS) * time.Millisecond
}

// GetRetryMax returns the reconnect backoff cap as a Duration.
func (c *Config) GetRetryMax() time.Duration {
	return time.Duration(c.Module.Retry.MaxMS) * time.Millisecond
}

// ReadTimeout is the HTTP read and read-header timeout.
func (t APITimeoutConfig) ReadTimeout() time.Duration { return time.Duration(t.Read) * time.Second }

// WriteTimeout is the HTTP write timeout.
func (t APITimeoutConfig) WriteTimeout() time.Duration { return time.Duration(t.Write) * time.Second }

// IdleTimeout is the keep-alive idle timeout.
func (t APITimeoutConfig) IdleTimeout() time.Duration { return time.Duration(t.Idle) * time.Second }
