package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the MQTT helper.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Journal  JournalConfig  `yaml:"journal"`
}

// MQTTConfig contains MQTT broker connection and synchronisation settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	Topics    string              `yaml:"topics"`
	Subscribe MQTTSubscribeConfig `yaml:"subscribe"`
	Publish   MQTTPublishConfig   `yaml:"publish"`
	Connect   MQTTConnectConfig   `yaml:"connect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ClientID       string `yaml:"client_id"`
	Keepalive      int    `yaml:"keepalive"`
	CleanSession   bool   `yaml:"clean_session"`
	ConnectTimeout int    `yaml:"connect_timeout"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig contains mutual-TLS material. The client certificate and
// key must be supplied together.
type MQTTTLSConfig struct {
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
	Insecure   bool   `yaml:"insecure"`
}

// MQTTSubscribeConfig controls how subscriptions are confirmed during connect.
type MQTTSubscribeConfig struct {
	QoS int `yaml:"qos"`

	// Wait is the bound, in seconds, on waiting for all subscribe acknowledgments.
	Wait int `yaml:"wait"`

	// Policy is "drop" (log rejected topics and continue) or "escalate"
	// (connect reports a distinct failure code).
	Policy string `yaml:"policy"`
}

// MQTTPublishConfig contains defaults for publish operations.
type MQTTPublishConfig struct {
	QoS     int `yaml:"qos"`
	Timeout int `yaml:"timeout"`
}

// MQTTConnectConfig controls the connect retry loop.
type MQTTConnectConfig struct {
	// RetryInterval is the pause between connect attempts, in milliseconds.
	RetryInterval int `yaml:"retry_interval"`

	// MaxAttempts limits connect attempts. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains settings for the admin HTTP endpoint exposing
// Prometheus metrics and health.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
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

// JournalConfig contains SQLite operation journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// An empty path skips step 2, so the helper can run from the environment alone.
// Environment variables follow the pattern: MQTTHELPER_SECTION_KEY
// For example: MQTTHELPER_MQTT_HOST, MQTTHELPER_JOURNAL_PATH
func Load(path string) (*Config, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with a final override step, applied after the
// environment and before validation. The CLI uses it for flag values.
func LoadWith(path string, override func(*Config)) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if override != nil {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:           "localhost",
				Port:           1883,
				Keepalive:      60,
				ConnectTimeout: 10,
			},
			Subscribe: MQTTSubscribeConfig{
				QoS:    0,
				Wait:   10,
				Policy: "drop",
			},
			Publish: MQTTPublishConfig{
				QoS:     1,
				Timeout: 5,
			},
			Connect: MQTTConnectConfig{
				RetryInterval: 2000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9108",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Journal: JournalConfig{
			Path:        "./data/mqtthelper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTHELPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	var result *multierror.Error

	// MQTT
	if v := os.Getenv("MQTTHELPER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTTHELPER_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("MQTTHELPER_MQTT_PORT: %w", err))
		} else {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MQTTHELPER_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("MQTTHELPER_MQTT_TOPICS"); v != "" {
		cfg.MQTT.Topics = v
	}
	if v := os.Getenv("MQTTHELPER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTTHELPER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// TLS material
	if v := os.Getenv("MQTTHELPER_TLS_CA_CERT"); v != "" {
		cfg.MQTT.TLS.CACert = v
	}
	if v := os.Getenv("MQTTHELPER_TLS_CLIENT_CERT"); v != "" {
		cfg.MQTT.TLS.ClientCert = v
	}
	if v := os.Getenv("MQTTHELPER_TLS_CLIENT_KEY"); v != "" {
		cfg.MQTT.TLS.ClientKey = v
	}

	// Logging
	if v := os.Getenv("MQTTHELPER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// InfluxDB
	if v := os.Getenv("MQTTHELPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Journal
	if v := os.Getenv("MQTTHELPER_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	return result.ErrorOrNil()
}

// Validate checks the configuration for errors.
//
// Every problem found is reported, not just the first.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	// Broker
	if c.MQTT.Broker.Host == "" {
		fail("mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		fail("mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		fail("mqtt.broker.client_id is required (set MQTTHELPER_MQTT_CLIENT_ID)")
	}
	if c.MQTT.Broker.Keepalive < 0 {
		fail("mqtt.broker.keepalive must not be negative")
	}

	// TLS material must be consistent
	if (c.MQTT.TLS.ClientCert == "") != (c.MQTT.TLS.ClientKey == "") {
		fail("mqtt.tls.client_cert and mqtt.tls.client_key must be set together")
	}

	// QoS: the helper only offers at-most-once and at-least-once
	if c.MQTT.Subscribe.QoS < 0 || c.MQTT.Subscribe.QoS > 1 {
		fail("mqtt.subscribe.qos must be 0 or 1")
	}
	if c.MQTT.Publish.QoS < 0 || c.MQTT.Publish.QoS > 1 {
		fail("mqtt.publish.qos must be 0 or 1")
	}

	switch strings.ToLower(c.MQTT.Subscribe.Policy) {
	case "", "drop", "escalate":
	default:
		fail("mqtt.subscribe.policy must be \"drop\" or \"escalate\", got %q", c.MQTT.Subscribe.Policy)
	}

	if c.MQTT.Subscribe.Wait < 0 || c.MQTT.Publish.Timeout < 0 {
		fail("mqtt wait and timeout values must not be negative")
	}
	if c.MQTT.Connect.RetryInterval < 0 || c.MQTT.Connect.MaxAttempts < 0 {
		fail("mqtt.connect values must not be negative")
	}

	// Optional sinks
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		fail("influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		fail("journal.path is required when the journal is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		fail("metrics.listen is required when metrics are enabled")
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("configuration errors: %w", err)
	}

	return nil
}

// GetKeepalive returns the broker keepalive as a Duration.
func (c *Config) GetKeepalive() time.Duration {
	return time.Duration(c.MQTT.Broker.Keepalive) * time.Second
}

// GetConnectTimeout returns the transport connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.Broker.ConnectTimeout) * time.Second
}

// GetSubscribeWait returns the subscription confirmation bound as a Duration.
func (c *Config) GetSubscribeWait() time.Duration {
	return time.Duration(c.MQTT.Subscribe.Wait) * time.Second
}

// GetPublishTimeout returns the QoS 1 publish acknowledgment timeout as a Duration.
func (c *Config) GetPublishTimeout() time.Duration {
	return time.Duration(c.MQTT.Publish.Timeout) * time.Second
}

// GetRetryInterval returns the pause between connect attempts as a Duration.
func (c *Config) GetRetryInterval() time.Duration {
	return time.Duration(c.MQTT.Connect.RetryInterval) * time.Millisecond
}
