// Package config loads wattscope settings from a YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bher20/wattscope/internal/logging"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Storage StorageConfig  `yaml:"storage"`
	Logging logging.Config `yaml:"logging"`
	Tariff  TariffConfig   `yaml:"tariff"`
	Auth    AuthConfig     `yaml:"auth"`
	Digest  DigestConfig   `yaml:"digest"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Alerts  AlertsConfig   `yaml:"alerts"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory, sqlite, postgres
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type TariffConfig struct {
	// File is an optional YAML or PDF tariff schedule replacing the built-in
	// slab tables. It is read once at startup.
	File string `yaml:"file"`
}

type AuthConfig struct {
	// TokenTTL is the lifetime of login tokens ("30d", "24h", "never").
	TokenTTL string `yaml:"token_ttl"`
	// AdminEmail, when set, is promoted to the admin role on signup.
	AdminEmail string `yaml:"admin_email"`
}

type DigestConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // standard 5-field cron expression
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

type AlertsConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	WebhookType string `yaml:"webhook_type"` // slack, discord, generic
	MinFailures int    `yaml:"min_failures"`
}

// DefaultPath is used when no --config flag is given.
const DefaultPath = "wattscope.yaml"

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: "8000"},
		Storage: StorageConfig{Driver: "memory"},
		Logging: logging.DefaultConfig(),
		Auth:    AuthConfig{TokenTTL: "30d"},
		Digest:  DigestConfig{Schedule: "0 8 1 * *"},
		MQTT:    MQTTConfig{TopicPrefix: "wattscope", ClientID: "wattscope"},
		Alerts:  AlertsConfig{MinFailures: 1},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Storage.Driver, "WATTSCOPE_DB_DRIVER")
	setString(&c.Storage.DSN, "WATTSCOPE_DB_DSN")
	setBool(&c.Storage.AutoMigrate, "WATTSCOPE_AUTO_MIGRATE")
	setString(&c.Tariff.File, "WATTSCOPE_TARIFF_FILE")
	setString(&c.Tariff.File, "WATTSCOPE_TARIFF_PDF")
	setString(&c.Logging.Level, "WATTSCOPE_LOG_LEVEL")
	setString(&c.Logging.Format, "WATTSCOPE_LOG_FORMAT")
	setString(&c.Auth.TokenTTL, "WATTSCOPE_TOKEN_TTL")
	setString(&c.Auth.AdminEmail, "WATTSCOPE_ADMIN_EMAIL")
	setString(&c.Digest.Schedule, "WATTSCOPE_DIGEST_SCHEDULE")
	setBool(&c.Digest.Enabled, "WATTSCOPE_DIGEST_ENABLED")
	if os.Getenv("WATTSCOPE_MQTT_BROKER") != "" {
		c.MQTT.Enabled = true
	}
	setString(&c.MQTT.Broker, "WATTSCOPE_MQTT_BROKER")
	setString(&c.MQTT.Username, "WATTSCOPE_MQTT_USERNAME")
	setString(&c.MQTT.Password, "WATTSCOPE_MQTT_PASSWORD")
	setString(&c.Alerts.WebhookURL, "ALERT_WEBHOOK_URL")
	setString(&c.Alerts.WebhookType, "ALERT_WEBHOOK_TYPE")
	if v := os.Getenv("ALERT_MIN_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Alerts.MinFailures = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		*dst = true
	case "0", "false", "no":
		*dst = false
	}
}
