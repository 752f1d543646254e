// Package config loads the service configuration from YAML with
// environment variable expansion and coded defaults.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "15m" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Admin      AdminConfig      `yaml:"admin"`
	Guardrail  GuardrailConfig  `yaml:"guardrail"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port"`
	ReadTimeout      Duration `yaml:"read_timeout"`
	WriteTimeout     Duration `yaml:"write_timeout"`
	IdleTimeout      Duration `yaml:"idle_timeout"`
	GracefulShutdown Duration `yaml:"graceful_shutdown"`
	AuthCacheTTL     Duration `yaml:"auth_cache_ttl"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ClickHouseConfig struct {
	DSN string `yaml:"dsn"`
}

type AdminConfig struct {
	// APIKey gates the /api/admin endpoints via the x-admin-api-key
	// header. Usually supplied as ${MOAT_ADMIN_API_KEY}.
	APIKey string `yaml:"api_key"`
}

type GuardrailConfig struct {
	BlockScore         int      `yaml:"block_score"`
	ReviewScore        int      `yaml:"review_score"`
	CodeGenLimit       int      `yaml:"code_gen_limit"`
	CodeGenWindow      Duration `yaml:"code_gen_window"`
	InfraLimit         int      `yaml:"infra_limit"`
	InfraWindow        Duration `yaml:"infra_window"`
	CloneWindow        Duration `yaml:"clone_window"`
	CloneFlagThreshold int      `yaml:"clone_flag_threshold"`
	NotifyThreshold    string   `yaml:"notify_threshold"`
	NotifyDebounce     Duration `yaml:"notify_debounce"`
	WebhookURL         string   `yaml:"webhook_url"`
}

type CatalogConfig struct {
	// Path to a YAML catalog overriding the built-in rule tables.
	// Empty means the shipped defaults.
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type TelemetryConfig struct {
	LogLevel string `yaml:"log_level"`
}

// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      Duration(10 * time.Second),
			WriteTimeout:     Duration(30 * time.Second),
			IdleTimeout:      Duration(60 * time.Second),
			GracefulShutdown: Duration(10 * time.Second),
			AuthCacheTTL:     Duration(30 * time.Second),
		},
		Guardrail: GuardrailConfig{
			BlockScore:         15,
			ReviewScore:        8,
			CodeGenLimit:       10,
			CodeGenWindow:      Duration(time.Hour),
			InfraLimit:         5,
			InfraWindow:        Duration(24 * time.Hour),
			CloneWindow:        Duration(24 * time.Hour),
			CloneFlagThreshold: 3,
			NotifyThreshold:    "high",
			NotifyDebounce:     Duration(15 * time.Minute),
		},
		Telemetry: TelemetryConfig{
			LogLevel: "info",
		},
	}
}
