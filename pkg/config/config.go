// Package config loads immuva settings from IMMUVA_* environment variables
// and verification profiles from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Mindburn-Labs/immuva/pkg/observability"
	"github.com/Mindburn-Labs/immuva/pkg/registry"
)

// Config holds process configuration.
type Config struct {
	LogLevel string `env:"IMMUVA_LOG_LEVEL" envDefault:"INFO"`
	Offline  bool   `env:"IMMUVA_OFFLINE" envDefault:"true"`
	SpecRoot string `env:"IMMUVA_SPEC_ROOT"`

	RegistryBackend   string  `env:"IMMUVA_REGISTRY_BACKEND" envDefault:"fs"`
	RegistryVersion   string  `env:"IMMUVA_REGISTRY_VERSION" envDefault:"v1"`
	RegistryRateLimit float64 `env:"IMMUVA_REGISTRY_RATE_LIMIT" envDefault:"0"`
	RegistryBurst     int     `env:"IMMUVA_REGISTRY_BURST" envDefault:"1"`

	S3Bucket   string `env:"IMMUVA_S3_BUCKET"`
	S3Region   string `env:"IMMUVA_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint string `env:"IMMUVA_S3_ENDPOINT"`
	S3Prefix   string `env:"IMMUVA_S3_PREFIX"`

	GCSBucket string `env:"IMMUVA_GCS_BUCKET"`
	GCSPrefix string `env:"IMMUVA_GCS_PREFIX"`

	RedisAddr     string `env:"IMMUVA_REDIS_ADDR"`
	RedisPassword string `env:"IMMUVA_REDIS_PASSWORD"`
	RedisDB       int    `env:"IMMUVA_REDIS_DB" envDefault:"0"`

	TLogDriver string `env:"IMMUVA_TLOG_DRIVER" envDefault:"sqlite"`
	TLogDSN    string `env:"IMMUVA_TLOG_DSN" envDefault:"file:immuva-tlog.db"`

	TelemetryEnabled  bool          `env:"IMMUVA_TELEMETRY_ENABLED" envDefault:"false"`
	TelemetryInsecure bool          `env:"IMMUVA_TELEMETRY_INSECURE" envDefault:"false"`
	OTLPEndpoint      string        `env:"IMMUVA_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRate        float64       `env:"IMMUVA_TRACE_SAMPLE_RATE" envDefault:"1.0"`
	BatchTimeout      time.Duration `env:"IMMUVA_TRACE_BATCH_TIMEOUT" envDefault:"5s"`
	Environment       string        `env:"IMMUVA_ENVIRONMENT" envDefault:"development"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return &cfg, nil
}

// Registry maps the registry settings onto a provider configuration.
func (c *Config) Registry() registry.ProviderConfig {
	return registry.ProviderConfig{
		Backend:  registry.Backend(c.RegistryBackend),
		SpecRoot: c.SpecRoot,
		S3: registry.S3Config{
			Bucket:   c.S3Bucket,
			Region:   c.S3Region,
			Endpoint: c.S3Endpoint,
			Prefix:   c.S3Prefix,
		},
		GCSBucket:     c.GCSBucket,
		GCSPrefix:     c.GCSPrefix,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RateLimit:     c.RegistryRateLimit,
		Burst:         c.RegistryBurst,
	}
}

// Telemetry maps the telemetry settings onto an observability config.
func (c *Config) Telemetry(version string) *observability.Config {
	oc := observability.DefaultConfig()
	oc.ServiceVersion = version
	oc.Environment = c.Environment
	oc.OTLPEndpoint = c.OTLPEndpoint
	oc.SampleRate = c.SampleRate
	oc.BatchTimeout = c.BatchTimeout
	oc.Enabled = c.TelemetryEnabled
	oc.Insecure = c.TelemetryInsecure
	return oc
}

// ParseLevel maps a level name to slog. Unknown names mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger used by every component.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)}))
}
