package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/triage-ai/denywatch/internal/source"
)

// SourceConfig declares one extraction source.
type SourceConfig struct {
	Kind          string `mapstructure:"kind"`
	Endpoint      string `mapstructure:"endpoint"`
	CredentialRef string `mapstructure:"credential_ref"`
	PageSize      int    `mapstructure:"page_size"`
	// PolicyFilter is a wildcard policy-name filter, DLP source only.
	PolicyFilter string `mapstructure:"policy_filter"`
}

// Config holds the full runtime configuration, merged from the optional
// YAML file, DENYWATCH_* environment variables, and CLI flags.
type Config struct {
	LogLevel      string         `mapstructure:"log_level"`
	OutputDir     string         `mapstructure:"output_dir"`
	MaxRecords    int            `mapstructure:"max_records"`
	UploadURL     string         `mapstructure:"upload_url"`
	ClickHouseDSN string         `mapstructure:"clickhouse_dsn"`
	PostgresDSN   string         `mapstructure:"postgres_dsn"`
	CredentialTTL time.Duration  `mapstructure:"credential_ttl"`
	Sources       []SourceConfig `mapstructure:"sources"`
}

// Load reads configuration. path may be empty; env vars and defaults then
// carry the whole config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("output_dir", "./exports")
	v.SetDefault("max_records", source.DefaultMaxRecords)
	v.SetDefault("credential_ttl", 5*time.Minute)

	v.SetEnvPrefix("DENYWATCH")
	v.AutomaticEnv()

	// Keys without a default are invisible to Unmarshal unless bound
	// explicitly; AutomaticEnv alone does not register them.
	for _, key := range []string{"clickhouse_dsn", "postgres_dsn", "upload_url"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for i, s := range c.Sources {
		if _, err := source.ParseKind(s.Kind); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if s.Endpoint == "" {
			return fmt.Errorf("sources[%d] (%s): endpoint is required", i, s.Kind)
		}
	}
	return nil
}
