package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBSchema             string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	SearchParametersFile string        `mapstructure:"SEARCH_PARAMETERS_FILE"`
	TokenLegacyCaseMatch bool          `mapstructure:"TOKEN_LEGACY_CASE_MATCH"`
	ReindexBatchSize     int           `mapstructure:"REINDEX_BATCH_SIZE"`
	ReindexWorkers       int           `mapstructure:"REINDEX_WORKERS"`
	ResourceTypes        []string      `mapstructure:"RESOURCE_TYPES"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SearchBodyLimit      string        `mapstructure:"SEARCH_BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS",
	"DB_MIN_CONNS", "SEARCH_PARAMETERS_FILE", "TOKEN_LEGACY_CASE_MATCH",
	"REINDEX_BATCH_SIZE", "REINDEX_WORKERS", "RESOURCE_TYPES", "REQUEST_TIMEOUT",
	"SEARCH_BODY_LIMIT",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TOKEN_LEGACY_CASE_MATCH", true)
	v.SetDefault("REINDEX_BATCH_SIZE", 500)
	v.SetDefault("REINDEX_WORKERS", 4)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SEARCH_BODY_LIMIT", "64K")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ResourceTypes = splitList(strings.Join(cfg.ResourceTypes, ","))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the parsed LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// RequireDatabase reports an error when no database is configured. Commands
// that only compile queries do not call it.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if c.ReindexBatchSize < 1 || c.ReindexBatchSize > 10000 {
		return fmt.Errorf("REINDEX_BATCH_SIZE must be between 1 and 10000, got %d", c.ReindexBatchSize)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.ReindexWorkers < 1 {
		return fmt.Errorf("REINDEX_WORKERS must be at least 1, got %d", c.ReindexWorkers)
	}
	return nil
}
