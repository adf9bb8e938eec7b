// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	DBDriver           string        `mapstructure:"DB_DRIVER"`
	DBURL              string        `mapstructure:"DB_URL"`
	SQLitePath         string        `mapstructure:"SQLITE_PATH"`
	RepoPaths          []string      `mapstructure:"REPO_PATHS"`
	CodeDir            string        `mapstructure:"CODE_DIR"`
	SyncInterval       time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency    int           `mapstructure:"SYNC_CONCURRENCY"`
	GitTimeout         time.Duration `mapstructure:"GIT_TIMEOUT"`
	AllowLowConfidence bool          `mapstructure:"ALLOW_LOW_CONFIDENCE_REMOTES"`
	GithubToken        string        `mapstructure:"GITHUB_TOKEN"`
	HTTPAddr           string        `mapstructure:"HTTP_ADDR"`
}

var keys = []string{
	"LOG_LEVEL", "DB_DRIVER", "DB_URL", "SQLITE_PATH", "REPO_PATHS", "CODE_DIR",
	"SYNC_INTERVAL", "SYNC_CONCURRENCY", "GIT_TIMEOUT", "ALLOW_LOW_CONFIDENCE_REMOTES",
	"GITHUB_TOKEN", "HTTP_ADDR",
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("SQLITE_PATH", "gitledger.db")
	v.SetDefault("SYNC_INTERVAL", "1h")
	v.SetDefault("SYNC_CONCURRENCY", 5)
	v.SetDefault("GIT_TIMEOUT", "10m")
	v.SetDefault("ALLOW_LOW_CONFIDENCE_REMOTES", false)
	v.SetDefault("HTTP_ADDR", ":8080")

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(configPath)
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables. Unmarshal only sees env keys that are bound or have a default.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.RepoPaths = splitList(cfg.RepoPaths)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the required fields and value ranges.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field when DB_DRIVER is postgres")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is a required configuration field when DB_DRIVER is sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.SyncInterval <= 0 {
		return errors.New("SYNC_INTERVAL must be positive")
	}
	if c.SyncConcurrency <= 0 {
		return errors.New("SYNC_CONCURRENCY must be positive")
	}
	if c.GitTimeout < 0 {
		return errors.New("GIT_TIMEOUT must not be negative")
	}
	return nil
}

// splitList accepts both a real list and a single comma separated value, as set from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
