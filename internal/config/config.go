// Package config loads store configuration from an optional YAML file
// and CHRONICLE_* environment variables, environment winning.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Backend names accepted in Config.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Backend  string         `mapstructure:"backend"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Schemas  SchemaConfig   `mapstructure:"schemas"`
	Log      LogConfig      `mapstructure:"log"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SchemaConfig struct {
	// Dir holds the CUE schema files. Empty disables payload validation.
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from path (optional, empty means env and
// defaults only) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("sqlite.path", "chronicle.db")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("log.level", "info")

	// Registering every key, even with an empty default, lets
	// AutomaticEnv feed it through Unmarshal.
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.name", "")
	v.SetDefault("schemas.dir", "")

	v.SetEnvPrefix("CHRONICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	switch cfg.Backend {
	case BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown backend %q (want sqlite, postgres or memory)", cfg.Backend)
	}

	if cfg.Backend == BackendPostgres {
		if cfg.Postgres.User == "" || cfg.Postgres.Name == "" {
			return nil, fmt.Errorf("postgres backend requires user and name")
		}
	}

	return &cfg, nil
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
