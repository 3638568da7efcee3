// Package config loads the server configuration.
//
// Values are layered, later layers winning:
//
//  1. defaults (defaultConfig)
//  2. an optional YAML file (CONFIG_PATH, else config.yaml / config.yml)
//  3. environment variables, after a .env file has been loaded if present
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"movierec/validation"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	TMDB      TMDBConfig      `koanf:"tmdb"`
	Auth      AuthConfig      `koanf:"auth"`
	Recommend RecommendConfig `koanf:"recommend"`
	Jobs      JobsConfig      `koanf:"jobs"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP listener and inbound middleware.
type ServerConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig selects the SQL driver. Driver is "sqlite3" or "pgx".
type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite3 pgx"`
	DSN    string `koanf:"dsn" validate:"required"`
}

// TMDBConfig configures the movie catalog client.
type TMDBConfig struct {
	APIKey          string        `koanf:"api_key" validate:"required"`
	BaseURL         string        `koanf:"base_url" validate:"required"`
	Timeout         time.Duration `koanf:"timeout"`
	CircuitBreaker  bool          `koanf:"circuit_breaker"`
	BreakerFailures int           `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// AuthConfig configures password hashing and token issuing.
type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret" validate:"required"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost" validate:"min=4,max=31"`
}

// RecommendConfig tunes the recommendation aggregator.
type RecommendConfig struct {
	Limit       int `koanf:"limit" validate:"min=1"`
	Concurrency int `koanf:"concurrency" validate:"min=1"`
}

// JobsConfig configures background jobs.
type JobsConfig struct {
	BackfillEnabled  bool          `koanf:"backfill_enabled"`
	BackfillInterval time.Duration `koanf:"backfill_interval"`
	BackfillBatch    int           `koanf:"backfill_batch" validate:"min=1"`
}

// LoggingConfig is passed to logging.Init.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":5000",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second, // recommendations fan out to the catalog
			IdleTimeout:       60 * time.Second,
			CORSOrigins:       []string{"http://localhost:3000"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "movierec.db",
		},
		TMDB: TMDBConfig{
			BaseURL:         "https://api.themoviedb.org/3",
			Timeout:         30 * time.Second,
			CircuitBreaker:  true,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL:   time.Hour,
			BcryptCost: 10,
		},
		Recommend: RecommendConfig{
			Limit:       10,
			Concurrency: 4,
		},
		Jobs: JobsConfig{
			BackfillEnabled:  true,
			BackfillInterval: 30 * time.Minute,
			BackfillBatch:    50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps recognised environment variables to koanf paths. Anything
// not listed here is ignored.
var envMappings = map[string]string{
	"server_addr":              "server.addr",
	"cors_origins":             "server.cors_origins",
	"rate_limit_requests":      "server.rate_limit_requests",
	"rate_limit_window":        "server.rate_limit_window",
	"database_driver":          "database.driver",
	"database_url":             "database.dsn",
	"tmdb_api_key":             "tmdb.api_key",
	"tmdb_base_url":            "tmdb.base_url",
	"tmdb_timeout":             "tmdb.timeout",
	"tmdb_circuit_breaker":     "tmdb.circuit_breaker",
	"tmdb_breaker_failures":    "tmdb.breaker_failures",
	"tmdb_breaker_timeout":     "tmdb.breaker_timeout",
	"jwt_secret_key":           "auth.jwt_secret",
	"jwt_token_ttl":            "auth.token_ttl",
	"bcrypt_cost":              "auth.bcrypt_cost",
	"recommend_limit":          "recommend.limit",
	"recommend_concurrency":    "recommend.concurrency",
	"poster_backfill_enabled":  "jobs.backfill_enabled",
	"poster_backfill_interval": "jobs.backfill_interval",
	"poster_backfill_batch":    "jobs.backfill_batch",
	"log_level":                "logging.level",
	"log_format":               "logging.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load reads .env (if present) into the environment and builds the layered
// configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return load()
}

func load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validation.Struct(c)
}
