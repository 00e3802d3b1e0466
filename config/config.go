/*
Package config loads the server configuration.

SOURCES (later wins):
  1. Built-in defaults
  2. Optional YAML file (config.yaml)
  3. Environment variables (MILHAS_*)
  4. Command-line flags, applied by cmd/server

EXAMPLE FILE:
  server:
    port: 8080
    allowed_origins: ["http://localhost:5173"]
  database:
    path: ./data/milhas.db
  auth:
    jwt_secret: change-me
    token_ttl: 24h
  crediting:
    check_interval: 1h
  logging:
    level: debug
    format: json
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Crediting CreditingConfig `yaml:"crediting"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// CreditingConfig controls the background job that credits due purchases.
type CreditingConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{Path: "milhas.db"},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			Issuer:    "milhas",
			TokenTTL:  24 * time.Hour,
		},
		Crediting: CreditingConfig{
			Enabled:       true,
			CheckInterval: time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token_ttl must be positive")
	}
	if c.Crediting.Enabled && c.Crediting.CheckInterval <= 0 {
		return fmt.Errorf("crediting check_interval must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("MILHAS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MILHAS_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("MILHAS_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MILHAS_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("MILHAS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MILHAS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MILHAS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("MILHAS_CREDITING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MILHAS_CREDITING_INTERVAL: %w", err)
		}
		cfg.Crediting.CheckInterval = d
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
