// Package common provides shared utilities for Novus
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Novus
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Refresh     RefreshConfig `toml:"refresh"`
	Profile     ProfileConfig `toml:"profile"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds paths for the two storage areas.
type StorageConfig struct {
	State AreaConfig `toml:"state"` // Portfolio state blob (BadgerHold)
	Cache AreaConfig `toml:"cache"` // Durable price-series cache (SQLite file)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Yahoo  ProviderConfig `toml:"yahoo"`
	MFAPI  ProviderConfig `toml:"mfapi"`
	Gemini GeminiConfig   `toml:"gemini"`
}

// ProviderConfig holds configuration for an HTTP market-data provider
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 12 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// RefreshConfig controls the background valuation refresh.
type RefreshConfig struct {
	Schedule        string `toml:"schedule"`         // cron spec, e.g. "@every 2m"
	CleanupSchedule string `toml:"cleanup_schedule"` // durable cache purge
	Concurrency     int    `toml:"concurrency"`
}

// ProfileConfig holds the defaults used for a fresh portfolio.
type ProfileConfig struct {
	Name     string `toml:"name"`
	Currency string `toml:"currency"`
}

// AuthConfig holds the single-user credential gate and JWT settings.
type AuthConfig struct {
	Email        string `toml:"email"`
	Password     string `toml:"password"`
	PasswordHash string `toml:"password_hash"` // bcrypt; takes precedence over password
	JWTSecret    string `toml:"jwt_secret"`
	TokenExpiry  string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			State: AreaConfig{Path: "data/state"},
			Cache: AreaConfig{Path: "data/cache/series.db"},
		},
		Clients: ClientsConfig{
			Yahoo: ProviderConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 5,
				Timeout:   "12s",
			},
			MFAPI: ProviderConfig{
				BaseURL:   "https://api.mfapi.in",
				RateLimit: 5,
				Timeout:   "12s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Refresh: RefreshConfig{
			Schedule:        "@every 2m",
			CleanupSchedule: "@every 6h",
			Concurrency:     8,
		},
		Profile: ProfileConfig{
			Name:     "Investor",
			Currency: "₹",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/novus.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first when present.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Refresh.Concurrency <= 0 {
		config.Refresh.Concurrency = 8
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NOVUS_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("NOVUS_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("NOVUS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("NOVUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("NOVUS_DATA_PATH"); path != "" {
		config.Storage.State.Path = filepath.Join(path, "state")
		config.Storage.Cache.Path = filepath.Join(path, "cache", "series.db")
	}

	if v := os.Getenv("NOVUS_REFRESH_SCHEDULE"); v != "" {
		config.Refresh.Schedule = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}
	if v := os.Getenv("NOVUS_GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}

	// Auth overrides
	if v := os.Getenv("NOVUS_AUTH_EMAIL"); v != "" {
		config.Auth.Email = v
	}
	if v := os.Getenv("NOVUS_AUTH_PASSWORD"); v != "" {
		config.Auth.Password = v
	}
	if v := os.Getenv("NOVUS_AUTH_PASSWORD_HASH"); v != "" {
		config.Auth.PasswordHash = v
	}
	if v := os.Getenv("NOVUS_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("NOVUS_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the names of settings that must be supplied
// before the server can accept logins.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if strings.TrimSpace(c.Auth.Email) == "" {
		missing = append(missing, "auth.email")
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		missing = append(missing, "auth.password")
	}
	if c.IsProduction() && c.Auth.JWTSecret == NewDefaultConfig().Auth.JWTSecret {
		missing = append(missing, "auth.jwt_secret")
	}
	return missing
}
