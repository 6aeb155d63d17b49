// Package config loads the server configuration.
//
// SOURCES, lowest precedence first:
//  1. Built-in defaults (Default)
//  2. An optional YAML file, path taken from CHECKFIT_CONFIG
//  3. A .env file in the working directory, if present
//  4. Process environment variables
//
// godotenv never overrides a variable that is already set, so a real
// environment variable always beats the same key in .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength matches what auth.NewTokenService accepts.
const MinJWTSecretLength = 16

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Admission AdmissionConfig `yaml:"admission"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	// Path is the SQLite file, or ":memory:".
	Path string `yaml:"path"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// AdmissionConfig controls the check-in admission engine.
type AdmissionConfig struct {
	// Serialize makes the capacity, duplicate and daily checks atomic with
	// the insert within this process. Off by default.
	Serialize bool `yaml:"serialize"`
}

// RateLimitConfig throttles /auth/login and /auth/register per client IP.
type RateLimitConfig struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

// Default returns the configuration used when nothing overrides it.
// JWT.Secret has no default: Validate rejects an empty one.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "data/checkfit.db"},
		JWT:      JWTConfig{Issuer: "checkfit-api"},
		Log:      LogConfig{Level: "info", Format: "text"},
		RateLimit: RateLimitConfig{
			PerMinute: 10,
			Burst:     5,
		},
	}
}

// Load builds the configuration from every source and validates it.
// configPath may be empty; a missing .env file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadYAML(configPath); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadYAML overlays the file's values on cfg. Keys absent from the file
// keep their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with any of the supported variables that are set.
// lookup is os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DB_PATH", &c.Database.Path)
	str("JWT_SECRET", &c.JWT.Secret)
	str("JWT_ISSUER", &c.JWT.Issuer)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("ADMISSION_SERIALIZE"); ok && v != "" {
		serialize, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid ADMISSION_SERIALIZE %q: %w", v, err)
		}
		c.Admission.Serialize = serialize
	}
	if v, ok := lookup("LOGIN_RATE_PER_MIN"); ok && v != "" {
		perMinute, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: invalid LOGIN_RATE_PER_MIN %q: %w", v, err)
		}
		c.RateLimit.PerMinute = perMinute
	}
	if v, ok := lookup("LOGIN_BURST"); ok && v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid LOGIN_BURST %q: %w", v, err)
		}
		c.RateLimit.Burst = burst
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range 1-65535", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database path is required")
	}
	if len(c.JWT.Secret) < MinJWTSecretLength {
		return fmt.Errorf("config: JWT secret must be at least %d characters (set JWT_SECRET)", MinJWTSecretLength)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log format %q must be text or json", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst < 1 {
		return errors.New("config: rate limit needs per_minute > 0 and burst >= 1")
	}
	return nil
}
