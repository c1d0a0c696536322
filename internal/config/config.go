// Package config loads application configuration from environment variables,
// applies defaults and validates everything on startup so misconfiguration
// fails fast.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Generator GeneratorConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// RequestTimeout is the middleware timeout per request (default: 120s);
	// scanning a large workbook can take a while.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"120s"`

	// ShutdownTimeout is the graceful shutdown window (default: 15s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// StoreConfig holds bundle store and upload settings.
type StoreConfig struct {
	// BundleRoot is the directory bundles are persisted under (default: ./bundles)
	BundleRoot string `env:"BUNDLE_ROOT" default:"./bundles"`

	// UploadDir is where scanned workbooks are staged between the scan and
	// generate phases (default: the OS temp dir when empty)
	UploadDir string `env:"UPLOAD_DIR"`

	// MaxUploadSize is the maximum workbook size in bytes (default: 32MB)
	MaxUploadSize int64 `env:"UPLOAD_MAX_SIZE" default:"33554432"`
}

// GeneratorConfig holds blueprint pipeline settings.
type GeneratorConfig struct {
	// TokenTTL is how long a scan session stays valid (default: 30m)
	TokenTTL time.Duration `env:"GENERATOR_TOKEN_TTL" default:"30m"`

	// RequireComplete rejects generation while unconfirmed headers remain
	// (default: false; unmapped columns fall back to defaults)
	RequireComplete bool `env:"GENERATOR_REQUIRE_COMPLETE" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Store.BundleRoot == "" {
		errs = append(errs, "BUNDLE_ROOT must not be empty")
	}
	if c.Store.MaxUploadSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_SIZE must be positive")
	}
	if c.Generator.TokenTTL <= 0 {
		errs = append(errs, "GENERATOR_TOKEN_TTL must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
