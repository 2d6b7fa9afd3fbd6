// Package config implements TOML configuration loading, environment
// overrides, validation, and platform path resolution for taskboard.
// Precedence is defaults -> config file -> environment -> CLI flags,
// so a one-off override never requires editing the config file.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Default values. Layer 0 of the override chain; chosen so the client works
// against a local development server with no config file at all.
const (
	defaultHTTPEndpoint = "http://localhost:8080/query"
	defaultWSEndpoint   = "ws://localhost:8080/query"

	// defaultRefreshInterval is the background renewal cadence used when
	// the access token's real expiry cannot be read from its claims.
	// Tokens live 15 minutes by default, so renew just inside that.
	defaultRefreshInterval = 14 * time.Minute

	defaultRequestTimeout = 30 * time.Second
	defaultLogLevel       = "info"
)

// Config is the top-level structure parsed from the TOML config file.
type Config struct {
	API     APIConfig     `toml:"api"`
	Auth    AuthConfig    `toml:"auth"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig locates the GraphQL endpoints.
type APIConfig struct {
	// HTTPEndpoint serves queries and mutations.
	HTTPEndpoint string `toml:"http_endpoint"`

	// WSEndpoint serves subscriptions over graphql-transport-ws.
	WSEndpoint string `toml:"ws_endpoint"`

	// RequestTimeout bounds each request/response operation.
	RequestTimeout string `toml:"request_timeout"`
}

// AuthConfig controls session persistence and renewal.
type AuthConfig struct {
	// SessionPath is where credentials persist across runs. Empty means
	// the platform data directory.
	SessionPath string `toml:"session_path"`

	// RefreshInterval is the fallback renewal cadence when token expiry
	// is not readable. Go duration string.
	RefreshInterval string `toml:"refresh_interval"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// DefaultConfig returns a Config populated with all default values. Used as
// the starting point for TOML decoding so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			HTTPEndpoint:   defaultHTTPEndpoint,
			WSEndpoint:     defaultWSEndpoint,
			RequestTimeout: defaultRequestTimeout.String(),
		},
		Auth: AuthConfig{
			SessionPath:     DefaultSessionPath(),
			RefreshInterval: defaultRefreshInterval.String(),
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: "text",
		},
	}
}

// Validate checks endpoint schemes and duration strings. Called after every
// load so a typo fails fast instead of surfacing as a dial error later.
func Validate(cfg *Config) error {
	if err := validateEndpoint(cfg.API.HTTPEndpoint, "http", "https"); err != nil {
		return fmt.Errorf("api.http_endpoint: %w", err)
	}

	if err := validateEndpoint(cfg.API.WSEndpoint, "ws", "wss"); err != nil {
		return fmt.Errorf("api.ws_endpoint: %w", err)
	}

	if _, err := time.ParseDuration(cfg.API.RequestTimeout); err != nil {
		return fmt.Errorf("api.request_timeout: %w", err)
	}

	interval, err := time.ParseDuration(cfg.Auth.RefreshInterval)
	if err != nil {
		return fmt.Errorf("auth.refresh_interval: %w", err)
	}

	if interval <= 0 {
		return fmt.Errorf("auth.refresh_interval: must be positive, got %s", interval)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", cfg.Logging.Format)
	}

	return nil
}

func validateEndpoint(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}

	return fmt.Errorf("scheme %q not allowed (want one of %v)", u.Scheme, schemes)
}

// RefreshInterval returns the parsed fallback renewal interval. Call after
// Validate.
func (c *Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Auth.RefreshInterval)
	if err != nil {
		return defaultRefreshInterval
	}

	return d
}

// RequestTimeout returns the parsed per-request timeout. Call after Validate.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.RequestTimeout)
	if err != nil {
		return defaultRequestTimeout
	}

	return d
}
