package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Environment variable names for overrides.
const (
	EnvConfig       = "TASKBOARD_CONFIG"
	EnvHTTPEndpoint = "TASKBOARD_HTTP_URL"
	EnvWSEndpoint   = "TASKBOARD_WS_URL"
	EnvSessionPath  = "TASKBOARD_SESSION_PATH"
)

// EnvOverrides holds values read from environment variables.
type EnvOverrides struct {
	ConfigPath   string // TASKBOARD_CONFIG: override config file path
	HTTPEndpoint string // TASKBOARD_HTTP_URL: query/mutation endpoint
	WSEndpoint   string // TASKBOARD_WS_URL: subscription endpoint
	SessionPath  string // TASKBOARD_SESSION_PATH: session file location
}

// ReadEnvOverrides reads the override environment variables. It does not
// modify any Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		HTTPEndpoint: os.Getenv(EnvHTTPEndpoint),
		WSEndpoint:   os.Getenv(EnvWSEndpoint),
		SessionPath:  os.Getenv(EnvSessionPath),
	}
}

// CLIOverrides carries flag values from the command line, the highest layer
// of the override chain.
type CLIOverrides struct {
	ConfigPath   string
	HTTPEndpoint string
	WSEndpoint   string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal — silently ignoring a typo in a
// config file leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config with all defaults. Supports the zero-config first run.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve applies the full override chain: defaults -> config file ->
// environment -> CLI flags, then re-validates the result.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.HTTPEndpoint != "" {
		cfg.API.HTTPEndpoint = env.HTTPEndpoint
	}

	if env.WSEndpoint != "" {
		cfg.API.WSEndpoint = env.WSEndpoint
	}

	if env.SessionPath != "" {
		cfg.Auth.SessionPath = env.SessionPath
	}

	if cli.HTTPEndpoint != "" {
		cfg.API.HTTPEndpoint = cli.HTTPEndpoint
	}

	if cli.WSEndpoint != "" {
		cfg.API.WSEndpoint = cli.WSEndpoint
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
