// Package config loads b2go configuration from a TOML file with
// environment-variable and CLI overrides layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration.
type Config struct {
	// KeyID and ApplicationKey are the B2 application key credentials.
	KeyID          string `toml:"key_id"`
	ApplicationKey string `toml:"application_key"`

	// AuthURL overrides the account authorization host. Empty means the
	// production control host.
	AuthURL string `toml:"auth_url"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{LogLevel: "info"}
}

// DefaultConfigPath returns the default config file location,
// ~/.config/b2go/config.toml on Linux.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}

	return filepath.Join(dir, "b2go", "config.toml")
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks field values. Credentials are not required here: commands
// that need them check at client construction time so that commands like
// help and version work without a configured account.
func Validate(cfg *Config) error {
	if cfg.LogLevel != "" && !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level %q: must be debug, info, warn, or error", cfg.LogLevel)
	}

	return nil
}

// Load reads and parses a TOML config file. Unknown keys are fatal —
// silently ignoring a typo in a config file leads to hard-to-debug
// behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return nil, fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// the defaults. This supports the zero-config first run: credentials can
// come entirely from environment variables.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Environment variable names for overrides.
const (
	EnvConfig         = "B2GO_CONFIG"
	EnvKeyID          = "B2GO_KEY_ID"
	EnvApplicationKey = "B2GO_APPLICATION_KEY"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath     string
	KeyID          string
	ApplicationKey string
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:     os.Getenv(EnvConfig),
		KeyID:          os.Getenv(EnvKeyID),
		ApplicationKey: os.Getenv(EnvApplicationKey),
	}
}

// CLIOverrides holds values from command-line flags.
type CLIOverrides struct {
	ConfigPath string
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	path := DefaultConfigPath()
	if env.ConfigPath != "" {
		path = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		path = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if env.KeyID != "" {
		cfg.KeyID = env.KeyID
	}

	if env.ApplicationKey != "" {
		cfg.ApplicationKey = env.ApplicationKey
	}

	return cfg, nil
}
