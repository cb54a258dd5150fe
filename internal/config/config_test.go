package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
key_id = "k1"
application_key = "s1"
log_level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "k1", cfg.KeyID)
	assert.Equal(t, "s1", cfg.ApplicationKey)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DefaultsApply(t *testing.T) {
	path := writeConfig(t, `key_id = "k1"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_UnknownKeyIsFatal(t *testing.T) {
	path := writeConfig(t, `keyid = "typo"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.Contains(t, err.Error(), "keyid")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `log_level = "loud"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log_level")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
key_id = "file-key"
application_key = "file-secret"
`)

	cfg, err := Resolve(EnvOverrides{KeyID: "env-key"}, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.KeyID)
	assert.Equal(t, "file-secret", cfg.ApplicationKey)
}

func TestResolve_CLIPathWinsOverEnvPath(t *testing.T) {
	cliPath := writeConfig(t, `key_id = "cli-file"`)
	envPath := writeConfig(t, `key_id = "env-file"`)

	cfg, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, "cli-file", cfg.KeyID)
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvKeyID, "k")
	t.Setenv(EnvApplicationKey, "s")
	t.Setenv(EnvConfig, "/tmp/c.toml")

	env := ReadEnvOverrides()
	assert.Equal(t, "k", env.KeyID)
	assert.Equal(t, "s", env.ApplicationKey)
	assert.Equal(t, "/tmp/c.toml", env.ConfigPath)
}
