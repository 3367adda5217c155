package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, "gameterm.yaml", `
server_url: wss://game.example.com/ws
server_version_constraint: ">= 1.2, < 2.0"
pacing_delay: 1s
completion_trigger: tab
user:
  name: alice
tracing:
  enabled: true
  endpoint: localhost:4317
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://game.example.com/ws", cfg.ServerURL)
	assert.Equal(t, time.Second, cfg.PacingDelay)
	assert.Equal(t, TriggerTab, cfg.CompletionTrigger)
	assert.Equal(t, "alice", cfg.User.Name)
	assert.Equal(t, 1, cfg.User.AccessLevel, "omitted keys keep their default")
	assert.Equal(t, "-/", cfg.CommandChars)
	assert.True(t, cfg.Tracing.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty server url", func(c *Config) { c.ServerURL = "" }, "server_url must not be empty"},
		{"http scheme", func(c *Config) { c.ServerURL = "http://x" }, "server_url must use ws or wss"},
		{"bad constraint", func(c *Config) { c.ServerVersionConstraint = "~> banana" }, "server_version_constraint is invalid"},
		{"negative pacing", func(c *Config) { c.PacingDelay = -time.Second }, "pacing_delay"},
		{"no command chars", func(c *Config) { c.CommandChars = "" }, "command_chars"},
		{"unknown trigger", func(c *Config) { c.CompletionTrigger = "f1" }, "completion_trigger"},
		{"negative level", func(c *Config) { c.User.AccessLevel = -1 }, "user.access_level"},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }, "tracing.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
