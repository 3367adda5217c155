// Package config loads the client configuration, the command catalog,
// and the command policy file, and watches the policy file for changes.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Completion triggers.
const (
	TriggerTab         = "tab"
	TriggerDoubleSpace = "double-space"
)

// Config holds all configuration for the client
type Config struct {
	// ServerURL is the websocket URL of the game server
	ServerURL string `yaml:"server_url"`

	// ServerVersionConstraint limits the server protocol versions the
	// client talks to, e.g. ">= 1.2, < 2.0". Empty accepts any version.
	ServerVersionConstraint string `yaml:"server_version_constraint"`

	// CatalogPath is the YAML file declaring the game's commands
	CatalogPath string `yaml:"catalog_path"`

	// PolicyPath is an optional YAML file overriding command access
	// levels; it is watched for changes
	PolicyPath string `yaml:"policy_path"`

	// AliasPath is where user aliases are persisted
	AliasPath string `yaml:"alias_path"`

	// PacingDelay is the minimum delay between two queued commands
	PacingDelay time.Duration `yaml:"pacing_delay"`

	// CommandChars are the prefixes allowed in front of a command name
	CommandChars string `yaml:"command_chars"`

	// CompletionTrigger is "tab" or "double-space"
	CompletionTrigger string `yaml:"completion_trigger"`

	User UserConfig `yaml:"user"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090"
	MetricsAddr string `yaml:"metrics_addr"`

	Tracing TracingConfig `yaml:"tracing"`
}

// UserConfig identifies the local user until the server says otherwise
type UserConfig struct {
	Name        string `yaml:"name"`
	AccessLevel int    `yaml:"access_level"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	TLSCAPath   string `yaml:"tls_ca_path"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		ServerURL:         "ws://localhost:8080/ws",
		AliasPath:         "aliases.yaml",
		PacingDelay:       250 * time.Millisecond,
		CommandChars:      "-/",
		CompletionTrigger: TriggerDoubleSpace,
		User: UserConfig{
			Name:        "guest",
			AccessLevel: 1,
		},
	}
}

// Load reads a YAML config file on top of Default. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return NewConfigError("server_url must not be empty")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return NewConfigError(fmt.Sprintf("server_url is not a valid URL: %v", err))
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return NewConfigError(fmt.Sprintf("server_url must use ws or wss, got %q", u.Scheme))
	}

	if c.ServerVersionConstraint != "" {
		if _, err := version.NewConstraint(c.ServerVersionConstraint); err != nil {
			return NewConfigError(fmt.Sprintf("server_version_constraint is invalid: %v", err))
		}
	}

	if c.PacingDelay < 0 {
		return NewConfigError("pacing_delay must not be negative")
	}

	if c.CommandChars == "" {
		return NewConfigError("command_chars must not be empty")
	}

	if c.CompletionTrigger != TriggerTab && c.CompletionTrigger != TriggerDoubleSpace {
		return NewConfigError(fmt.Sprintf("completion_trigger must be %q or %q", TriggerTab, TriggerDoubleSpace))
	}

	if c.User.AccessLevel < 0 {
		return NewConfigError("user.access_level must not be negative")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
