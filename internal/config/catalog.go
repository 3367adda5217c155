package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// CatalogFile declares the game's commands.
//
// Example YAML structure:
//
//	schema_version: v1
//	commands:
//	  - name: msg
//	    description: Send a private message
//	    usage: msg <user> <text>
//	    category: chat
//	    access_level: 1
//	    visibility: 1
//	    event: chat:private
//	    autocomplete:
//	      type: users
//	  - name: register
//	    access_level: 0
//	    visibility: 0
//	    event: account:register
//	    fallback_step: 1
//	    steps:
//	      - prompt: "Pick a user name:"
//	        field: username
//	        validate: "^[a-z0-9_]{3,16}$"
//	        verify_event: account:name-free
//	      - prompt: "Password:"
//	        field: password
//	        masked: true
//	      - prompt: "Repeat password:"
//	        field: password_repeat
//	        masked: true
//	        confirm_field: password
type CatalogFile struct {
	SchemaVersion string        `yaml:"schema_version"`
	Commands      []CommandSpec `yaml:"commands"`
}

// CommandSpec declares one command.
type CommandSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Usage       string `yaml:"usage"`
	Category    string `yaml:"category"`

	// AccessLevel and Visibility default to 1 when omitted
	AccessLevel *int `yaml:"access_level"`
	Visibility  *int `yaml:"visibility"`

	// Event is emitted to the server when the command runs, or when
	// the last step of a wizard completes
	Event string `yaml:"event"`

	Options      map[string]OptionSpec `yaml:"options"`
	Autocomplete *AutocompleteSpec     `yaml:"autocomplete"`

	ClearBeforeUse bool `yaml:"clear_before_use"`
	ClearAfterUse  bool `yaml:"clear_after_use"`

	// Steps turn the command into a wizard
	Steps []StepSpec `yaml:"steps"`

	// FallbackStep is where a wizard resumes when a remote
	// verification fails
	FallbackStep int `yaml:"fallback_step"`

	// AllowAutoComplete enables completion while the wizard is active
	AllowAutoComplete bool `yaml:"allow_autocomplete"`
}

// OptionSpec is one node of a command's option tree.
type OptionSpec struct {
	Description string                `yaml:"description"`
	Options     map[string]OptionSpec `yaml:"options"`
}

// AutocompleteSpec binds arguments to a server-provided candidate list.
type AutocompleteSpec struct {
	Type string `yaml:"type"`
}

// StepSpec declares one wizard step.
type StepSpec struct {
	Prompt string `yaml:"prompt"`
	// Field is the data key the step's input is stored under
	Field string `yaml:"field"`
	// Masked hides the input of this step
	Masked bool `yaml:"masked"`
	// ConfirmField names an earlier field this input must repeat
	ConfirmField string `yaml:"confirm_field"`
	// Validate is a regular expression the input must match
	Validate string `yaml:"validate"`
	// VerifyEvent asks the server to accept the input before moving on
	VerifyEvent string `yaml:"verify_event"`
}

// LoadCatalogFile loads and validates a command catalog using Koanf.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load catalog from %q: %w", path, err)
	}

	var catalog CatalogFile
	if err := k.UnmarshalWithConf("", &catalog, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse catalog from %q: %w", path, err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog validation failed for %q: %w", path, err)
	}

	return &catalog, nil
}

// Validate checks that the CatalogFile is valid.
func (f *CatalogFile) Validate() error {
	if f.SchemaVersion != "v1" {
		return NewConfigError(fmt.Sprintf(
			"unsupported schema_version: %q (expected \"v1\")",
			f.SchemaVersion,
		))
	}

	seenNames := make(map[string]bool)
	for i, cmd := range f.Commands {
		name := strings.ToLower(strings.TrimSpace(cmd.Name))
		if name == "" {
			return NewConfigError(fmt.Sprintf("commands[%d]: name is required", i))
		}
		if strings.ContainsAny(name, " \t") {
			return NewConfigError(fmt.Sprintf("commands[%d]: name %q must be a single word", i, cmd.Name))
		}
		if seenNames[name] {
			return NewConfigError(fmt.Sprintf("commands[%d]: duplicate command name %q", i, cmd.Name))
		}
		seenNames[name] = true

		if err := cmd.validateSteps(); err != nil {
			return NewConfigError(fmt.Sprintf("commands[%d] (%s): %v", i, cmd.Name, err))
		}
	}

	return nil
}

func (c *CommandSpec) validateSteps() error {
	if len(c.Steps) == 0 {
		return nil
	}
	if c.FallbackStep < 0 || c.FallbackStep >= len(c.Steps) {
		return fmt.Errorf("fallback_step %d is out of range", c.FallbackStep)
	}

	fields := make(map[string]bool)
	for i, step := range c.Steps {
		if step.Field == "" {
			return fmt.Errorf("steps[%d]: field is required", i)
		}
		if step.Validate != "" {
			if _, err := regexp.Compile(step.Validate); err != nil {
				return fmt.Errorf("steps[%d]: invalid validate pattern: %w", i, err)
			}
		}
		if step.ConfirmField != "" && !fields[step.ConfirmField] {
			return fmt.Errorf("steps[%d]: confirm_field %q is not an earlier field", i, step.ConfirmField)
		}
		fields[step.Field] = true
	}
	return nil
}
