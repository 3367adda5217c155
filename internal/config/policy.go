package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PolicyFile overrides the access policy of catalog commands. Operators
// edit it while clients run; changes are applied without a restart.
//
// Example YAML structure:
//
//	schema_version: v1
//	commands:
//	  - name: banuser
//	    access_level: 10
//	    visibility: 10
//	  - name: room
//	    category: social
type PolicyFile struct {
	SchemaVersion string        `yaml:"schema_version"`
	Commands      []PolicyEntry `yaml:"commands"`
}

// PolicyEntry is the policy override of one command. Omitted fields
// are left unchanged.
type PolicyEntry struct {
	Name        string  `yaml:"name"`
	AccessLevel *int    `yaml:"access_level"`
	Visibility  *int    `yaml:"visibility"`
	Category    *string `yaml:"category"`
}

// LoadPolicyFile loads and validates a policy file using Koanf.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load policy from %q: %w", path, err)
	}

	var policy PolicyFile
	if err := k.UnmarshalWithConf("", &policy, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse policy from %q: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy validation failed for %q: %w", path, err)
	}

	return &policy, nil
}

// Validate checks that the PolicyFile is valid.
func (f *PolicyFile) Validate() error {
	if f.SchemaVersion != "v1" {
		return NewConfigError(fmt.Sprintf(
			"unsupported schema_version: %q (expected \"v1\")",
			f.SchemaVersion,
		))
	}

	for i, entry := range f.Commands {
		if entry.Name == "" {
			return NewConfigError(fmt.Sprintf("commands[%d]: name is required", i))
		}
		if entry.AccessLevel != nil && *entry.AccessLevel < 0 {
			return NewConfigError(fmt.Sprintf("commands[%d] (%s): access_level must not be negative", i, entry.Name))
		}
		if entry.Visibility != nil && *entry.Visibility < 0 {
			return NewConfigError(fmt.Sprintf("commands[%d] (%s): visibility must not be negative", i, entry.Name))
		}
	}

	return nil
}
