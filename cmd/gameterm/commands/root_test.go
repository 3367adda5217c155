package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevelFlags(t *testing.T) {
	tests := []struct {
		name         string
		flags        []string
		environ      []string
		wantDefault  string
		wantPackages map[string]string
		wantErr      bool
	}{
		{
			name:         "defaults to info",
			wantDefault:  "info",
			wantPackages: map[string]string{},
		},
		{
			name:         "bare level sets default",
			flags:        []string{"debug"},
			wantDefault:  "debug",
			wantPackages: map[string]string{},
		},
		{
			name:         "package levels",
			flags:        []string{"default=warn", "transport=debug"},
			wantDefault:  "warn",
			wantPackages: map[string]string{"transport": "debug"},
		},
		{
			name:         "environment",
			environ:      []string{"PATH=/bin", "LOG_LEVEL_INTERPRETER_SESSION=debug"},
			wantDefault:  "info",
			wantPackages: map[string]string{"interpreter.session": "debug"},
		},
		{
			name:         "flags override environment",
			flags:        []string{"transport=error"},
			environ:      []string{"LOG_LEVEL_TRANSPORT=debug"},
			wantDefault:  "info",
			wantPackages: map[string]string{"transport": "error"},
		},
		{
			name:    "invalid default",
			flags:   []string{"loud"},
			wantErr: true,
		},
		{
			name:    "invalid package level",
			flags:   []string{"transport=loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, pkgs, err := parseLogLevelFlags(tt.flags, tt.environ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDefault, def)
			assert.Equal(t, tt.wantPackages, pkgs)
		})
	}
}

func TestConvertEnvKeyToPackageName(t *testing.T) {
	assert.Equal(t, "interpreter.session", convertEnvKeyToPackageName("LOG_LEVEL_INTERPRETER_SESSION"))
	assert.Equal(t, "transport", convertEnvKeyToPackageName("LOG_LEVEL_TRANSPORT"))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	catalogFile := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogFile, []byte(`schema_version: v1
commands:
  - name: say
    event: chat
`), 0o600))
	configFile := filepath.Join(dir, "gameterm.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server_url: ws://localhost:4000/ws\ncatalog_path: "+catalogFile+"\n"), 0o600))

	configPath = configFile
	t.Cleanup(func() { configPath = "" })

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	t.Cleanup(func() { validateCmd.SetOut(nil) })

	require.NoError(t, runValidate(validateCmd, nil))
	assert.Contains(t, out.String(), "config:  ok (server ws://localhost:4000/ws)")
	assert.Contains(t, out.String(), "catalog: ok (1 commands)")
}
