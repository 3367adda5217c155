package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/gameterm/internal/config"
)

func TestNew(t *testing.T) {
	badCA := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	tests := []struct {
		name        string
		cfg         config.TracingConfig
		wantEnabled bool
		expectError bool
	}{
		{
			name: "disabled",
			cfg:  config.TracingConfig{},
		},
		{
			name:        "enabled without endpoint",
			cfg:         config.TracingConfig{Enabled: true},
			expectError: true,
		},
		{
			name:        "TLS with insecure skip verify",
			cfg:         config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", TLSInsecure: true},
			wantEnabled: true,
		},
		{
			name:        "missing CA certificate",
			cfg:         config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: "/path/to/ca.crt"},
			expectError: true,
		},
		{
			name:        "CA file without certificates",
			cfg:         config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: badCA},
			expectError: true,
		},
		{
			name:        "plaintext",
			cfg:         config.TracingConfig{Enabled: true, Endpoint: "localhost:4317"},
			wantEnabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := New(tt.cfg, "test")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnabled, provider.Enabled())
			assert.NotNil(t, provider.Tracer("test"))
			assert.NoError(t, provider.Start(context.Background()))
			assert.NoError(t, provider.Stop(context.Background()))
		})
	}
}

func TestDisabledTracerRecordsNothing(t *testing.T) {
	provider, err := New(config.TracingConfig{}, "test")
	require.NoError(t, err)

	_, span := provider.Tracer("test").Start(context.Background(), "dispatch help")
	defer span.End()

	assert.False(t, span.IsRecording())
	assert.Equal(t, "Tracing Provider", provider.Name())
}
