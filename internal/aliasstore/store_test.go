package aliasstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/gameterm/internal/commands"
)

func TestLoadMissingFile(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "aliases.yaml"))

	aliases, err := store.Load()

	require.NoError(t, err)
	assert.Empty(t, aliases)
	assert.NotNil(t, aliases)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	aliases, err := New(path).Load()

	require.NoError(t, err)
	assert.NotNil(t, aliases)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hi: [say\n"), 0o600))

	_, err := New(path).Load()

	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "state", "aliases.yaml"))
	want := map[string][]string{
		"hi": {"say", "hello"},
		"w":  {"msg"},
	}

	require.NoError(t, store.Save(want))
	got, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBacksAliases(t *testing.T) {
	registry := commands.NewRegistry("")
	registry.Register([]commands.Definition{{Name: "say"}, {Name: "msg"}})
	store := New(filepath.Join(t.TempDir(), "aliases.yaml"))

	aliases, skipped, err := commands.NewAliases(registry, store)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.NoError(t, aliases.Define("hi", []string{"say", "hello"}))

	reloaded, _, err := commands.NewAliases(registry, New(store.Path()))
	require.NoError(t, err)
	expanded, ok := reloaded.Expand([]string{"hi", "all"})
	assert.True(t, ok)
	assert.Equal(t, []string{"say", "hello", "all"}, expanded)
}
