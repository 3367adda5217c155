package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteYAMLFile_RoundTripsThroughLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "policy.yaml")
	level := 7
	category := "admin"

	require.NoError(t, WriteYAMLFile(path, &PolicyFile{
		SchemaVersion: "v1",
		Commands:      []PolicyEntry{{Name: "banuser", AccessLevel: &level, Category: &category}},
	}))

	policy, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, *policy.Commands[0].AccessLevel)
	assert.Equal(t, "admin", *policy.Commands[0].Category)
}

func TestWriteYAMLFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.yaml")

	require.NoError(t, WriteYAMLFile(path, map[string][]string{"hi": {"say", "hello"}}))
	require.NoError(t, WriteYAMLFile(path, map[string][]string{"bye": {"say", "bye"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "aliases.yaml", entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bye")
	assert.NotContains(t, string(data), "hi:")
}
