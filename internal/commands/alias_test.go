package commands

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data    map[string][]string
	saves   int
	saveErr error
}

func (m *memStore) Load() (map[string][]string, error) {
	return m.data, nil
}

func (m *memStore) Save(data map[string][]string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = data
	return nil
}

func newTestRegistry() *Registry {
	r := NewRegistry("")
	r.Register([]Definition{
		{Name: "msg", Handler: noop},
		{Name: "help", Handler: noop},
		{Name: "who", Handler: noop},
	})
	return r
}

func TestAliases_DefineAndExpand(t *testing.T) {
	store := &memStore{}
	aliases, skipped, err := NewAliases(newTestRegistry(), store)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	require.NoError(t, aliases.Define("hello", []string{"msg", "hi", "there"}))

	expanded, ok := aliases.Expand([]string{"hello"})
	assert.True(t, ok)
	assert.Equal(t, []string{"msg", "hi", "there"}, expanded)

	expanded, ok = aliases.Expand([]string{"hello", "again"})
	assert.True(t, ok)
	assert.Equal(t, []string{"msg", "hi", "there", "again"}, expanded)

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, []string{"msg", "hi", "there"}, store.data["hello"])
}

func TestAliases_ExpandLeavesCommandsAlone(t *testing.T) {
	aliases, _, err := NewAliases(newTestRegistry(), nil)
	require.NoError(t, err)

	expanded, ok := aliases.Expand([]string{"msg", "x"})
	assert.False(t, ok)
	assert.Equal(t, []string{"msg", "x"}, expanded)

	_, ok = aliases.Expand(nil)
	assert.False(t, ok)
}

func TestAliases_CollisionNeverChangesState(t *testing.T) {
	registry := newTestRegistry()

	for _, name := range registry.Names() {
		for _, variant := range []string{name, fmt.Sprintf(" %s ", name), strings.ToUpper(name)} {
			t.Run(variant, func(t *testing.T) {
				store := &memStore{data: map[string][]string{"greet": {"msg", "hi"}}}
				aliases, _, err := NewAliases(registry, store)
				require.NoError(t, err)
				before := aliases.All()
				version := aliases.Version()

				err = aliases.Define(variant, []string{"msg", "boom"})

				assert.ErrorIs(t, err, ErrAliasCollision)
				assert.Equal(t, before, aliases.All())
				assert.Equal(t, version, aliases.Version())
				assert.Equal(t, 0, store.saves)
			})
		}
	}
}

func TestAliases_DefineRejectsInvalid(t *testing.T) {
	aliases, _, err := NewAliases(newTestRegistry(), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		alias   string
		tokens  []string
		wantErr error
	}{
		{"empty name", "", []string{"msg"}, ErrInvalidAlias},
		{"empty expansion", "x", nil, ErrInvalidAlias},
		{"command char prefix", "/x", []string{"msg"}, ErrInvalidAlias},
		{"upper case collision", "HELP", []string{"msg"}, ErrAliasCollision},
		{"unknown target", "x", []string{"dance"}, ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := aliases.Define(tt.alias, tt.tokens)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, aliases.Names())
		})
	}
}

func TestAliases_LoadSkipsCollisions(t *testing.T) {
	store := &memStore{data: map[string][]string{
		"help":  {"msg", "shadow"},
		"greet": {"msg", "hi"},
		"empty": {},
	}}

	aliases, skipped, err := NewAliases(newTestRegistry(), store)

	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "help"}, skipped)
	assert.Equal(t, []string{"greet"}, aliases.Names())
}

func TestAliases_Remove(t *testing.T) {
	store := &memStore{data: map[string][]string{"greet": {"msg", "hi"}}}
	aliases, _, err := NewAliases(newTestRegistry(), store)
	require.NoError(t, err)

	require.NoError(t, aliases.Remove("GREET"))
	assert.Empty(t, aliases.Names())
	assert.Empty(t, store.data)

	assert.ErrorIs(t, aliases.Remove("greet"), ErrUnknownAlias)
}

func TestAliases_SaveFailureKeepsState(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	aliases, _, err := NewAliases(newTestRegistry(), store)
	require.NoError(t, err)

	err = aliases.Define("greet", []string{"msg", "hi"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	_, ok := aliases.Get("greet")
	assert.False(t, ok)
}
