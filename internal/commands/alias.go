package commands

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrAliasCollision is returned when an alias name equals a command name.
	ErrAliasCollision = errors.New("alias name is a command name")
	// ErrInvalidAlias is returned for an empty name or expansion.
	ErrInvalidAlias = errors.New("invalid alias")
	// ErrUnknownCommand is returned when an alias expands to no known command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownAlias is returned when removing an alias that does not exist.
	ErrUnknownAlias = errors.New("unknown alias")
)

// AliasStore persists a user's aliases.
type AliasStore interface {
	Load() (map[string][]string, error)
	Save(map[string][]string) error
}

// Aliases holds a user's aliases. An alias never shadows a command.
type Aliases struct {
	mu       sync.RWMutex
	registry *Registry
	store    AliasStore
	aliases  map[string][]string
	version  uint64
}

// NewAliases loads aliases from store. Stored aliases that collide with
// a registered command are skipped and their names returned.
func NewAliases(registry *Registry, store AliasStore) (*Aliases, []string, error) {
	a := &Aliases{
		registry: registry,
		store:    store,
		aliases:  make(map[string][]string),
	}
	if store == nil {
		return a, nil, nil
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load aliases: %w", err)
	}

	var skipped []string
	for name, tokens := range loaded {
		name = normalizeName(name)
		if name == "" || len(tokens) == 0 || registry.Has(name) {
			skipped = append(skipped, name)
			continue
		}
		a.aliases[name] = append([]string(nil), tokens...)
	}
	sort.Strings(skipped)
	return a, skipped, nil
}

// Define creates or replaces an alias and persists the alias set. It
// changes nothing when name collides with a command or tokens[0] is not
// a command.
func (a *Aliases) Define(name string, tokens []string) error {
	name = normalizeName(name)
	if name == "" || len(tokens) == 0 {
		return ErrInvalidAlias
	}
	if _, rest := a.registry.SplitCommandChar(name); rest != name {
		return fmt.Errorf("%w: %q starts with a command char", ErrInvalidAlias, name)
	}
	if a.registry.Has(name) {
		return fmt.Errorf("%w: %q", ErrAliasCollision, name)
	}
	if !a.registry.Has(tokens[0]) {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, tokens[0])
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.copyLocked()
	next[name] = append([]string(nil), tokens...)
	if err := a.saveLocked(next); err != nil {
		return err
	}
	a.aliases = next
	a.version++
	return nil
}

// Remove deletes an alias and persists the alias set.
func (a *Aliases) Remove(name string) error {
	name = normalizeName(name)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.aliases[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAlias, name)
	}
	next := a.copyLocked()
	delete(next, name)
	if err := a.saveLocked(next); err != nil {
		return err
	}
	a.aliases = next
	a.version++
	return nil
}

// Get returns the expansion of name.
func (a *Aliases) Get(name string) ([]string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	tokens, ok := a.aliases[normalizeName(name)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), tokens...), true
}

// Expand replaces an alias in the first token by its expansion, keeping
// the remaining tokens as extra arguments. Commands are never expanded.
func (a *Aliases) Expand(tokens []string) ([]string, bool) {
	if len(tokens) == 0 || a.registry.Has(tokens[0]) {
		return tokens, false
	}
	expansion, ok := a.Get(tokens[0])
	if !ok {
		return tokens, false
	}
	return append(expansion, tokens[1:]...), true
}

// Names returns the alias names in lexical order.
func (a *Aliases) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.aliases))
	for name := range a.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the alias set.
func (a *Aliases) All() map[string][]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.copyLocked()
}

// Version changes whenever the alias set changes.
func (a *Aliases) Version() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

func (a *Aliases) copyLocked() map[string][]string {
	out := make(map[string][]string, len(a.aliases))
	for k, v := range a.aliases {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (a *Aliases) saveLocked(next map[string][]string) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Save(next); err != nil {
		return fmt.Errorf("failed to save aliases: %w", err)
	}
	return nil
}
