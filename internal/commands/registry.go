package commands

import (
	"sort"
	"strings"
	"sync"
)

// DefaultCommandChars are the prefixes stripped from a command token
// before lookup ("-help" and "/help" both resolve to "help").
const DefaultCommandChars = "-/"

// Registry maps command names to definitions in registration order.
// The first definition registered for a name wins.
type Registry struct {
	mu           sync.RWMutex
	defs         map[string]*Definition
	order        []string
	commandChars string
	version      uint64
}

// NewRegistry creates an empty registry. An empty commandChars selects
// DefaultCommandChars.
func NewRegistry(commandChars string) *Registry {
	if commandChars == "" {
		commandChars = DefaultCommandChars
	}
	return &Registry{
		defs:         make(map[string]*Definition),
		commandChars: commandChars,
	}
}

// Register merges collections into the registry. On a name collision
// the definition seen first is kept and the later one is dropped; the
// names of dropped definitions are returned.
func (r *Registry) Register(collections ...[]Definition) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for _, collection := range collections {
		for _, def := range collection {
			name := normalizeName(def.Name)
			if name == "" {
				continue
			}
			if _, exists := r.defs[name]; exists {
				dropped = append(dropped, name)
				continue
			}
			def.Name = name
			stored := def
			r.defs[name] = &stored
			r.order = append(r.order, name)
		}
	}
	r.version++
	return dropped
}

// CommandChars returns the command-char prefix set.
func (r *Registry) CommandChars() string {
	return r.commandChars
}

// SplitCommandChar separates a leading command char from token.
func (r *Registry) SplitCommandChar(token string) (prefix, rest string) {
	if token != "" && strings.ContainsRune(r.commandChars, rune(token[0])) {
		return token[:1], token[1:]
	}
	return "", token
}

// Lookup resolves a command token, ignoring a leading command char and
// case. The returned definition is a copy.
func (r *Registry) Lookup(token string) (Definition, bool) {
	_, name := r.SplitCommandChar(token)
	name = normalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return Definition{}, false
	}
	return *def, true
}

// Has reports whether name is a registered command.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// AccessLevel returns the access level of name, or DefaultLevel when
// the name is unknown.
func (r *Registry) AccessLevel(name string) int {
	if def, ok := r.Lookup(name); ok {
		return def.AccessLevel
	}
	return DefaultLevel
}

// Visibility returns the visibility of name, or DefaultLevel when the
// name is unknown.
func (r *Registry) Visibility(name string) int {
	if def, ok := r.Lookup(name); ok {
		return def.Visibility
	}
	return DefaultLevel
}

// ApplyPatch updates the policy fields of a registered command in
// place. Returns false, changing nothing, when name is unknown.
func (r *Registry) ApplyPatch(name string, patch Patch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[normalizeName(name)]
	if !ok {
		return false
	}
	if patch.AccessLevel != nil {
		def.AccessLevel = *patch.AccessLevel
	}
	if patch.Visibility != nil {
		def.Visibility = *patch.Visibility
	}
	if patch.Category != nil {
		def.Category = *patch.Category
	}
	r.version++
	return true
}

// Names returns all command names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// All returns copies of all definitions in registration order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.defs[name])
	}
	return out
}

// Discoverable returns the definitions listed to user, sorted by
// category then name. Listed commands are not necessarily usable.
func (r *Registry) Discoverable(user User) []Definition {
	var out []Definition
	for _, def := range r.All() {
		if CanDiscover(user, def) {
			out = append(out, def)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Version changes whenever definitions are added or patched.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
