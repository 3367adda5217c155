// Package complete implements command line completion over command
// names, user aliases, per-command option trees, and dynamic candidate
// sources such as the list of online users.
package complete

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/logging"
)

// DefaultCacheSize bounds the number of cached name lists, one per
// access level seen.
const DefaultCacheSize = 32

// Outcomes reported by Result.Outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeAmbiguous = "ambiguous"
	OutcomeNone      = "none"
)

// Result is the outcome of one completion request.
type Result struct {
	// Line is the input line after completion.
	Line string
	// Changed reports whether Line differs from the input.
	Changed bool
	// Hints lists the candidates when more than one matched.
	Hints []string
}

// Outcome classifies the result for metrics.
func (r Result) Outcome() string {
	switch {
	case len(r.Hints) > 0:
		return OutcomeAmbiguous
	case r.Changed:
		return OutcomeCompleted
	default:
		return OutcomeNone
	}
}

type cacheKey struct {
	level           int
	registryVersion uint64
	aliasVersion    uint64
}

// Autocompleter completes partial input lines. It only computes the new
// line; applying it to the input surface is up to the caller.
type Autocompleter struct {
	registry *commands.Registry
	aliases  *commands.Aliases

	mu      sync.RWMutex
	sources map[string][]string

	names  *lru.Cache[cacheKey, []string]
	logger *logging.Logger
}

// New creates an Autocompleter. aliases may be nil.
func New(registry *commands.Registry, aliases *commands.Aliases, cacheSize int) (*Autocompleter, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create name cache: %w", err)
	}
	return &Autocompleter{
		registry: registry,
		aliases:  aliases,
		sources:  make(map[string][]string),
		names:    cache,
		logger:   logging.GetLogger("complete"),
	}, nil
}

// SetSource replaces the candidates of a dynamic source.
func (a *Autocompleter) SetSource(kind string, values []string) {
	sorted := dedupe(values)

	a.mu.Lock()
	a.sources[kind] = sorted
	a.mu.Unlock()

	a.logger.Debug("source %q updated with %d values", kind, len(sorted))
}

// Source returns the candidates of a dynamic source.
func (a *Autocompleter) Source(kind string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.sources[kind]...)
}

// Complete completes line for user. A single token without trailing
// space is matched against command and alias names; anything after a
// known command walks its option tree.
func (a *Autocompleter) Complete(line string, user commands.User) Result {
	tokens := commands.Tokenize(line)
	trailing := endsWithSpace(line)

	if len(tokens) == 0 {
		return a.completeName(line, "", user)
	}
	if len(tokens) == 1 && !trailing {
		return a.completeName(line, tokens[0], user)
	}
	return a.completeOptions(line, tokens, trailing, user)
}

// CompleteSession completes a line typed into an active session. Only
// sessions that allow completion and whose command names a candidate
// source are completed.
func (a *Autocompleter) CompleteSession(line string, state commands.State) Result {
	unchanged := Result{Line: line}
	if !state.Active() || !state.AllowAutoComplete {
		return unchanged
	}
	def, ok := a.registry.Lookup(state.Command)
	if !ok || def.Autocomplete == nil {
		return unchanged
	}
	partial := lastPartial(line)
	return resolve(line, line[:len(line)-len(partial)], partial, matching(a.Source(def.Autocomplete.Type), partial))
}

func (a *Autocompleter) completeName(line, token string, user commands.User) Result {
	prefix, partial := a.registry.SplitCommandChar(token)
	partial = strings.ToLower(partial)
	base := line[:len(line)-len(token)] + prefix

	return resolve(line, base, partial, matching(a.candidateNames(user), partial))
}

func (a *Autocompleter) completeOptions(line string, tokens []string, trailing bool, user commands.User) Result {
	unchanged := Result{Line: line}

	def, path, ok := a.resolveCommand(tokens[0])
	if !ok || !commands.CanUse(user, def) || !commands.CanDiscover(user, def) {
		return unchanged
	}

	partial := ""
	typed := tokens[1:]
	if !trailing {
		partial = tokens[len(tokens)-1]
		typed = tokens[1 : len(tokens)-1]
	}
	path = append(path, typed...)

	node := def.Options
	for _, tok := range path {
		if len(node) == 0 {
			break
		}
		opt, ok := node[tok]
		if !ok {
			return unchanged
		}
		node = opt.Next
	}

	var candidates []string
	if len(node) > 0 {
		for key := range node {
			candidates = append(candidates, key)
		}
		sort.Strings(candidates)
	} else if def.Autocomplete != nil {
		candidates = a.Source(def.Autocomplete.Type)
	}

	return resolve(line, line[:len(line)-len(partial)], partial, matching(candidates, partial))
}

// resolveCommand maps the first token to a command. An alias resolves
// to its base command, and its extra tokens lead the option path.
func (a *Autocompleter) resolveCommand(token string) (commands.Definition, []string, bool) {
	if def, ok := a.registry.Lookup(token); ok {
		return def, nil, true
	}
	if a.aliases == nil {
		return commands.Definition{}, nil, false
	}
	expansion, ok := a.aliases.Get(token)
	if !ok {
		return commands.Definition{}, nil, false
	}
	def, ok := a.registry.Lookup(expansion[0])
	if !ok {
		return commands.Definition{}, nil, false
	}
	return def, expansion[1:], true
}

// candidateNames returns the sorted command and alias names user may
// complete. Commands must be usable and discoverable; aliases must
// expand to a command the user may run.
func (a *Autocompleter) candidateNames(user commands.User) []string {
	key := cacheKey{level: user.AccessLevel, registryVersion: a.registry.Version()}
	if a.aliases != nil {
		key.aliasVersion = a.aliases.Version()
	}
	if names, ok := a.names.Get(key); ok {
		return names
	}

	var names []string
	for _, def := range a.registry.All() {
		if commands.CanUse(user, def) && commands.CanDiscover(user, def) {
			names = append(names, def.Name)
		}
	}
	if a.aliases != nil {
		for name, expansion := range a.aliases.All() {
			if def, ok := a.registry.Lookup(expansion[0]); ok && commands.CanUse(user, def) {
				names = append(names, name)
			}
		}
	}
	names = dedupe(names)

	a.names.Add(key, names)
	return names
}

// resolve applies the matching rule: one candidate replaces the partial
// token and adds a space; several extend it by their longest common
// extension and are returned as hints; none leave the line alone.
func resolve(line, base, partial string, candidates []string) Result {
	var out string
	var hints []string

	switch len(candidates) {
	case 0:
		return Result{Line: line}
	case 1:
		out = base + candidates[0] + " "
	default:
		out = base + partial + commonExtension(candidates, len(partial))
		hints = append([]string(nil), candidates...)
	}
	return Result{Line: out, Changed: out != line, Hints: hints}
}

func matching(candidates []string, partial string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, partial) {
			out = append(out, c)
		}
	}
	return out
}

// commonExtension returns the characters every candidate shares beyond
// the first n.
func commonExtension(candidates []string, n int) string {
	common := candidates[0]
	for _, c := range candidates[1:] {
		i := 0
		for i < len(common) && i < len(c) && common[i] == c[i] {
			i++
		}
		common = common[:i]
	}
	for !utf8.ValidString(common) {
		common = common[:len(common)-1]
	}
	if len(common) <= n {
		return ""
	}
	return common[n:]
}

func lastPartial(line string) string {
	if endsWithSpace(line) {
		return ""
	}
	tokens := commands.Tokenize(line)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func endsWithSpace(line string) bool {
	return line != "" && strings.TrimRight(line, " \t") != line
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
