package builtin

import (
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/moolen/gameterm/internal/commands"
)

func helpCommand() commands.Definition {
	return commands.Definition{
		Name:        "help",
		Description: "List commands or describe one",
		Usage:       "help [command]",
		Category:    CategoryClient,
		AccessLevel: 0,
		Visibility:  0,
		Handler:     help,
	}
}

func help(s commands.State, in commands.Input) (commands.State, []commands.Effect) {
	if len(in.Tokens) > 0 {
		return s, []commands.Effect{describe(in, in.Tokens[0])}
	}

	defs := in.Env.Discoverable(in.User)
	var lines []string
	category := ""
	for i, def := range defs {
		if i == 0 || def.Category != category {
			category = def.Category
			if i > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, categoryTitle(category)+":")
		}
		lines = append(lines, fmt.Sprintf("  %-20s %s", usage(def), def.Description))
	}
	if len(lines) == 0 {
		lines = []string{"no commands available"}
	}
	return s, []commands.Effect{commands.Say(lines...)}
}

// describe shows one command. Commands the user may not discover are
// reported like unknown ones.
func describe(in commands.Input, name string) commands.Effect {
	def, ok := in.Env.Lookup(name)
	if !ok || !commands.CanDiscover(in.User, def) {
		return commands.Say(fmt.Sprintf("no help for %q", name))
	}
	lines := []string{fmt.Sprintf("%s: %s", def.Name, def.Description), "usage: " + usage(def)}
	if len(def.Options) > 0 {
		lines = append(lines, "options:")
		for _, key := range sortedKeys(def.Options) {
			lines = append(lines, fmt.Sprintf("  %-18s %s", key, def.Options[key].Description))
		}
	}
	if !commands.CanUse(in.User, def) {
		lines = append(lines, "(not available at your access level)")
	}
	return commands.Say(lines...)
}

func usage(def commands.Definition) string {
	if def.Usage != "" {
		return def.Usage
	}
	return def.Name
}

// categoryTitle capitalizes the first letter of a category name.
func categoryTitle(category string) string {
	if category == "" {
		category = "general"
	}
	r, size := utf8.DecodeRuneInString(category)
	return string(unicode.ToUpper(r)) + category[size:]
}

func sortedKeys(tree commands.OptionTree) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
