package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moolen/gameterm/internal/commands"
)

func aliasCommand() commands.Definition {
	return commands.Definition{
		Name:        "alias",
		Description: "Define a shortcut for a command",
		Usage:       "alias <name> <command> [args...]",
		Category:    CategoryClient,
		Handler: func(s commands.State, in commands.Input) (commands.State, []commands.Effect) {
			if len(in.Tokens) < 2 {
				return s, []commands.Effect{commands.Say("usage: alias <name> <command> [args...]")}
			}
			return s, []commands.Effect{commands.DefineAlias{Name: in.Tokens[0], Tokens: in.Tokens[1:]}}
		},
	}
}

func unaliasCommand() commands.Definition {
	return commands.Definition{
		Name:        "unalias",
		Description: "Remove a shortcut",
		Usage:       "unalias <name>",
		Category:    CategoryClient,
		Handler: func(s commands.State, in commands.Input) (commands.State, []commands.Effect) {
			if len(in.Tokens) != 1 {
				return s, []commands.Effect{commands.Say("usage: unalias <name>")}
			}
			return s, []commands.Effect{commands.RemoveAlias{Name: in.Tokens[0]}}
		},
	}
}

func aliasesCommand() commands.Definition {
	return commands.Definition{
		Name:        "aliases",
		Description: "List your shortcuts",
		Category:    CategoryClient,
		Handler: func(s commands.State, in commands.Input) (commands.State, []commands.Effect) {
			aliases := in.Env.Aliases()
			if len(aliases) == 0 {
				return s, []commands.Effect{commands.Say("no aliases defined")}
			}
			names := make([]string, 0, len(aliases))
			for name := range aliases {
				names = append(names, name)
			}
			sort.Strings(names)

			lines := make([]string, 0, len(names))
			for _, name := range names {
				lines = append(lines, fmt.Sprintf("  %-12s %s", name, strings.Join(aliases[name], " ")))
			}
			return s, []commands.Effect{commands.Say(lines...)}
		},
	}
}
