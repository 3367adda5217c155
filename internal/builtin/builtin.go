// Package builtin provides the engine-level commands every client has,
// independent of the game's own command catalog.
package builtin

import "github.com/moolen/gameterm/internal/commands"

// CategoryClient groups the built-in commands in help output.
const CategoryClient = "client"

// Definitions returns the built-in commands. Register them before the
// catalog so game commands cannot shadow them.
func Definitions() []commands.Definition {
	return []commands.Definition{
		helpCommand(),
		aliasCommand(),
		unaliasCommand(),
		aliasesCommand(),
		clearCommand(),
		reconnectCommand(),
	}
}
