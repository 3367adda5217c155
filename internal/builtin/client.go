package builtin

import "github.com/moolen/gameterm/internal/commands"

func clearCommand() commands.Definition {
	return commands.Definition{
		Name:           "clear",
		Description:    "Clear the screen",
		Category:       CategoryClient,
		ClearBeforeUse: true,
		Handler: func(s commands.State, _ commands.Input) (commands.State, []commands.Effect) {
			return s, nil
		},
	}
}

func reconnectCommand() commands.Definition {
	return commands.Definition{
		Name:        "reconnect",
		Description: "Reconnect to the game server",
		Category:    CategoryClient,
		Handler: func(s commands.State, in commands.Input) (commands.State, []commands.Effect) {
			status := "offline"
			if in.Online {
				status = "online"
			}
			return s, []commands.Effect{
				commands.Say("currently " + status + ", reconnecting..."),
				commands.Reconnect{},
			}
		},
	}
}
