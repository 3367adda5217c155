package main

import (
	"os"

	"github.com/moolen/gameterm/cmd/gameterm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
