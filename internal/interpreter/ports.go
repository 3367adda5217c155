package interpreter

import "github.com/moolen/gameterm/internal/commands"

// Transport is the remote service connection.
type Transport interface {
	// Emit sends an event. When onReply is non-nil exactly one reply is
	// delivered to it, possibly from another goroutine.
	Emit(event string, payload any, onReply func(commands.Reply))
	Online() bool
	// Reconnect starts a reconnect and returns without waiting for it.
	Reconnect()
}

// OutputSink shows messages to the user in submission order.
type OutputSink interface {
	Enqueue(lines []string, opts commands.OutputOptions)
}

// InputSurface is the line the user is typing.
type InputSurface interface {
	Line() string
	SetLine(text string)
	SetMasked(masked bool)
}

// Blocker is implemented by input surfaces that can refuse keystrokes
// while a session waits on a remote reply.
type Blocker interface {
	SetBlocked(blocked bool)
}
