package commands

// OutputOptions qualify a message sent to the output sink.
type OutputOptions struct {
	// Echo marks the user's own input echoed back.
	Echo bool
	// Hint marks completion candidates and similar transient help.
	Hint bool
	// Notice marks interpreter notices such as "command aborted".
	Notice bool
	// Markdown asks sinks that can render markdown to do so.
	Markdown bool
	// Clear empties the output before the lines are shown.
	Clear bool
}

// Effect is an instruction a step hands back to the interpreter.
type Effect interface {
	effect()
}

// Print sends lines to the output sink.
type Print struct {
	Lines   []string
	Options OutputOptions
}

// Emit sends an event to the remote service. When OnReply is set, the
// reply re-enters the interpreter and continues the session that
// emitted it.
type Emit struct {
	Event   string
	Payload any
	OnReply ReplyFunc
}

// Finish ends the active session successfully.
type Finish struct{}

// Abort aborts the active session as if the user typed "abort".
type Abort struct{}

// Reconnect asks the transport to reconnect.
type Reconnect struct{}

// ClearOutput empties the output sink.
type ClearOutput struct{}

// SetLine replaces the pending input line.
type SetLine struct {
	Text string
}

// DefineAlias creates or replaces a user alias.
type DefineAlias struct {
	Name   string
	Tokens []string
}

// RemoveAlias deletes a user alias.
type RemoveAlias struct {
	Name string
}

func (Print) effect()       {}
func (Emit) effect()        {}
func (Finish) effect()      {}
func (Abort) effect()       {}
func (Reconnect) effect()   {}
func (ClearOutput) effect() {}
func (SetLine) effect()     {}
func (DefineAlias) effect() {}
func (RemoveAlias) effect() {}

// Say is shorthand for a plain Print effect.
func Say(lines ...string) Print {
	return Print{Lines: lines}
}
