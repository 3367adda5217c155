package commands

import "strings"

// Data is the values a session accumulates across steps.
type Data map[string]any

// Clone returns a shallow copy. Never returns nil.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns d[key] as a string, or "" when absent.
func (d Data) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// State is the session value a step reads and returns. The zero State
// is the idle session.
type State struct {
	Command           string
	StepIndex         int
	MaxSteps          int
	Data              Data
	HiddenInput       bool
	KeysBlocked       bool
	FallbackStep      int
	AllowAutoComplete bool
}

// Active reports whether the state belongs to a running session.
func (s State) Active() bool {
	return s.Command != ""
}

// With returns a copy of s with key set in Data.
func (s State) With(key string, value any) State {
	s.Data = s.Data.Clone()
	s.Data[key] = value
	return s
}

// Next moves to the following step.
func (s State) Next() State {
	s.StepIndex++
	return s
}

// Back moves to the previous step, stopping at the first one.
func (s State) Back() State {
	if s.StepIndex > 0 {
		s.StepIndex--
	}
	return s
}

// Goto jumps to step n.
func (s State) Goto(n int) State {
	s.StepIndex = n
	return s
}

// Fallback jumps to the session's fallback step.
func (s State) Fallback() State {
	s.StepIndex = s.FallbackStep
	return s
}

// Masked sets whether the next input line is hidden.
func (s State) Masked(hidden bool) State {
	s.HiddenInput = hidden
	return s
}

// Blocked sets whether input is ignored, typically while a remote reply
// is outstanding.
func (s State) Blocked(blocked bool) State {
	s.KeysBlocked = blocked
	return s
}

// Input is what a step receives besides the session state.
type Input struct {
	// Tokens are the whitespace separated words of the line. For a
	// command's handler they are the parameters after the command name.
	Tokens []string
	// Line is the raw line as typed.
	Line   string
	User   User
	Online bool
	Env    Env
}

// Text returns the tokens joined by single spaces.
func (in Input) Text() string {
	return strings.Join(in.Tokens, " ")
}

// Step is one stage of a command. It returns the next session state and
// the effects the interpreter should apply. Steps never touch the
// outside world directly.
type Step func(State, Input) (State, []Effect)

// Reply is a remote service response delivered to a ReplyFunc.
type Reply struct {
	Data map[string]any
	Err  error
}

// ReplyFunc continues a step once the reply to an Emit arrives.
type ReplyFunc func(State, Reply) (State, []Effect)
