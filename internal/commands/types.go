// Package commands holds the command model of the interpreter: command
// definitions, the step/effect contract multi-step commands are written
// against, the registry, access policy, and user aliases.
package commands

// DefaultLevel is returned for the access level and visibility of names
// the registry does not know. An unknown name is neither freely usable
// nor freely discoverable.
const DefaultLevel = 1

// User is the identity commands are checked against.
type User struct {
	Name        string
	AccessLevel int
}

// Option is one node of an option tree.
type Option struct {
	Description string
	Next        OptionTree
}

// OptionTree maps an option token to its description and, optionally,
// the tokens that may follow it. Only the autocompleter reads it.
type OptionTree map[string]Option

// Autocomplete binds a command's arguments to a dynamic candidate
// source, such as "users" or "rooms".
type Autocomplete struct {
	Type string
}

// AbortFunc runs when an active session is aborted, before the session
// resets. It typically restores input state a step changed.
type AbortFunc func(State) []Effect

// Definition describes a command. Definitions are immutable once
// registered, apart from the policy fields ApplyPatch may change.
type Definition struct {
	Name        string
	Description string
	Usage       string
	Category    string

	// AccessLevel is the minimum user level needed to run the command.
	AccessLevel int
	// Visibility is the minimum user level for the command to appear in
	// help and completion.
	Visibility int

	// Handler runs when the command is invoked. For multi-step commands
	// it runs with the fresh session state and usually seeds Data and
	// prints the first prompt.
	Handler Step
	// Steps turns the command into a session. Nil for one-shot commands.
	Steps []Step
	// Prompts optionally holds the prompt of each step, printed when a
	// session is resumed at that step.
	Prompts []string

	Options      OptionTree
	Autocomplete *Autocomplete

	ClearBeforeUse bool
	ClearAfterUse  bool
	AbortFunc      AbortFunc
}

// MultiStep reports whether invoking the command opens a session.
func (d Definition) MultiStep() bool {
	return len(d.Steps) > 0
}

// Patch is the bounded policy update pushed by the remote service. Nil
// fields are left unchanged.
type Patch struct {
	AccessLevel *int
	Visibility  *int
	Category    *string
}

// Env is the read-only view of the interpreter handed to steps.
type Env interface {
	Lookup(name string) (Definition, bool)
	Discoverable(user User) []Definition
	Aliases() map[string][]string
}
