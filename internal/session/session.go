// Package session implements the state machine behind multi-step
// commands. A Session holds at most one active command; steps are pure
// functions and the Session only normalizes the state they return and
// hands their effects back to the caller.
package session

import (
	"github.com/google/uuid"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/logging"
)

// AbortedNotice is printed when a session is aborted.
const AbortedNotice = "command aborted"

// Result is the outcome of a session transition.
type Result struct {
	Effects []commands.Effect
	// Epoch identifies the session run that produced Effects. Replies to
	// an Emit are only applied while the same run is still active. Zero
	// for effects not tied to a session.
	Epoch uint64
}

// Session is the single command session owned by the interpreter. It is
// not safe for concurrent use.
type Session struct {
	def   commands.Definition
	state commands.State
	epoch uint64
	id    string
	log   *logging.Logger

	// OnEnd, if set, is called whenever an active session returns to
	// idle.
	OnEnd func(command string, aborted bool)
}

// New returns an idle session.
func New() *Session {
	return &Session{log: logging.GetLogger("interpreter.session")}
}

// State returns a copy of the current state.
func (s *Session) State() commands.State {
	st := s.state
	st.Data = st.Data.Clone()
	return st
}

// Active reports whether a command session is in progress.
func (s *Session) Active() bool {
	return s.state.Active()
}

// Definition returns the definition of the active command.
func (s *Session) Definition() (commands.Definition, bool) {
	return s.def, s.Active()
}

// Epoch returns the identifier of the current session run.
func (s *Session) Epoch() uint64 {
	return s.epoch
}

// ID returns the id of the active run, or "" when idle.
func (s *Session) ID() string {
	return s.id
}

// Trigger invokes def. A one-shot command runs its handler and the
// session stays idle. A multi-step command opens a session at step 0
// and runs its handler against the fresh state. An already active
// session is aborted first.
func (s *Session) Trigger(def commands.Definition, in commands.Input) Result {
	if !def.MultiStep() {
		if def.Handler == nil {
			return Result{}
		}
		_, effects := def.Handler(commands.State{}, in)
		return Result{Effects: withoutControl(effects)}
	}

	var out []commands.Effect
	if s.Active() {
		s.log.Warn("command %q triggered while %q is active, aborting it", def.Name, s.state.Command)
		out = append(out, s.Abort().Effects...)
	}

	s.epoch++
	s.id = uuid.NewString()
	s.def = def
	s.state = commands.State{
		Command:  def.Name,
		MaxSteps: len(def.Steps),
		Data:     commands.Data{},
	}
	s.log.DebugWithFields("session started",
		logging.Field("command", def.Name),
		logging.Field("session_id", s.id),
		logging.Field("steps", len(def.Steps)))

	if def.Handler == nil {
		out = append(out, s.prompt()...)
		return Result{Effects: out, Epoch: s.epoch}
	}
	next, effects := def.Handler(s.State(), in)
	res := s.apply(next, effects)
	res.Effects = append(out, res.Effects...)
	return res
}

// Advance feeds one line of input to the current step. The reserved
// words "exit" and "abort" abort the session before any step runs.
func (s *Session) Advance(in commands.Input) Result {
	if !s.Active() {
		return Result{}
	}
	if len(in.Tokens) > 0 && commands.IsCancel(in.Tokens[0]) {
		return s.Abort()
	}

	step := s.def.Steps[s.state.StepIndex]
	next, effects := step(s.State(), in)
	return s.apply(next, effects)
}

// Reply continues the session with the reply to an Emit made during
// run epoch. Returns false, changing nothing, when that run is over.
func (s *Session) Reply(epoch uint64, fn commands.ReplyFunc, reply commands.Reply) (Result, bool) {
	if !s.Active() || epoch != s.epoch || fn == nil {
		return Result{}, false
	}
	next, effects := fn(s.State(), reply)
	return s.apply(next, effects), true
}

// Resume moves the active session to step and merges data into the
// session data, then prints that step's prompt if it has one. A step
// outside the command's steps is ignored; resuming never finishes the
// session.
func (s *Session) Resume(step int, data map[string]any) Result {
	if !s.Active() {
		return Result{}
	}
	if step < 0 || step >= s.state.MaxSteps {
		s.log.DebugWithFields("ignoring resume at invalid step",
			logging.Field("command", s.state.Command),
			logging.Field("step", step),
			logging.Field("max_steps", s.state.MaxSteps))
		return Result{}
	}
	next := s.State()
	for k, v := range data {
		next.Data[k] = v
	}
	next.StepIndex = step
	res := s.apply(next, nil)
	if s.Active() {
		res.Effects = append(res.Effects, s.prompt()...)
	}
	return res
}

// Abort runs the command's AbortFunc, if any, then resets the session
// with a notice.
func (s *Session) Abort() Result {
	if !s.Active() {
		return Result{}
	}
	var out []commands.Effect
	if s.def.AbortFunc != nil {
		out = withoutControl(s.def.AbortFunc(s.State()))
	}
	return Result{Effects: append(out, s.Reset(true)...)}
}

// Reset returns the session to idle. When aborted is set an aborted
// notice is printed.
func (s *Session) Reset(aborted bool) []commands.Effect {
	if !s.Active() {
		s.state = commands.State{}
		return nil
	}

	var out []commands.Effect
	if s.def.ClearAfterUse {
		out = append(out, commands.ClearOutput{})
	}
	if aborted {
		out = append(out, commands.Print{
			Lines:   []string{AbortedNotice},
			Options: commands.OutputOptions{Notice: true},
		})
	}

	s.log.DebugWithFields("session ended",
		logging.Field("command", s.state.Command),
		logging.Field("session_id", s.id),
		logging.Field("aborted", aborted))

	command := s.state.Command
	s.def = commands.Definition{}
	s.state = commands.State{}
	s.id = ""
	if s.OnEnd != nil {
		s.OnEnd(command, aborted)
	}
	return out
}

// apply installs the state a step returned and resolves Finish and
// Abort effects.
func (s *Session) apply(next commands.State, effects []commands.Effect) Result {
	epoch := s.epoch

	next.Command = s.state.Command
	next.MaxSteps = s.state.MaxSteps
	if next.Data == nil {
		next.Data = commands.Data{}
	}
	if next.StepIndex < 0 {
		next.StepIndex = 0
	}
	if next.FallbackStep < 0 {
		next.FallbackStep = 0
	}
	if next.FallbackStep >= next.MaxSteps {
		next.FallbackStep = next.MaxSteps - 1
	}

	var finish, abort bool
	out := make([]commands.Effect, 0, len(effects))
	for _, e := range effects {
		switch e.(type) {
		case commands.Finish:
			finish = true
		case commands.Abort:
			abort = true
		default:
			out = append(out, e)
		}
	}

	s.state = next
	switch {
	case abort:
		out = append(out, s.Abort().Effects...)
	case finish || next.StepIndex >= next.MaxSteps:
		out = append(out, s.Reset(false)...)
	}
	return Result{Effects: out, Epoch: epoch}
}

func (s *Session) prompt() []commands.Effect {
	i := s.state.StepIndex
	if i < len(s.def.Prompts) && s.def.Prompts[i] != "" {
		return []commands.Effect{commands.Say(s.def.Prompts[i])}
	}
	return nil
}

// withoutControl drops session control effects from output that is not
// tied to an active session.
func withoutControl(effects []commands.Effect) []commands.Effect {
	out := effects[:0:0]
	for _, e := range effects {
		switch e.(type) {
		case commands.Finish, commands.Abort:
			continue
		}
		out = append(out, e)
	}
	return out
}
