package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/complete"
	"github.com/moolen/gameterm/internal/dispatch"
	"github.com/moolen/gameterm/internal/logging"
	"github.com/moolen/gameterm/internal/session"
)

func (i *Interpreter) handleLine(line string) {
	if i.session.Active() {
		i.handleSessionLine(line)
		return
	}

	tokens := commands.Tokenize(line)
	if len(tokens) == 0 {
		return
	}

	expanded, aliased := i.cfg.Aliases.Expand(tokens)
	user := i.User()
	def, ok := i.cfg.Registry.Lookup(expanded[0])
	if !ok || !commands.CanUse(user, def) {
		i.reject(line, expanded[0], ok, def, user)
		return
	}
	if aliased {
		i.logger.Debug("alias %q expanded to %q", tokens[0], strings.Join(expanded, " "))
	}

	i.dispatcher.Enqueue(dispatch.Entry{
		Command: def.Name,
		Params:  expanded[1:],
		Echo: &commands.Print{
			Lines:   []string{line},
			Options: commands.OutputOptions{Echo: true},
		},
	})
	i.metrics.QueueDepth.Set(float64(i.dispatcher.Len()))
	i.dispatcher.Drain()
}

func (i *Interpreter) handleSessionLine(line string) {
	st := i.session.State()
	tokens := commands.Tokenize(line)
	if st.KeysBlocked && (len(tokens) == 0 || !commands.IsCancel(tokens[0])) {
		i.logger.Debug("input blocked for %q, dropping line", st.Command)
		return
	}

	if st.HiddenInput {
		i.logger.Debug("masked input for %q step %d", st.Command, st.StepIndex)
	} else {
		i.logger.Debug("input for %q step %d: %q", st.Command, st.StepIndex, line)
		i.cfg.Output.Enqueue([]string{line}, commands.OutputOptions{Echo: true})
	}

	res := i.session.Advance(i.input(tokens, line))
	i.applyResult(res)
}

// reject reports a line that will not be dispatched. Unknown and
// denied commands look the same to the user.
func (i *Interpreter) reject(line, name string, known bool, def commands.Definition, user commands.User) {
	reason := "unknown"
	if known {
		reason = "denied"
		i.logger.DebugWithFields("access denied",
			logging.Field("command", def.Name),
			logging.Field("required_level", def.AccessLevel),
			logging.Field("user_level", user.AccessLevel))
	} else {
		i.logger.Debug("unknown command %q", name)
	}
	i.metrics.RejectedTotal.WithLabelValues(reason).Inc()

	i.cfg.Output.Enqueue([]string{line}, commands.OutputOptions{Echo: true})
	i.cfg.Output.Enqueue([]string{NotRecognized}, commands.OutputOptions{Notice: true})
}

// dispatch runs a queued entry. Access is checked again since policy
// may have changed while the entry was queued.
func (i *Interpreter) dispatch(e dispatch.Entry) {
	defer i.metrics.QueueDepth.Set(float64(i.dispatcher.Len()))

	user := i.User()
	def, ok := i.cfg.Registry.Lookup(e.Command)
	if !ok || !commands.CanUse(user, def) {
		i.logger.Debug("command %q no longer available at dispatch", e.Command)
		i.metrics.RejectedTotal.WithLabelValues("denied").Inc()
		i.cfg.Output.Enqueue([]string{NotRecognized}, commands.OutputOptions{Notice: true})
		return
	}

	ctx, span := i.tracer.Start(i.ctx, "dispatch "+def.Name,
		trace.WithAttributes(
			attribute.String("command", def.Name),
			attribute.Int("params", len(e.Params)),
			attribute.Bool("multi_step", def.MultiStep()),
		))
	defer span.End()

	i.logger.WithContext(ctx).Debug("dispatching %q with %d params", def.Name, len(e.Params))
	i.metrics.DispatchedTotal.WithLabelValues(def.Name).Inc()

	if def.ClearBeforeUse {
		i.cfg.Output.Enqueue(nil, commands.OutputOptions{Clear: true})
	}

	res := i.session.Trigger(def, i.input(e.Params, strings.Join(e.Params, " ")))
	if def.MultiStep() && i.session.Active() {
		_, i.sessionSpan = i.tracer.Start(ctx, "session "+def.Name,
			trace.WithAttributes(
				attribute.String("command", def.Name),
				attribute.String("session_id", i.session.ID()),
			))
		i.metrics.SessionsActive.Set(1)
	}
	i.applyResult(res)
}

func (i *Interpreter) handleReply(m replyMsg) {
	i.pendingReplies--
	if m.epoch == 0 {
		_, effects := m.fn(commands.State{}, m.reply)
		i.apply(effects, 0)
		return
	}

	res, ok := i.session.Reply(m.epoch, m.fn, m.reply)
	if !ok {
		i.logger.Debug("dropping reply for ended session run %d", m.epoch)
		i.metrics.RepliesDroppedTotal.Inc()
		return
	}
	i.applyResult(res)
}

func (i *Interpreter) handleResume(m resumeMsg) {
	if !i.session.Active() {
		i.logger.Debug("resume at step %d without active session", m.step)
		return
	}
	i.applyResult(i.session.Resume(m.step, m.data))
}

func (i *Interpreter) handleComplete() {
	line := i.cfg.Input.Line()
	st := i.session.State()

	var res complete.Result
	switch {
	case st.Active() && st.HiddenInput:
		return
	case st.Active():
		res = i.cfg.Completer.CompleteSession(line, st)
	default:
		res = i.cfg.Completer.Complete(line, i.User())
	}

	i.metrics.CompletionsTotal.WithLabelValues(res.Outcome()).Inc()
	if res.Changed {
		i.cfg.Input.SetLine(res.Line)
	}
	if len(res.Hints) > 0 {
		i.cfg.Output.Enqueue(res.Hints, commands.OutputOptions{Hint: true})
	}
}

func (i *Interpreter) applyResult(res session.Result) {
	i.apply(res.Effects, res.Epoch)
	i.afterTransition()
}

// apply carries out effects in order.
func (i *Interpreter) apply(effects []commands.Effect, epoch uint64) {
	for _, e := range effects {
		switch e := e.(type) {
		case commands.Print:
			i.cfg.Output.Enqueue(e.Lines, e.Options)
		case commands.ClearOutput:
			i.cfg.Output.Enqueue(nil, commands.OutputOptions{Clear: true})
		case commands.Emit:
			i.emit(e, epoch)
		case commands.Reconnect:
			i.cfg.Transport.Reconnect()
		case commands.SetLine:
			i.cfg.Input.SetLine(e.Text)
		case commands.DefineAlias:
			i.defineAlias(e)
		case commands.RemoveAlias:
			i.removeAlias(e)
		case commands.Finish, commands.Abort:
			// consumed by the session
		default:
			i.logger.Warn("Ignoring unknown effect %T", e)
		}
	}
}

func (i *Interpreter) emit(e commands.Emit, epoch uint64) {
	var onReply func(commands.Reply)
	if e.OnReply != nil {
		fn := e.OnReply
		onReply = func(r commands.Reply) {
			i.post(replyMsg{epoch: epoch, fn: fn, reply: r})
		}
		i.pendingReplies++
	}
	i.logger.Debug("emitting %q", e.Event)
	i.cfg.Transport.Emit(e.Event, e.Payload, onReply)
}

func (i *Interpreter) defineAlias(e commands.DefineAlias) {
	err := i.cfg.Aliases.Define(e.Name, e.Tokens)
	switch {
	case err == nil:
		i.say(fmt.Sprintf("alias %s = %s", strings.ToLower(e.Name), strings.Join(e.Tokens, " ")))
	case errors.Is(err, commands.ErrAliasCollision):
		i.say(fmt.Sprintf("%q is a command and cannot be an alias", e.Name))
	case errors.Is(err, commands.ErrUnknownCommand):
		i.say(fmt.Sprintf("%q is not a command", firstOr(e.Tokens, "")))
	case errors.Is(err, commands.ErrInvalidAlias):
		i.say("usage: alias <name> <command> [args...]")
	default:
		i.logger.ErrorWithErr("Failed to define alias", err)
		i.say("could not save alias")
	}
}

func (i *Interpreter) removeAlias(e commands.RemoveAlias) {
	err := i.cfg.Aliases.Remove(e.Name)
	switch {
	case err == nil:
		i.say(fmt.Sprintf("alias %s removed", strings.ToLower(e.Name)))
	case errors.Is(err, commands.ErrUnknownAlias):
		i.say(fmt.Sprintf("no alias named %q", e.Name))
	default:
		i.logger.ErrorWithErr("Failed to remove alias", err)
		i.say("could not save aliases")
	}
}

// afterTransition syncs the input surface with the session and lets the
// queue continue once the session is idle.
func (i *Interpreter) afterTransition() {
	st := i.session.State()
	i.cfg.Input.SetMasked(st.HiddenInput)
	if b, ok := i.cfg.Input.(Blocker); ok {
		b.SetBlocked(st.KeysBlocked)
	}
	if !st.Active() {
		i.dispatcher.Drain()
	}
	i.metrics.QueueDepth.Set(float64(i.dispatcher.Len()))
}

func (i *Interpreter) sessionEnded(command string, aborted bool) {
	if aborted {
		i.metrics.SessionsAbortedTotal.Inc()
	}
	i.metrics.SessionsActive.Set(0)
	if i.sessionSpan != nil {
		i.sessionSpan.SetAttributes(attribute.Bool("aborted", aborted))
		if aborted {
			i.sessionSpan.SetStatus(codes.Error, "aborted")
		}
		i.sessionSpan.End()
		i.sessionSpan = nil
	}
	i.logger.Debug("session %q ended (aborted=%t)", command, aborted)
}

func (i *Interpreter) input(tokens []string, line string) commands.Input {
	return commands.Input{
		Tokens: tokens,
		Line:   line,
		User:   i.User(),
		Online: i.cfg.Transport.Online(),
		Env:    i,
	}
}

func (i *Interpreter) say(lines ...string) {
	i.cfg.Output.Enqueue(lines, commands.OutputOptions{})
}

// Lookup implements commands.Env.
func (i *Interpreter) Lookup(name string) (commands.Definition, bool) {
	return i.cfg.Registry.Lookup(name)
}

// Discoverable implements commands.Env.
func (i *Interpreter) Discoverable(user commands.User) []commands.Definition {
	return i.cfg.Registry.Discoverable(user)
}

// Aliases implements commands.Env.
func (i *Interpreter) Aliases() map[string][]string {
	return i.cfg.Aliases.All()
}

func firstOr(tokens []string, fallback string) string {
	if len(tokens) == 0 {
		return fallback
	}
	return tokens[0]
}
