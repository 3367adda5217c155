// Package interpreter routes input lines to the command session or the
// dispatch queue and applies the effects commands produce. All state
// changes happen on one goroutine, the event loop started by Run or
// Start; every other goroutine talks to it through messages.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/gameterm/internal/clock"
	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/complete"
	"github.com/moolen/gameterm/internal/dispatch"
	"github.com/moolen/gameterm/internal/logging"
	"github.com/moolen/gameterm/internal/session"
)

// NotRecognized is printed for unknown commands and for commands the
// user may not run.
const NotRecognized = "command not recognized"

// DefaultInboxSize is the buffer of the event loop's inbound channel.
const DefaultInboxSize = 256

// Config wires an Interpreter.
type Config struct {
	Registry  *commands.Registry
	Aliases   *commands.Aliases
	Completer *complete.Autocompleter

	Transport Transport
	Output    OutputSink
	Input     InputSurface

	User        commands.User
	PacingDelay time.Duration
	Clock       clock.Clock
	Metrics     *Metrics
	Tracer      trace.Tracer
	InboxSize   int
}

type (
	lineMsg     struct{ line string }
	completeMsg struct{}
	replyMsg    struct {
		epoch uint64
		fn    commands.ReplyFunc
		reply commands.Reply
	}
	resumeMsg struct {
		step int
		data map[string]any
	}
	pushMsg struct {
		event   string
		payload json.RawMessage
	}
	funcMsg func()
)

// Interpreter is the command interpreter.
type Interpreter struct {
	cfg        Config
	session    *session.Session
	dispatcher *dispatch.Dispatcher
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *logging.Logger

	inbox chan any
	done  chan struct{}

	userMu sync.RWMutex
	user   commands.User

	ctx         context.Context
	sessionSpan trace.Span

	// loop-owned
	pendingReplies int
	idleWaiters    []chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	exited chan struct{}
}

// New creates an Interpreter. Registry, Transport, Output and Input are
// required.
func New(cfg Config) (*Interpreter, error) {
	if cfg.Registry == nil || cfg.Transport == nil || cfg.Output == nil || cfg.Input == nil {
		return nil, fmt.Errorf("interpreter requires a registry, transport, output and input")
	}
	if cfg.Aliases == nil {
		aliases, _, err := commands.NewAliases(cfg.Registry, nil)
		if err != nil {
			return nil, err
		}
		cfg.Aliases = aliases
	}
	if cfg.Completer == nil {
		completer, err := complete.New(cfg.Registry, cfg.Aliases, 0)
		if err != nil {
			return nil, err
		}
		cfg.Completer = completer
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/moolen/gameterm/internal/interpreter")
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultInboxSize
	}

	i := &Interpreter{
		cfg:     cfg,
		session: session.New(),
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		logger:  logging.GetLogger("interpreter"),
		inbox:   make(chan any, cfg.InboxSize),
		done:    make(chan struct{}),
		user:    cfg.User,
		ctx:     context.Background(),
	}
	i.session.OnEnd = i.sessionEnded
	i.dispatcher = dispatch.New(dispatch.Config{
		Delay:    cfg.PacingDelay,
		Clock:    cfg.Clock,
		Dispatch: i.dispatch,
		Ready:    func() bool { return !i.session.Active() },
		Echo:     func(p commands.Print) { i.cfg.Output.Enqueue(p.Lines, p.Options) },
		Post:     func(f func()) { i.post(funcMsg(f)) },
	})
	return i, nil
}

// Submit hands a line the user entered to the interpreter.
func (i *Interpreter) Submit(line string) {
	i.post(lineMsg{line: line})
}

// RequestCompletion completes the current input line.
func (i *Interpreter) RequestCompletion() {
	i.post(completeMsg{})
}

// Push delivers an unsolicited event from the remote service.
func (i *Interpreter) Push(event string, payload json.RawMessage) {
	i.post(pushMsg{event: event, payload: payload})
}

// Resume moves the active session to step, merging data into its
// state. It is ignored when no session is active.
func (i *Interpreter) Resume(step int, data map[string]any) {
	i.post(resumeMsg{step: step, data: data})
}

// Cancel aborts the active session, as if the user typed "abort". It
// is ignored when no session is active.
func (i *Interpreter) Cancel() {
	i.post(funcMsg(func() {
		if !i.session.Active() {
			return
		}
		i.logger.Debug("cancelling %q", i.session.State().Command)
		i.applyResult(i.session.Abort())
	}))
}

// WaitIdle blocks until everything submitted before the call has run:
// queued commands are dispatched, the last pacing delay has passed and
// no reply is outstanding. A session waiting for typed input counts as
// idle. WaitIdle also returns when the interpreter stops.
func (i *Interpreter) WaitIdle(ctx context.Context) error {
	idle := make(chan struct{})
	i.post(funcMsg(func() {
		i.idleWaiters = append(i.idleWaiters, idle)
	}))

	select {
	case <-idle:
		return nil
	case <-i.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// User returns the current user.
func (i *Interpreter) User() commands.User {
	i.userMu.RLock()
	defer i.userMu.RUnlock()
	return i.user
}

// Run processes messages until ctx is cancelled. It must be called at
// most once.
func (i *Interpreter) Run(ctx context.Context) error {
	i.ctx = ctx
	defer close(i.done)

	i.logger.Info("Interpreter started for user %q (level %d)", i.User().Name, i.User().AccessLevel)
	for {
		select {
		case <-ctx.Done():
			i.shutdown()
			return nil
		case m := <-i.inbox:
			i.handle(m)
			i.notifyIdle()
		}
	}
}

// Start implements lifecycle.Component.
func (i *Interpreter) Start(ctx context.Context) error {
	i.runMu.Lock()
	defer i.runMu.Unlock()
	if i.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	i.cancel = cancel
	i.exited = make(chan struct{})
	go func() {
		defer close(i.exited)
		_ = i.Run(runCtx)
	}()
	return nil
}

// Stop implements lifecycle.Component.
func (i *Interpreter) Stop(ctx context.Context) error {
	i.runMu.Lock()
	defer i.runMu.Unlock()
	if i.cancel == nil {
		return nil
	}
	i.cancel()
	select {
	case <-i.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (i *Interpreter) Name() string {
	return "Interpreter"
}

func (i *Interpreter) post(m any) {
	select {
	case i.inbox <- m:
	case <-i.done:
	}
}

func (i *Interpreter) handle(m any) {
	switch m := m.(type) {
	case lineMsg:
		i.handleLine(m.line)
	case completeMsg:
		i.handleComplete()
	case replyMsg:
		i.handleReply(m)
	case resumeMsg:
		i.handleResume(m)
	case pushMsg:
		i.handlePush(m.event, m.payload)
	case funcMsg:
		m()
	default:
		i.logger.Warn("Ignoring unknown message %T", m)
	}
}

// idle reports whether the loop has nothing left to do without new
// input.
func (i *Interpreter) idle() bool {
	if i.pendingReplies > 0 || i.dispatcher.Draining() {
		return false
	}
	if st := i.session.State(); st.Active() {
		return !st.KeysBlocked
	}
	return i.dispatcher.Len() == 0
}

func (i *Interpreter) notifyIdle() {
	if len(i.idleWaiters) == 0 || !i.idle() {
		return
	}
	for _, ch := range i.idleWaiters {
		close(ch)
	}
	i.idleWaiters = nil
}

func (i *Interpreter) shutdown() {
	if dropped := i.dispatcher.Stop(); dropped > 0 {
		i.logger.Info("Discarded %d queued commands on shutdown", dropped)
	}
	if i.session.Active() {
		i.session.Reset(true)
	}
	i.logger.Info("Interpreter stopped")
}

func (i *Interpreter) setUser(user commands.User) {
	i.userMu.Lock()
	defer i.userMu.Unlock()
	i.user = user
}
