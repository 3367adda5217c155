// Package dispatch paces top-level command invocations. Entries are
// dispatched one at a time in submission order, with a fixed delay
// between consecutive dispatches, and only while no command session is
// active.
package dispatch

import (
	"time"

	"github.com/moolen/gameterm/internal/clock"
	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/logging"
)

// DefaultDelay is the pacing delay used when Config.Delay is zero.
const DefaultDelay = 250 * time.Millisecond

// Entry is one queued command invocation.
type Entry struct {
	Command string
	Params  []string
	// Echo is shown just before the entry is dispatched.
	Echo *commands.Print
}

// Config wires a Dispatcher to the interpreter.
type Config struct {
	Delay time.Duration
	Clock clock.Clock

	// Dispatch runs an entry. It must return once the synchronous part
	// of the command is done.
	Dispatch func(Entry)
	// Ready reports whether an entry may be dispatched now, i.e. no
	// session is active. Nil means always ready.
	Ready func() bool
	// Echo outputs an entry's echo message.
	Echo func(commands.Print)
	// Post runs f on the goroutine that owns the Dispatcher. Timer
	// callbacks go through it. Nil runs f directly, which is only safe
	// with a clock that fires on the caller's goroutine.
	Post func(f func())
}

// Dispatcher is a paced FIFO queue. It is not safe for concurrent use;
// all calls must come from the goroutine Config.Post delivers to.
type Dispatcher struct {
	cfg      Config
	queue    []Entry
	draining bool
	timer    clock.Timer
	log      *logging.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Post == nil {
		cfg.Post = func(f func()) { f() }
	}
	return &Dispatcher{cfg: cfg, log: logging.GetLogger("dispatch")}
}

// Enqueue appends an entry. It does not dispatch; call Drain.
func (d *Dispatcher) Enqueue(e Entry) {
	d.queue = append(d.queue, e)
	d.log.Debug("queued %q (%d pending)", e.Command, len(d.queue))
}

// Drain dispatches the head of the queue unless a dispatch is still
// within its pacing delay, the queue is empty, or the interpreter is
// not ready. The next entry follows automatically after the delay.
func (d *Dispatcher) Drain() {
	if d.draining || len(d.queue) == 0 {
		return
	}
	if d.cfg.Ready != nil && !d.cfg.Ready() {
		d.log.Debug("session active, holding %d queued entries", len(d.queue))
		return
	}

	e := d.queue[0]
	d.queue[0] = Entry{}
	d.queue = d.queue[1:]
	d.draining = true

	if e.Echo != nil && d.cfg.Echo != nil {
		d.cfg.Echo(*e.Echo)
	}
	d.cfg.Dispatch(e)

	d.timer = d.cfg.Clock.AfterFunc(d.cfg.Delay, func() {
		d.cfg.Post(d.tick)
	})
}

func (d *Dispatcher) tick() {
	d.draining = false
	d.timer = nil
	d.Drain()
}

// Len returns the number of entries waiting.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Draining reports whether a dispatch is within its pacing delay.
func (d *Dispatcher) Draining() bool {
	return d.draining
}

// Stop cancels a pending pacing timer and discards queued entries.
// Returns the number of entries discarded.
func (d *Dispatcher) Stop() int {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	n := len(d.queue)
	d.queue = nil
	d.draining = false
	return n
}
