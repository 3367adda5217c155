package interpreter

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/moolen/gameterm/internal/clock"
	"github.com/moolen/gameterm/internal/commands"
)

type emitted struct {
	event   string
	payload any
	onReply func(commands.Reply)
}

type fakeTransport struct {
	mu         sync.Mutex
	emits      []emitted
	online     bool
	reconnects int
}

func (f *fakeTransport) Emit(event string, payload any, onReply func(commands.Reply)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emitted{event, payload, onReply})
}

func (f *fakeTransport) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeTransport) Reconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.emits {
		out = append(out, e.event)
	}
	return out
}

func (f *fakeTransport) last(t *testing.T) emitted {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.emits)
	return f.emits[len(f.emits)-1]
}

type message struct {
	lines []string
	opts  commands.OutputOptions
}

type fakeOutput struct {
	mu       sync.Mutex
	messages []message
}

func (f *fakeOutput) Enqueue(lines []string, opts commands.OutputOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message{append([]string(nil), lines...), opts})
}

// text returns every non-hint line in order.
func (f *fakeOutput) text() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.opts.Hint {
			continue
		}
		out = append(out, m.lines...)
	}
	return out
}

func (f *fakeOutput) hints() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, m := range f.messages {
		if m.opts.Hint {
			out = append(out, m.lines)
		}
	}
	return out
}

func (f *fakeOutput) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
}

type fakeInput struct {
	line    string
	masked  bool
	blocked bool
}

func (f *fakeInput) Line() string          { return f.line }
func (f *fakeInput) SetLine(text string)   { f.line = text }
func (f *fakeInput) SetMasked(masked bool) { f.masked = masked }
func (f *fakeInput) SetBlocked(b bool)     { f.blocked = b }

type harness struct {
	*Interpreter
	transport *fakeTransport
	output    *fakeOutput
	input     *fakeInput
	clock     *clock.FakeClock
	registry  *commands.Registry
	metrics   *Metrics
}

const pacing = 100 * time.Millisecond

func newHarness(t *testing.T, level int, defs ...commands.Definition) *harness {
	t.Helper()
	registry := commands.NewRegistry("")
	registry.Register(defs)

	h := &harness{
		transport: &fakeTransport{online: true},
		output:    &fakeOutput{},
		input:     &fakeInput{},
		clock:     clock.Fake(time.Unix(0, 0)),
		registry:  registry,
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	i, err := New(Config{
		Registry:    registry,
		Transport:   h.transport,
		Output:      h.output,
		Input:       h.input,
		User:        commands.User{Name: "bob", AccessLevel: level},
		PacingDelay: pacing,
		Clock:       h.clock,
		Metrics:     h.metrics,
	})
	require.NoError(t, err)
	h.Interpreter = i
	return h
}

// flush handles every message waiting in the inbox, including those
// posted while handling.
func (h *harness) flush() {
	for {
		select {
		case m := <-h.inbox:
			h.handle(m)
		default:
			return
		}
	}
}

// submit submits a line and runs the loop until idle.
func (h *harness) submit(line string) {
	h.Submit(line)
	h.flush()
}

// tick advances past one pacing delay and runs the loop.
func (h *harness) tick() {
	h.clock.Advance(pacing)
	h.flush()
}
