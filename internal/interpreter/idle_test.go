package interpreter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/terminal"
)

func asking(name, event string) commands.Definition {
	return commands.Definition{
		Name: name, AccessLevel: 1, Visibility: 1,
		Handler: func(s commands.State, _ commands.Input) (commands.State, []commands.Effect) {
			return s, []commands.Effect{commands.Emit{
				Event: event,
				OnReply: func(s commands.State, _ commands.Reply) (commands.State, []commands.Effect) {
					return s, []commands.Effect{commands.Say("answered")}
				},
			}}
		},
	}
}

func waitIdleAsync(t *testing.T, i *Interpreter) <-chan error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	result := make(chan error, 1)
	go func() { result <- i.WaitIdle(ctx) }()
	return result
}

func startHarness(t *testing.T, h *harness) {
	t.Helper()
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})
}

func TestWaitIdleWaitsForQueueAndPacing(t *testing.T) {
	var calls [][]string
	h := newHarness(t, 1, recording("a", &calls), recording("b", &calls))
	startHarness(t, h)

	h.Submit("a 1")
	h.Submit("b 2")
	idle := waitIdleAsync(t, h.Interpreter)

	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return len(idle) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	h.clock.Advance(pacing)
	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return len(idle) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	h.clock.Advance(pacing)
	select {
	case err := <-idle:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("interpreter did not become idle")
	}
}

func TestWaitIdleWaitsForOutstandingReply(t *testing.T) {
	h := newHarness(t, 1, asking("who", "who"))
	startHarness(t, h)

	h.Submit("who")
	idle := waitIdleAsync(t, h.Interpreter)

	require.Eventually(t, func() bool { return len(h.transport.events()) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, time.Millisecond)
	h.clock.Advance(pacing)
	assert.Never(t, func() bool { return len(idle) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	h.transport.last(t).onReply(commands.Reply{})
	select {
	case err := <-idle:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("interpreter did not become idle")
	}
	assert.Contains(t, h.output.text(), "answered")
}

func TestWaitIdleTreatsSessionAwaitingInputAsIdle(t *testing.T) {
	h := newHarness(t, 1, register())
	startHarness(t, h)

	h.Submit("register")
	idle := waitIdleAsync(t, h.Interpreter)

	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, time.Millisecond)
	h.clock.Advance(pacing)
	select {
	case err := <-idle:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("interpreter did not become idle")
	}
}

func TestWaitIdleHonoursContext(t *testing.T) {
	h := newHarness(t, 1, asking("who", "who"))
	startHarness(t, h)
	h.Submit("who")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.WaitIdle(ctx), context.DeadlineExceeded)
}

// Lines piped into line mode must all be dispatched even though input
// ends long before the pacing delays have passed.
func TestPipedInputIsFullyDispatched(t *testing.T) {
	registry := commands.NewRegistry("")
	registry.Register([]commands.Definition{emitting("say", "say")})

	transport := &fakeTransport{online: true}
	surface := terminal.NewLineSurface(terminal.LineConfig{
		Input:  strings.NewReader("say 1\nsay 2\nsay 3\n"),
		Output: &bytes.Buffer{},
	})
	i, err := New(Config{
		Registry:    registry,
		Transport:   transport,
		Output:      surface,
		Input:       surface,
		User:        commands.User{Name: "bob", AccessLevel: 1},
		PacingDelay: 10 * time.Millisecond,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, i.Start(ctx))

	require.NoError(t, surface.Run(ctx, terminal.Handlers{
		Submit: i.Submit,
		EndOfInput: func() {
			assert.NoError(t, i.WaitIdle(ctx))
		},
	}))
	require.NoError(t, i.Stop(ctx))

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.emits, 3)
	for n, e := range transport.emits {
		assert.Equal(t, "say", e.event)
		assert.Equal(t, []string{string(rune('1' + n))}, e.payload)
	}
}
