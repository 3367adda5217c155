// Package terminal provides the input and output surfaces of the
// client: a full-screen Bubble Tea UI and a plain line-mode surface
// for pipes and dumb terminals.
package terminal

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/logging"
)

// outboxSize buffers messages sent to the program while it is busy.
const outboxSize = 256

// TUI is the full-screen surface. It implements the interpreter's
// OutputSink, InputSurface and Blocker ports; all of its methods are
// safe to call from any goroutine.
type TUI struct {
	model  *Model
	outbox chan tea.Msg
	closed chan struct{}
	opts   []tea.ProgramOption
	logger *logging.Logger
}

// TUIConfig configures a TUI.
type TUIConfig struct {
	Title    string
	Trigger  string
	Handlers Handlers

	// Input and Output default to the process's stdin and stdout.
	Input  io.Reader
	Output io.Writer
}

// NewTUI creates the full-screen surface.
func NewTUI(cfg TUIConfig) *TUI {
	if cfg.Title == "" {
		cfg.Title = "GAMETERM"
	}
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}

	return &TUI{
		model:  NewModel(cfg.Title, cfg.Trigger, cfg.Handlers),
		outbox: make(chan tea.Msg, outboxSize),
		closed: make(chan struct{}),
		opts:   opts,
		logger: logging.GetLogger("terminal"),
	}
}

// SetHandlers replaces the callbacks. Call it before Run.
func (t *TUI) SetHandlers(h Handlers) {
	t.model.handlers = h
}

// Run shows the UI until the user quits or ctx is cancelled. It must
// be called at most once.
func (t *TUI) Run(ctx context.Context) error {
	program := tea.NewProgram(t.model, append(t.opts, tea.WithContext(ctx))...)

	defer close(t.closed)

	forwardCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		for {
			select {
			case <-forwardCtx.Done():
				return
			case msg := <-t.outbox:
				program.Send(msg)
			}
		}
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	t.logger.Debug("TUI closed")
	return nil
}

func (t *TUI) send(msg tea.Msg) {
	select {
	case t.outbox <- msg:
	case <-t.closed:
	}
}

// Enqueue implements the OutputSink port.
func (t *TUI) Enqueue(lines []string, opts commands.OutputOptions) {
	t.send(outputMsg{lines: append([]string(nil), lines...), opts: opts})
}

// Line implements the InputSurface port.
func (t *TUI) Line() string {
	return t.model.line.get()
}

// SetLine implements the InputSurface port.
func (t *TUI) SetLine(text string) {
	t.model.line.set(text)
	t.send(setLineMsg{text: text})
}

// SetMasked implements the InputSurface port.
func (t *TUI) SetMasked(masked bool) {
	t.send(maskMsg{masked: masked})
}

// SetBlocked implements the interpreter's Blocker port.
func (t *TUI) SetBlocked(blocked bool) {
	t.send(blockMsg{blocked: blocked})
}

// SetOnline updates the connection indicator.
func (t *TUI) SetOnline(online bool) {
	t.send(statusMsg{online: online})
}

// IsTerminal returns true if stdin and stdout are terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
