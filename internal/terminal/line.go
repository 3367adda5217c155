package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/config"
	"github.com/moolen/gameterm/internal/logging"
)

// escTimeout separates a lone Esc key from the start of an escape
// sequence such as an arrow key.
const escTimeout = 25 * time.Millisecond

const (
	keyCtrlC     = 0x03
	keyCtrlD     = 0x04
	keyBackspace = 0x08
	keyTab       = '\t'
	keyEsc       = 0x1b
	keyDelete    = 0x7f
)

// LineConfig configures a LineSurface.
type LineConfig struct {
	// Input and Output default to the process's stdin and stdout.
	Input   io.Reader
	Output  io.Writer
	Trigger string
}

// LineSurface is a line editor for plain terminals and pipes. When its
// input is a terminal it switches it to raw mode and echoes keystrokes
// itself, so that masking applies to each key as it is typed.
// It implements the interpreter's OutputSink and InputSurface ports.
type LineSurface struct {
	in          io.Reader
	out         io.Writer
	fd          int
	interactive bool
	trigger     string
	render      *renderer
	logger      *logging.Logger

	mu     sync.Mutex
	buf    []rune
	masked bool

	// read loop state
	lastCR bool
	esc    escState
}

type escState int

const (
	escNone escState = iota
	escPending
	escSequence
)

// NewLineSurface creates a line-mode surface.
func NewLineSurface(cfg LineConfig) *LineSurface {
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	s := &LineSurface{
		in:      cfg.Input,
		out:     cfg.Output,
		fd:      -1,
		trigger: cfg.Trigger,
		logger:  logging.GetLogger("terminal"),
	}
	if f, ok := cfg.Input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.fd = int(f.Fd())
		s.interactive = true
	}
	s.render = newRenderer(s.interactive, 80)
	if s.interactive {
		if w, _, err := term.GetSize(s.fd); err == nil {
			s.render.setWidth(w)
		}
	}
	return s
}

// Run reads keys until end of input, Ctrl+C or Ctrl+D on an empty
// line, or until ctx is cancelled.
func (s *LineSurface) Run(ctx context.Context, h Handlers) error {
	if s.interactive {
		state, err := term.MakeRaw(s.fd)
		if err != nil {
			return fmt.Errorf("failed to switch terminal to raw mode: %w", err)
		}
		defer func() {
			if err := term.Restore(s.fd, state); err != nil {
				s.logger.Warn("Failed to restore terminal: %v", err)
			}
		}()
		s.redraw()
	}

	keys := make(chan rune)
	readErr := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(s.in)
		for {
			r, _, err := reader.ReadRune()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case keys <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	var escTimer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-escTimer:
			escTimer = nil
			if s.esc == escPending {
				s.esc = escNone
				s.cancel(h)
			}

		case err := <-readErr:
			if s.esc == escPending {
				s.cancel(h)
			}
			if line := s.take(); line != "" && h.Submit != nil {
				h.Submit(line)
			}
			if errors.Is(err, io.EOF) {
				if h.EndOfInput != nil {
					h.EndOfInput()
				}
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)

		case r := <-keys:
			if r == keyEsc {
				s.esc = escPending
				escTimer = time.After(escTimeout)
				continue
			}
			if quit := s.key(r, h); quit {
				return nil
			}
		}
	}
}

// key handles one rune. It returns true when the user asked to quit.
func (s *LineSurface) key(r rune, h Handlers) bool {
	switch s.esc {
	case escPending:
		if r == '[' || r == 'O' {
			s.esc = escSequence
			return false
		}
		s.esc = escNone
		s.cancel(h)
	case escSequence:
		if r >= 0x40 && r <= 0x7e {
			s.esc = escNone
		}
		return false
	}

	if r == '\n' && s.lastCR {
		s.lastCR = false
		return false
	}
	s.lastCR = r == '\r'

	switch r {
	case '\r', '\n':
		line := s.take()
		s.echo("\r\n")
		if h.Submit != nil {
			h.Submit(line)
		}
		s.redraw()

	case keyCtrlC:
		s.echo("\r\n")
		return true

	case keyCtrlD:
		if s.Line() == "" {
			s.echo("\r\n")
			return true
		}

	case keyBackspace, keyDelete:
		s.mu.Lock()
		if n := len(s.buf); n > 0 {
			s.buf = s.buf[:n-1]
			if !s.masked {
				s.echoLocked("\b \b")
			}
		}
		s.mu.Unlock()

	case keyTab:
		if s.trigger == config.TriggerTab {
			s.complete(h)
		}

	default:
		if r < 0x20 {
			return false
		}
		s.mu.Lock()
		s.buf = append(s.buf, r)
		if !s.masked {
			s.echoLocked(string(r))
		}
		value := string(s.buf)
		s.mu.Unlock()

		if r == ' ' {
			if stripped, ok := completionRequest(s.trigger, value); ok {
				s.SetLine(stripped)
				s.complete(h)
			}
		}
	}
	return false
}

func (s *LineSurface) complete(h Handlers) {
	s.mu.Lock()
	masked := s.masked
	s.mu.Unlock()
	if !masked && h.Complete != nil {
		h.Complete()
	}
}

func (s *LineSurface) cancel(h Handlers) {
	if h.Cancel != nil {
		h.Cancel()
	}
}

// take empties the line buffer and returns its content.
func (s *LineSurface) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := string(s.buf)
	s.buf = s.buf[:0]
	return line
}

// Enqueue implements the OutputSink port.
func (s *LineSurface) Enqueue(lines []string, opts commands.OutputOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interactive {
		// the typed line is already on screen
		if opts.Echo {
			return
		}
		s.writeLocked("\r\033[K")
		if opts.Clear {
			s.writeLocked("\033[H\033[2J")
		}
	}

	var out []string
	switch {
	case opts.Hint:
		out = []string{"  " + strings.Join(lines, "  ")}
	case len(lines) > 0:
		out = s.render.render(lines, opts)
	}
	for _, line := range out {
		s.writeLocked(line + s.newline())
	}

	if s.interactive {
		s.redrawLocked()
	}
}

// Line implements the InputSurface port.
func (s *LineSurface) Line() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// SetLine implements the InputSurface port.
func (s *LineSurface) SetLine(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = []rune(text)
	if s.interactive {
		s.writeLocked("\r\033[K")
		s.redrawLocked()
	}
}

// SetMasked implements the InputSurface port.
func (s *LineSurface) SetMasked(masked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masked = masked
}

func (s *LineSurface) newline() string {
	if s.interactive {
		return "\r\n"
	}
	return "\n"
}

func (s *LineSurface) redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redrawLocked()
}

func (s *LineSurface) redrawLocked() {
	if !s.interactive {
		return
	}
	s.writeLocked("> ")
	if !s.masked {
		s.writeLocked(string(s.buf))
	}
}

// echo writes keystroke feedback. Pipes get none.
func (s *LineSurface) echo(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoLocked(text)
}

func (s *LineSurface) echoLocked(text string) {
	if s.interactive {
		s.writeLocked(text)
	}
}

func (s *LineSurface) writeLocked(text string) {
	if _, err := io.WriteString(s.out, text); err != nil {
		s.logger.Debug("write failed: %v", err)
	}
}
