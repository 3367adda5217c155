package terminal

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/config"
)

// maxHistory bounds the number of output lines kept for scrolling.
const maxHistory = 5000

// Messages the TUI sends itself from other goroutines.
type (
	outputMsg struct {
		lines []string
		opts  commands.OutputOptions
	}
	setLineMsg struct{ text string }
	maskMsg    struct{ masked bool }
	blockMsg   struct{ blocked bool }
	statusMsg  struct{ online bool }
)

// Handlers are the callbacks the model reports user actions through.
type Handlers struct {
	Submit   func(line string)
	Complete func()
	Cancel   func()
	// EndOfInput runs when line-mode input reaches EOF, after the last
	// line was submitted and before Run returns. Quitting with Ctrl+C or
	// Ctrl+D does not call it.
	EndOfInput func()
}

// sharedLine mirrors the input value for readers outside the program
// goroutine.
type sharedLine struct {
	mu    sync.RWMutex
	value string
}

func (s *sharedLine) get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

func (s *sharedLine) set(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}

// Model is the Bubble Tea model of the game terminal.
type Model struct {
	width  int
	height int

	title    string
	trigger  string
	handlers Handlers

	input    textinput.Model
	viewport viewport.Model
	hints    *HintView
	render   *renderer
	history  []string
	line     *sharedLine

	ready   bool
	online  bool
	masked  bool
	blocked bool
}

// NewModel creates the model. trigger selects the completion key, see
// config.TriggerTab and config.TriggerDoubleSpace.
func NewModel(title, trigger string, handlers Handlers) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = inputPromptStyle
	ti.CharLimit = 1000
	ti.Width = 76
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &Model{
		title:    title,
		trigger:  trigger,
		handlers: handlers,
		input:    ti,
		viewport: vp,
		hints:    NewHintView(),
		render:   newRenderer(true, 80),
		line:     &sharedLine{},
		width:    80,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		m.hints.SetWidth(msg.Width)
		m.render.setWidth(msg.Width)

		// header, two separators, input and help bar
		m.viewport.Width = max(msg.Width-2, 10)
		m.viewport.Height = max(msg.Height-5, 3)
		m.refresh()
		return m, nil

	case outputMsg:
		m.output(msg.lines, msg.opts)
		return m, nil

	case setLineMsg:
		m.setValue(msg.text)
		return m, nil

	case maskMsg:
		m.masked = msg.masked
		if msg.masked {
			m.input.EchoMode = textinput.EchoPassword
		} else {
			m.input.EchoMode = textinput.EchoNormal
		}
		return m, nil

	case blockMsg:
		m.blocked = msg.blocked
		if msg.blocked {
			m.input.PromptStyle = blockedPromptStyle
		} else {
			m.input.PromptStyle = inputPromptStyle
		}
		return m, nil

	case statusMsg:
		m.online = msg.online
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.hints.Hide()
		if m.handlers.Cancel != nil {
			m.handlers.Cancel()
		}
		return m, nil

	case tea.KeyEnter:
		value := m.input.Value()
		m.setValue("")
		m.hints.Hide()
		if m.handlers.Submit != nil {
			m.handlers.Submit(value)
		}
		return m, nil

	case tea.KeyTab:
		if m.trigger == config.TriggerTab {
			m.requestCompletion()
		}
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.hints.Hide()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	value := m.input.Value()

	if msg.Type == tea.KeySpace {
		if stripped, ok := completionRequest(m.trigger, value); ok {
			m.setValue(stripped)
			m.requestCompletion()
			return m, cmd
		}
	}
	m.line.set(value)
	return m, cmd
}

func (m *Model) requestCompletion() {
	if m.masked || m.handlers.Complete == nil {
		return
	}
	m.handlers.Complete()
}

func (m *Model) setValue(v string) {
	m.input.SetValue(v)
	m.input.CursorEnd()
	m.line.set(v)
}

func (m *Model) output(lines []string, opts commands.OutputOptions) {
	if opts.Clear {
		m.history = nil
	}
	if opts.Hint {
		m.hints.Show(lines)
		return
	}
	if len(lines) > 0 {
		m.history = append(m.history, m.render.render(lines, opts)...)
		if over := len(m.history) - maxHistory; over > 0 {
			m.history = append([]string(nil), m.history[over:]...)
		}
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Connecting...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())
	b.WriteString("\n")

	if m.hints.IsVisible() {
		b.WriteString(m.hints.View())
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render(m.title)
	status := offlineStyle.Render("offline")
	if m.online {
		status = onlineStyle.Render("online")
	}
	spacing := max(m.width-lipgloss.Width(title)-lipgloss.Width(status), 1)
	return title + strings.Repeat(" ", spacing) + status
}

func (m *Model) renderSeparator() string {
	return separatorStyle.Render(strings.Repeat("─", max(m.width, 1)))
}

func (m *Model) renderHelp() string {
	complete := "tab"
	if m.trigger == config.TriggerDoubleSpace {
		complete = "space space"
	}
	parts := []string{
		helpKeyStyle.Render("enter") + helpStyle.Render(" send"),
		helpKeyStyle.Render(complete) + helpStyle.Render(" complete"),
		helpKeyStyle.Render("esc") + helpStyle.Render(" abort"),
		helpKeyStyle.Render("ctrl+c") + helpStyle.Render(" quit"),
	}
	return strings.Join(parts, helpStyle.Render("  •  "))
}
