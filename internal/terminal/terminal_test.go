package terminal

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/config"
)

func TestCompletionRequest(t *testing.T) {
	tests := []struct {
		name    string
		trigger string
		value   string
		want    string
		wantOK  bool
	}{
		{"double space", config.TriggerDoubleSpace, "he  ", "he", true},
		{"after a word", config.TriggerDoubleSpace, "room jo  ", "room jo", true},
		{"single space", config.TriggerDoubleSpace, "room ", "room ", false},
		{"tab mode ignores spaces", config.TriggerTab, "he  ", "he  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := completionRequest(tt.trigger, tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHintView(t *testing.T) {
	h := NewHintView()
	assert.Empty(t, h.View())

	h.Show([]string{"help", "hello"})
	assert.True(t, h.IsVisible())
	view := h.View()
	assert.Contains(t, view, "help")
	assert.Contains(t, view, "hello")

	h.Show(strings.Split("a b c d e f g h i j", " "))
	assert.Contains(t, h.View(), "... and 2 more")
	assert.NotContains(t, h.View(), "j")

	h.Hide()
	assert.False(t, h.IsVisible())
}

// recorder collects handler calls.
type recorder struct {
	submitted []string
	completes []string
	cancels   int
	ends      int
	line      func() string
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Submit: func(line string) { r.submitted = append(r.submitted, line) },
		Complete: func() {
			if r.line != nil {
				r.completes = append(r.completes, r.line())
			}
		},
		Cancel:     func() { r.cancels++ },
		EndOfInput: func() { r.ends++ },
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func space() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
}

func newTestModel(trigger string) (*Model, *recorder) {
	rec := &recorder{}
	m := NewModel("TEST", trigger, rec.handlers())
	rec.line = m.line.get
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, rec
}

func TestModelSubmit(t *testing.T) {
	m, rec := newTestModel(config.TriggerTab)

	m.Update(runes("say"))
	m.Update(space())
	m.Update(runes("hi"))
	assert.Equal(t, "say hi", m.line.get())

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"say hi"}, rec.submitted)
	assert.Equal(t, "", m.input.Value())
	assert.Equal(t, "", m.line.get())
}

func TestModelTabCompletion(t *testing.T) {
	m, rec := newTestModel(config.TriggerTab)

	m.Update(runes("he"))
	m.Update(tea.KeyMsg{Type: tea.KeyTab})

	assert.Equal(t, []string{"he"}, rec.completes)
}

func TestModelDoubleSpaceCompletion(t *testing.T) {
	m, rec := newTestModel(config.TriggerDoubleSpace)

	m.Update(runes("he"))
	m.Update(space())
	assert.Empty(t, rec.completes)
	m.Update(space())

	assert.Equal(t, []string{"he"}, rec.completes)
	assert.Equal(t, "he", m.input.Value())

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Len(t, rec.completes, 1)
}

func TestModelMaskedInput(t *testing.T) {
	m, rec := newTestModel(config.TriggerTab)

	m.Update(maskMsg{masked: true})
	assert.Equal(t, textinput.EchoPassword, m.input.EchoMode)

	m.Update(runes("secret"))
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Empty(t, rec.completes)
	assert.NotContains(t, m.View(), "secret")

	m.Update(maskMsg{masked: false})
	assert.Equal(t, textinput.EchoNormal, m.input.EchoMode)
}

func TestModelOutput(t *testing.T) {
	m, _ := newTestModel(config.TriggerTab)

	m.Update(outputMsg{lines: []string{"say hi"}, opts: commands.OutputOptions{Echo: true}})
	m.Update(outputMsg{lines: []string{"bob says hi"}})
	m.Update(outputMsg{lines: []string{"command aborted"}, opts: commands.OutputOptions{Notice: true}})
	require.Len(t, m.history, 3)
	assert.Contains(t, m.history[0], "> say hi")
	assert.Contains(t, m.View(), "bob says hi")

	m.Update(outputMsg{lines: []string{"help", "hello"}, opts: commands.OutputOptions{Hint: true}})
	assert.Len(t, m.history, 3)
	assert.True(t, m.hints.IsVisible())

	m.Update(runes("x"))
	assert.False(t, m.hints.IsVisible())

	m.Update(outputMsg{opts: commands.OutputOptions{Clear: true}})
	assert.Empty(t, m.history)
}

func TestModelSetLineAndStatus(t *testing.T) {
	m, _ := newTestModel(config.TriggerTab)

	m.Update(setLineMsg{text: "help "})
	assert.Equal(t, "help ", m.input.Value())
	assert.Equal(t, "help ", m.line.get())

	assert.Contains(t, m.View(), "offline")
	m.Update(statusMsg{online: true})
	assert.Contains(t, m.View(), "online")
	assert.NotContains(t, m.View(), "offline")
}

func TestModelEscCancels(t *testing.T) {
	m, rec := newTestModel(config.TriggerTab)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, 1, rec.cancels)
}

func TestModelCtrlCQuits(t *testing.T) {
	m, _ := newTestModel(config.TriggerTab)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func runLine(t *testing.T, input, trigger string) (*LineSurface, *recorder, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	s := NewLineSurface(LineConfig{Input: strings.NewReader(input), Output: out, Trigger: trigger})
	rec := &recorder{line: s.Line}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx, rec.handlers()))
	return s, rec, out
}

func TestLineSurfaceSubmitsLines(t *testing.T) {
	_, rec, out := runLine(t, "help\r\nsay hi\nlast", config.TriggerTab)

	assert.Equal(t, []string{"help", "say hi", "last"}, rec.submitted)
	assert.Equal(t, 1, rec.ends)
	assert.Empty(t, out.String())
}

func TestLineSurfaceEndOfInputOnlyAtEOF(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"eof", "one\ntwo\n", 1},
		{"ctrl-d", "one\n\x04", 0},
		{"ctrl-c", "one\x03", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rec, _ := runLine(t, tt.input, config.TriggerTab)
			assert.Equal(t, tt.want, rec.ends)
		})
	}
}

func TestLineSurfaceEditing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"backspace", "sayy\x7f hi\n", []string{"say hi"}},
		{"ctrl-h", "ab\x08c\n", []string{"ac"}},
		{"control characters ignored", "a\x01b\n", []string{"ab"}},
		{"arrow keys ignored", "\x1b[Aup\n", []string{"up"}},
		{"ctrl-d on empty line quits", "one\n\x04two\n", []string{"one"}},
		{"ctrl-c quits", "one\x03\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rec, _ := runLine(t, tt.input, config.TriggerTab)
			assert.Equal(t, tt.want, rec.submitted)
		})
	}
}

func TestLineSurfaceCompletionTriggers(t *testing.T) {
	_, rec, _ := runLine(t, "he\t\n", config.TriggerTab)
	assert.Equal(t, []string{"he"}, rec.completes)

	_, rec, _ = runLine(t, "room jo  \n", config.TriggerDoubleSpace)
	assert.Equal(t, []string{"room jo"}, rec.completes)
	assert.Equal(t, []string{"room jo"}, rec.submitted)
}

func TestLineSurfaceLoneEscCancels(t *testing.T) {
	_, rec, _ := runLine(t, "\x1b", config.TriggerTab)

	assert.Equal(t, 1, rec.cancels)
}

func TestLineSurfaceOutput(t *testing.T) {
	out := &bytes.Buffer{}
	s := NewLineSurface(LineConfig{Input: strings.NewReader(""), Output: out})

	s.Enqueue([]string{"say hi"}, commands.OutputOptions{Echo: true})
	s.Enqueue([]string{"bob says hi"}, commands.OutputOptions{})
	s.Enqueue([]string{"help", "hello"}, commands.OutputOptions{Hint: true})
	s.Enqueue(nil, commands.OutputOptions{Clear: true})

	assert.Equal(t, "> say hi\nbob says hi\n  help  hello\n", out.String())
}

func TestLineSurfaceLineState(t *testing.T) {
	s := NewLineSurface(LineConfig{Input: strings.NewReader(""), Output: &bytes.Buffer{}, Trigger: config.TriggerTab})
	rec := &recorder{line: s.Line}

	s.SetLine("help ")
	s.key(keyTab, rec.handlers())
	assert.Equal(t, []string{"help "}, rec.completes)
	assert.Equal(t, "help ", s.Line())

	s.SetMasked(true)
	s.key(keyTab, rec.handlers())
	assert.Len(t, rec.completes, 1)
}
