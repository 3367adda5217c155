// Package catalog turns the YAML command catalog into command
// definitions. Catalog commands are thin: a one-shot command forwards
// its parameters to the server, and a wizard collects fields step by
// step before sending them in one event.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/config"
)

// ErrNoEvent is returned for a catalog command that would send nothing.
var ErrNoEvent = errors.New("command has no event")

// Build converts every command of file. The first invalid command stops
// the conversion.
func Build(file *config.CatalogFile) ([]commands.Definition, error) {
	defs := make([]commands.Definition, 0, len(file.Commands))
	for _, spec := range file.Commands {
		def, err := Definition(spec)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", spec.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Load reads, validates and converts the catalog at path.
func Load(path string) ([]commands.Definition, error) {
	file, err := config.LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return Build(file)
}

// Definition converts one command spec.
func Definition(spec config.CommandSpec) (commands.Definition, error) {
	if spec.Event == "" {
		return commands.Definition{}, ErrNoEvent
	}

	name := strings.ToLower(strings.TrimSpace(spec.Name))
	def := commands.Definition{
		Name:           name,
		Description:    spec.Description,
		Usage:          spec.Usage,
		Category:       spec.Category,
		AccessLevel:    levelOr(spec.AccessLevel),
		Visibility:     levelOr(spec.Visibility),
		Options:        options(spec.Options),
		ClearBeforeUse: spec.ClearBeforeUse,
		ClearAfterUse:  spec.ClearAfterUse,
	}
	if spec.Autocomplete != nil && spec.Autocomplete.Type != "" {
		def.Autocomplete = &commands.Autocomplete{Type: spec.Autocomplete.Type}
	}

	if len(spec.Steps) == 0 {
		def.Handler = remote(name, spec.Event)
		return def, nil
	}

	w, err := newWizard(name, spec)
	if err != nil {
		return commands.Definition{}, err
	}
	def.Handler = w.start
	def.Steps = w.steps()
	def.Prompts = w.prompts()
	return def, nil
}

// Patch converts a policy entry into a registry patch.
func Patch(entry config.PolicyEntry) commands.Patch {
	return commands.Patch{
		AccessLevel: entry.AccessLevel,
		Visibility:  entry.Visibility,
		Category:    entry.Category,
	}
}

func levelOr(level *int) int {
	if level == nil {
		return commands.DefaultLevel
	}
	return *level
}

func options(specs map[string]config.OptionSpec) commands.OptionTree {
	if len(specs) == 0 {
		return nil
	}
	tree := make(commands.OptionTree, len(specs))
	for key, spec := range specs {
		tree[strings.ToLower(key)] = commands.Option{
			Description: spec.Description,
			Next:        options(spec.Options),
		}
	}
	return tree
}

// remote forwards the command's parameters and prints the reply.
func remote(name, event string) commands.Step {
	return func(s commands.State, in commands.Input) (commands.State, []commands.Effect) {
		return s, []commands.Effect{commands.Emit{
			Event: event,
			Payload: map[string]any{
				"command": name,
				"params":  append([]string{}, in.Tokens...),
			},
			OnReply: func(s commands.State, r commands.Reply) (commands.State, []commands.Effect) {
				if msg, failed := failure(r); failed {
					return s, []commands.Effect{commands.Say(fmt.Sprintf("%s: %s", name, msg))}
				}
				return s, output(r)
			},
		}}
	}
}

// failure reports whether a reply is a rejection and its message.
func failure(r commands.Reply) (string, bool) {
	if r.Err != nil {
		return r.Err.Error(), true
	}
	if ok, present := r.Data["ok"].(bool); present && !ok {
		if msg, _ := r.Data["error"].(string); msg != "" {
			return msg, true
		}
		return "rejected", true
	}
	return "", false
}

// output prints the "lines" of a reply.
func output(r commands.Reply) []commands.Effect {
	lines := stringsOf(r.Data["lines"])
	if len(lines) == 0 {
		return nil
	}
	markdown, _ := r.Data["markdown"].(bool)
	return []commands.Effect{commands.Print{
		Lines:   lines,
		Options: commands.OutputOptions{Markdown: markdown},
	}}
}

func stringsOf(v any) []string {
	switch v := v.(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// wizard is a declarative multi-step command.
type wizard struct {
	name     string
	event    string
	fallback int
	complete bool
	fields   []field
}

type field struct {
	config.StepSpec
	pattern *regexp.Regexp
}

func newWizard(name string, spec config.CommandSpec) (*wizard, error) {
	w := &wizard{
		name:     name,
		event:    spec.Event,
		fallback: spec.FallbackStep,
		complete: spec.AllowAutoComplete,
	}
	for i, step := range spec.Steps {
		f := field{StepSpec: step}
		if step.Validate != "" {
			re, err := regexp.Compile(step.Validate)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			f.pattern = re
		}
		w.fields = append(w.fields, f)
	}
	return w, nil
}

func (w *wizard) prompts() []string {
	out := make([]string, len(w.fields))
	for i, f := range w.fields {
		out[i] = f.Prompt
	}
	return out
}

func (w *wizard) steps() []commands.Step {
	out := make([]commands.Step, len(w.fields))
	for i := range w.fields {
		out[i] = w.step(i)
	}
	return out
}

// start seeds the session and asks the first question.
func (w *wizard) start(s commands.State, _ commands.Input) (commands.State, []commands.Effect) {
	s.FallbackStep = w.fallback
	s.AllowAutoComplete = w.complete
	return w.ask(s, 0)
}

// ask moves the session to step i and prints its prompt.
func (w *wizard) ask(s commands.State, i int, lead ...string) (commands.State, []commands.Effect) {
	s = s.Goto(i).Masked(w.fields[i].Masked)
	lines := append(lead, w.fields[i].Prompt)
	return s, []commands.Effect{commands.Say(lines...)}
}

func (w *wizard) step(i int) commands.Step {
	f := w.fields[i]
	return func(s commands.State, in commands.Input) (commands.State, []commands.Effect) {
		value := in.Text()
		if f.Masked {
			value = strings.TrimSpace(in.Line)
		}

		if f.pattern != nil && !f.pattern.MatchString(value) {
			return w.ask(s, i, fmt.Sprintf("invalid %s", f.Field))
		}
		if f.ConfirmField != "" && value != s.Data.String(f.ConfirmField) {
			return w.ask(s, max(i-1, 0), fmt.Sprintf("%s does not match", f.ConfirmField))
		}

		s = s.With(f.Field, value)
		if f.VerifyEvent == "" {
			return w.advance(s, i)
		}
		return s.Blocked(true), []commands.Effect{commands.Emit{
			Event: f.VerifyEvent,
			Payload: map[string]any{
				"command": w.name,
				"field":   f.Field,
				"value":   value,
			},
			OnReply: func(s commands.State, r commands.Reply) (commands.State, []commands.Effect) {
				s = s.Blocked(false)
				if msg, failed := failure(r); failed {
					return w.ask(s, s.FallbackStep, msg)
				}
				return w.advance(s, i)
			},
		}}
	}
}

// advance asks the next question, or submits the collected fields after
// the last one.
func (w *wizard) advance(s commands.State, i int) (commands.State, []commands.Effect) {
	if i+1 < len(w.fields) {
		return w.ask(s, i+1)
	}

	return s.Masked(false).Blocked(true), []commands.Effect{commands.Emit{
		Event: w.event,
		Payload: map[string]any{
			"command": w.name,
			"data":    w.submitted(s.Data),
		},
		OnReply: func(s commands.State, r commands.Reply) (commands.State, []commands.Effect) {
			s = s.Blocked(false)
			if msg, failed := failure(r); failed {
				return w.ask(s, s.FallbackStep, msg)
			}
			return s, append(output(r), commands.Finish{})
		},
	}}
}

// submitted returns the collected fields, leaving out confirmations.
func (w *wizard) submitted(data commands.Data) map[string]string {
	out := make(map[string]string, len(w.fields))
	for _, f := range w.fields {
		if f.ConfirmField != "" {
			continue
		}
		out[f.Field] = data.String(f.Field)
	}
	return out
}
