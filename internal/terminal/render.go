package terminal

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/moolen/gameterm/internal/commands"
)

// renderer turns output lines into the text shown to the user.
type renderer struct {
	styled bool
	width  int
	md     *glamour.TermRenderer
}

func newRenderer(styled bool, width int) *renderer {
	return &renderer{styled: styled, width: width}
}

// setWidth changes the wrap width. The markdown renderer is rebuilt
// lazily, since building it may query the terminal.
func (r *renderer) setWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.md = nil
}

func (r *renderer) render(lines []string, opts commands.OutputOptions) []string {
	if opts.Markdown {
		if out, ok := r.markdown(strings.Join(lines, "\n")); ok {
			return out
		}
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case opts.Echo:
			out = append(out, r.style(echoStyle.Render, "> "+line))
		case opts.Notice:
			out = append(out, r.style(noticeStyle.Render, line))
		default:
			out = append(out, r.style(textStyle.Render, line))
		}
	}
	return out
}

func (r *renderer) style(fn func(...string) string, s string) string {
	if !r.styled {
		return s
	}
	return fn(s)
}

func (r *renderer) markdown(text string) ([]string, bool) {
	if r.md == nil {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(max(r.width-8, 20))}
		if r.styled {
			opts = append(opts, glamour.WithAutoStyle())
		} else {
			opts = append(opts, glamour.WithStandardStyle("notty"))
		}
		md, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			return nil, false
		}
		r.md = md
	}

	rendered, err := r.md.Render(text)
	if err != nil {
		return nil, false
	}
	return strings.Split(strings.Trim(rendered, "\n"), "\n"), true
}
