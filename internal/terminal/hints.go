package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const maxHintItems = 8

// HintView shows the candidates of an ambiguous completion above the
// input line until the user types again.
type HintView struct {
	items []string
	width int
}

// NewHintView creates an empty hint view.
func NewHintView() *HintView {
	return &HintView{width: 60}
}

// Show replaces the shown candidates.
func (h *HintView) Show(items []string) {
	h.items = append([]string(nil), items...)
}

// Hide clears the candidates.
func (h *HintView) Hide() {
	h.items = nil
}

// IsVisible returns whether candidates are shown.
func (h *HintView) IsVisible() bool {
	return len(h.items) > 0
}

// SetWidth sets the rendering width.
func (h *HintView) SetWidth(width int) {
	h.width = width
}

// View renders the candidates in columns, at most maxHintItems of them.
func (h *HintView) View() string {
	if !h.IsVisible() {
		return ""
	}

	shown := h.items
	if len(shown) > maxHintItems {
		shown = shown[:maxHintItems]
	}

	colWidth := 0
	for _, item := range shown {
		colWidth = max(colWidth, lipgloss.Width(item))
	}
	colWidth += 2

	perRow := max((h.width-6)/colWidth, 1)

	var lines []string
	var row strings.Builder
	for i, item := range shown {
		cell := hintItemStyle.Render(item)
		row.WriteString(cell)
		row.WriteString(strings.Repeat(" ", colWidth-lipgloss.Width(item)))
		if (i+1)%perRow == 0 {
			lines = append(lines, strings.TrimRight(row.String(), " "))
			row.Reset()
		}
	}
	if row.Len() > 0 {
		lines = append(lines, strings.TrimRight(row.String(), " "))
	}

	if len(h.items) > maxHintItems {
		lines = append(lines, hintMoreStyle.Render(
			fmt.Sprintf("... and %d more", len(h.items)-maxHintItems),
		))
	}

	return hintBoxStyle.Width(h.width - 4).Render(strings.Join(lines, "\n"))
}
