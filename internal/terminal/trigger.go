package terminal

import (
	"strings"

	"github.com/moolen/gameterm/internal/config"
)

// doubleSpace is typed to request completion in double-space mode.
const doubleSpace = "  "

// completionRequest reports whether value, just after a space was
// typed, asks for completion in double-space mode. It returns the line
// to complete with the two spaces removed.
func completionRequest(trigger, value string) (string, bool) {
	if trigger != config.TriggerDoubleSpace || !strings.HasSuffix(value, doubleSpace) {
		return value, false
	}
	return strings.TrimSuffix(value, doubleSpace), true
}
