package terminal

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorPrimary = lipgloss.Color("#00D4FF") // Cyan
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Yellow/Orange
	colorError   = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorText    = lipgloss.Color("#E5E7EB") // Light gray
	colorDim     = lipgloss.Color("#4B5563") // Darker gray
)

// Header styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	onlineStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	offlineStyle = lipgloss.NewStyle().
			Foreground(colorError)
)

// Input styles
var (
	inputPromptStyle = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)

	blockedPromptStyle = lipgloss.NewStyle().
				Foreground(colorWarning).
				Bold(true)
)

// Output styles
var (
	echoStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Italic(true)

	textStyle = lipgloss.NewStyle().
			Foreground(colorText)
)

// Separator style
var (
	separatorStyle = lipgloss.NewStyle().
		Foreground(colorDim)
)

// Help bar style
var (
	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)
)

// Hint box styles
var (
	hintBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	hintItemStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	hintMoreStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)
