package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#1a5fb4", Dark: "#62a0ea"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#26a269", Dark: "#8ff0a4"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#c64600", Dark: "#ffa348"}
	colorError   = lipgloss.AdaptiveColor{Light: "#c01c28", Dark: "#f66151"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#77767b", Dark: "#9a9996"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorDim).
			MarginBottom(1)

	connectedStyle    = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	connectingStyle   = lipgloss.NewStyle().Foreground(colorWarning)
	disconnectedStyle = lipgloss.NewStyle().Foreground(colorError)
	dimStyle          = lipgloss.NewStyle().Foreground(colorDim)

	transmitStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(colorError).
			Padding(0, 1)

	idleStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)

	currentChannelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorWarning).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
)
