package color

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/termenv"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}
	colorFailure = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	colorAllowed = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	AllowedStyle = lipgloss.NewStyle().Foreground(colorAllowed)
	FailureStyle = lipgloss.NewStyle().Foreground(colorFailure).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)

	// HighlightStyle marks suite, compiler and optimization level names in headings.
	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("7"))
)

// Initialize tells lipgloss which background the terminal has.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}

// Disable renders every style, and every table, as plain text.
func Disable() {
	lipgloss.SetColorProfile(termenv.Ascii)
	text.DisableColors()
}

// HeaderColors styles table headers.
var HeaderColors = text.Colors{text.FgHiCyan}
