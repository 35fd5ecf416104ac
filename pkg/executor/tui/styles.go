package tui

import "github.com/charmbracelet/lipgloss"

// Color Palette
// This is the single source of truth for all form colors.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // Soft pastel salmon pink - primary accent
	coralPink   = lipgloss.Color("#FFCCCB") // Lighter coral accent - secondary
	mintGreen   = lipgloss.Color("#A8E6CF") // Soft mint green - success states
	mutedGray   = lipgloss.Color("#6B7280") // Muted gray - secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // Bright white - primary text
	alertRed    = lipgloss.Color("203")     // Errors
)

// Common Styles
var (
	// Text Styles
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	tipsStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	stepStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Bold(true)

	progressStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	warningStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	toggleOnStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	toggleOffStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	// Container Styles
	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(1, 3)

	// modalTitleStyle is used for the OTP prompt title
	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(salmonPink)

	// modalHelpStyle is used for help text and hints
	modalHelpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)
)
