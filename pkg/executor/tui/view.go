package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire form.
// This is called by Bubble Tea whenever the UI needs to be redrawn.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	baseView := lipgloss.JoinVertical(
		lipgloss.Left,
		m.buildHeader(),
		m.buildTips(),
		m.buildForm(),
		m.viewport.View(),
		m.buildStatusBar(),
	)

	if m.otpActive {
		return m.renderOTPModal()
	}
	if m.toast.active && time.Now().Before(m.toast.showUntil) {
		baseView = renderToastOverlay(baseView, m.renderToast())
	}
	return baseView
}

func (m *model) buildHeader() string {
	return headerStyle.Render("  DAMANCOM LOGIN")
}

func (m *model) buildTips() string {
	if m.running {
		return tipsStyle.Render("  Ctrl+X to stop • PgUp/PgDn to scroll • Ctrl+Y to copy the final URL • Ctrl+C to exit")
	}
	return tipsStyle.Render("  Tab to switch fields • Enter or Ctrl+S to start • Ctrl+Y to copy the final URL • Ctrl+C to exit")
}

func (m *model) buildForm() string {
	toggles := strings.Join([]string{
		formatToggle("Ctrl+P", "show password", m.showPassword),
		formatToggle("Ctrl+T", "headless", m.headless),
	}, "   ")

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		m.username.View(),
		m.password.View(),
		toggles,
	)
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return inputBoxStyle.Width(width).Render(body)
}

func (m *model) buildStatusBar() string {
	left := "Status: " + m.status
	if m.running && !m.otpActive {
		left = m.spinner.View() + " " + left
	}
	center := "Step: " + m.step
	browserState := "closed"
	if m.browserUp {
		browserState = "open"
	}
	right := "Browser: " + browserState
	return statusBarStyle.Width(m.width).Render(padBetween(m.width-2, left, center, right))
}

// renderOTPModal draws the code prompt centered on a clean background.
func (m *model) renderOTPModal() string {
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		modalTitleStyle.Render("OTP Required"),
		"",
		"Please check your SMS and Email for the OTP code.",
		"",
		m.otpInput.View(),
		"",
		modalHelpStyle.Render("Enter to submit • Esc to cancel"),
	)
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modalStyle.Render(body),
		lipgloss.WithWhitespaceChars(" "),
	)
}

// renderToastOverlay renders a toast-style overlay at the bottom of the screen
// without affecting the base view's layout
func renderToastOverlay(baseView string, toastContent string) string {
	if toastContent == "" {
		return baseView
	}

	baseLines := strings.Split(baseView, "\n")
	toastLines := strings.Split(strings.TrimRight(toastContent, "\n"), "\n")

	// Sit just above the status bar
	startLine := len(baseLines) - 2 - len(toastLines)
	if startLine < 0 {
		startLine = 0
	}

	var result strings.Builder
	for i, line := range baseLines {
		idx := i - startLine
		if idx >= 0 && idx < len(toastLines) {
			result.WriteString("  ")
			result.WriteString(toastLines[idx])
		} else {
			result.WriteString(line)
		}
		if i < len(baseLines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// renderToast renders a toast notification
func (m *model) renderToast() string {
	if !m.toast.active || time.Now().After(m.toast.showUntil) {
		return ""
	}

	boxWidth := m.width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s", m.toast.icon, m.toast.message))
	if m.toast.details != "" {
		content.WriteString("\n")
		content.WriteString(m.toast.details)
	}

	borderColor := salmonPink
	if m.toast.isError {
		borderColor = alertRed
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(boxWidth)

	return boxStyle.Render(content.String())
}

// showToast displays a toast notification to the user
func (m *model) showToast(message, details, icon string, isError bool) {
	m.toast.active = true
	m.toast.message = message
	m.toast.details = details
	m.toast.icon = icon
	m.toast.isError = isError
	m.toast.showUntil = time.Now().Add(3 * time.Second)
}
