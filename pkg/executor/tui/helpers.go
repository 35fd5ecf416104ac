package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/otpgate/pkg/types"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// formatEvent renders one log line for a login event.
func formatEvent(event *types.LoginEvent) string {
	switch event.Type {
	case types.EventTypeStepStart:
		return stepStyle.Render("▸ " + event.Message)
	case types.EventTypeProgress:
		text := event.Message
		if c, ok := event.Metadata["candidate"]; ok {
			text = fmt.Sprintf("%s (candidate %v)", text, c)
		}
		return progressStyle.Render("  " + text)
	case types.EventTypeWarning:
		return warningStyle.Render("  ⚠ " + event.Message)
	case types.EventTypeStepComplete:
		return successStyle.Render("  ✓ " + event.Message)
	case types.EventTypeStepFailed:
		msg := event.Message
		if msg == "" && event.Error != nil {
			msg = event.Error.Error()
		}
		return errorStyle.Render("  ✗ " + msg)
	case types.EventTypeOTPRequired:
		return stepStyle.Render("▸ OTP required. Please check your SMS and Email.")
	case types.EventTypeOutcome:
		if event.Outcome.LoggedIn() {
			return successStyle.Render("✓ Login successful: " + event.Outcome.URL)
		}
		return warningStyle.Render("⚠ Login outcome unclear. Check the browser window.")
	}
	return ""
}

// formatToggle renders a labelled on/off switch.
func formatToggle(key, label string, on bool) string {
	if on {
		return fmt.Sprintf("%s %s", tipsStyle.Render(key), toggleOnStyle.Render("["+label+": on]"))
	}
	return fmt.Sprintf("%s %s", tipsStyle.Render(key), toggleOffStyle.Render("["+label+": off]"))
}

// padBetween spreads left, center and right across width.
func padBetween(width int, left, center, right string) string {
	used := lipgloss.Width(left) + lipgloss.Width(center) + lipgloss.Width(right)
	gap := (width - used) / 2
	if gap < 2 {
		gap = 2
	}
	return left + strings.Repeat(" ", gap) + center + strings.Repeat(" ", gap) + right
}
