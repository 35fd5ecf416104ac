package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/types"
)

// Update handles incoming messages and updates the model state.
// This is the core message handler for the Bubble Tea application.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowResize(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case *types.LoginEvent:
		m.handleLoginEvent(msg)
		return m, nil

	case otpRequestMsg:
		m.otpActive = true
		m.status = statusWaiting
		m.otpInput.SetValue("")
		m.otpInput.Focus()
		m.username.Blur()
		m.password.Blur()
		return m, textinput.Blink

	case runFinishedMsg:
		return m.handleRunFinished(msg)

	case browserClosedMsg:
		m.browserUp = false
		m.running = false
		m.otpActive = false
		m.cancel = nil
		m.appendLog(tipsStyle.Render("Browser closed."))
		m.setFocus(m.focus)
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m *model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.viewport.Width = m.width - 4
	m.viewport.Height = m.calculateViewportHeight()
	m.username.Width = m.width - 20
	m.password.Width = m.width - 20
	m.viewport.SetContent(m.content.String())
	m.ready = true
	return m, nil
}

// calculateViewportHeight leaves room for the header, the form and the bars.
func (m *model) calculateViewportHeight() int {
	headerHeight := 3 // title + tips + blank
	formHeight := 6   // two fields, toggles, border
	statusBarHeight := 2
	h := m.height - headerHeight - formHeight - statusBarHeight
	if h < 5 {
		h = 5
	}
	return h
}

func (m *model) handleLoginEvent(event *types.LoginEvent) {
	switch event.Type {
	case types.EventTypeStepStart, types.EventTypeStepComplete:
		if event.Step != "" {
			m.step = event.Step
		}
	case types.EventTypeOutcome:
		m.step = login.StepComplete
		if event.Outcome != nil {
			m.finalURL = event.Outcome.URL
		}
	}
	if line := formatEvent(event); line != "" {
		m.appendLog(line)
	}
}

func (m *model) handleRunFinished(msg runFinishedMsg) (tea.Model, tea.Cmd) {
	m.otpActive = false
	switch {
	case errors.Is(msg.err, login.ErrCanceled) || errors.Is(msg.err, context.Canceled):
		m.status = statusStopped
		m.appendLog(tipsStyle.Render("Login stopped."))
	case msg.err != nil:
		m.status = statusFailed
		m.showToast("Login failed", login.Message(msg.err), "✗", true)
	case msg.result.LoggedIn():
		m.status = statusLoggedIn
		m.finalURL = msg.result.URL
		m.showToast("Login successful", msg.result.URL, "✓", false)
	default:
		m.status = statusUnclear
		if msg.result != nil {
			m.finalURL = msg.result.URL
		}
		m.showToast("Login finished", "Outcome unclear. Check the browser window.", "⚠", false)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m *model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.stop()
		return m, tea.Quit
	}

	if m.otpActive {
		return m.handleOTPKey(msg)
	}

	switch msg.Type {
	case tea.KeyCtrlS:
		return m.handleStart()
	case tea.KeyCtrlX:
		return m.handleStop()
	case tea.KeyCtrlP:
		m.toggleShowPassword()
		return m, nil
	case tea.KeyCtrlT:
		if !m.running {
			m.headless = !m.headless
		}
		return m, nil
	case tea.KeyCtrlY:
		return m.handleCopyURL()
	case tea.KeyTab, tea.KeyDown:
		m.setFocus(m.focus + 1)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.setFocus(m.focus - 1)
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		if m.focus == fieldUsername {
			m.setFocus(fieldPassword)
			return m, nil
		}
		return m.handleStart()
	}

	if m.running {
		return m, nil
	}
	var cmd tea.Cmd
	if m.focus == fieldUsername {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *model) handleOTPKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		code := strings.TrimSpace(m.otpInput.Value())
		if code == "" {
			return m, nil
		}
		m.otpActive = false
		m.otpInput.Blur()
		m.status = statusRunning
		m.answerOTP(types.NewOTPInput(code))
		return m, nil
	case tea.KeyEsc:
		m.otpActive = false
		m.otpInput.Blur()
		m.answerOTP(types.NewCancelInput())
		return m, nil
	case tea.KeyCtrlX:
		m.otpActive = false
		m.otpInput.Blur()
		return m.handleStop()
	}
	var cmd tea.Cmd
	m.otpInput, cmd = m.otpInput.Update(msg)
	return m, cmd
}

func (m *model) handleStart() (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}
	creds := login.Credentials{
		Username: strings.TrimSpace(m.username.Value()),
		Password: m.password.Value(),
	}
	if err := creds.Validate(); err != nil {
		m.showToast("Missing credentials", "Username and password are required!", "✗", true)
		return m, nil
	}

	m.content.Reset()
	m.appendLog(headerStyle.Render("Starting login for " + creds.Username))
	m.browserUp = true
	m.username.Blur()
	m.password.Blur()
	m.start(creds)
	return m, nil
}

func (m *model) handleStop() (tea.Model, tea.Cmd) {
	if !m.running {
		return m, nil
	}
	m.appendLog(tipsStyle.Render("Stopping..."))
	m.stop()
	return m, nil
}

func (m *model) handleCopyURL() (tea.Model, tea.Cmd) {
	if m.finalURL == "" {
		m.showToast("Nothing to copy", "No final URL yet", "⚠", true)
		return m, nil
	}
	if err := copyToClipboard(m.finalURL); err != nil {
		m.showToast("Copy failed", err.Error(), "✗", true)
		return m, nil
	}
	m.showToast("Copied", m.finalURL, "📋", false)
	return m, nil
}

// answerOTP hands the modal's answer to the waiting run. At most one
// answer is pending per prompt.
func (m *model) answerOTP(in *types.Input) {
	select {
	case m.otp <- in:
	default:
	}
}
