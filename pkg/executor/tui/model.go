package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/logging"
	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/site"
	"github.com/entrhq/otpgate/pkg/types"
)

// Field indices for focus cycling.
const (
	fieldUsername = iota
	fieldPassword
	fieldCount
)

// Status bar texts.
const (
	statusReady    = "Ready"
	statusRunning  = "Running"
	statusWaiting  = "Waiting for OTP"
	statusLoggedIn = "Logged in"
	statusUnclear  = "Finished, outcome unclear"
	statusFailed   = "Failed"
	statusStopped  = "Stopped"
)

// runConfig is what a run needs besides the credentials.
type runConfig struct {
	launcher    browser.Launcher
	site        *site.Site
	browserOpts browser.Options
	timings     login.Timings
	hold        time.Duration
	fileLog     *logging.Logger
}

// model is the form state.
type model struct {
	// Bubble Tea components
	username textinput.Model
	password textinput.Model
	otpInput textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	focus        int
	showPassword bool
	headless     bool

	// Content buffer for the log
	content *strings.Builder

	// Run state
	cfg       *runConfig
	running   bool
	browserUp bool
	otpActive bool
	status    string
	step      string
	finalURL  string
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// events carries run messages to the program; otp carries the
	// modal's answer back to the run.
	events chan tea.Msg
	otp    chan *types.Input

	toast *toastNotification

	width  int
	height int
	ready  bool
}

// otpRequestMsg opens the OTP modal.
type otpRequestMsg struct{}

// runFinishedMsg carries the outcome of a run.
type runFinishedMsg struct {
	result *login.Result
	err    error
}

// browserClosedMsg signals that the hold ended and the browser is gone.
type browserClosedMsg struct{}

// toastNotification represents a temporary notification message
type toastNotification struct {
	active    bool
	message   string
	details   string
	icon      string
	isError   bool
	showUntil time.Time
}

func newModel(cfg *runConfig) *model {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "
	username.CharLimit = 128
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	otp := textinput.New()
	otp.Placeholder = "123456"
	otp.Prompt = "Code: "
	otp.CharLimit = 6

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	vp := viewport.New(80, 10)

	return &model{
		username: username,
		password: password,
		otpInput: otp,
		viewport: vp,
		spinner:  s,
		headless: cfg.browserOpts.Headless,
		content:  &strings.Builder{},
		cfg:      cfg,
		status:   statusReady,
		step:     login.StepUsername,
		events:   make(chan tea.Msg, 64),
		otp:      make(chan *types.Input, 1),
		toast:    &toastNotification{},
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// stop cancels a running login. It is safe to call at any time.
func (m *model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// wait blocks until the run goroutine has closed its browser.
func (m *model) wait() {
	m.wg.Wait()
}

func (m *model) setFocus(i int) {
	m.focus = (i + fieldCount) % fieldCount
	if m.focus == fieldUsername {
		m.username.Focus()
		m.password.Blur()
	} else {
		m.password.Focus()
		m.username.Blur()
	}
}

func (m *model) toggleShowPassword() {
	m.showPassword = !m.showPassword
	if m.showPassword {
		m.password.EchoMode = textinput.EchoNormal
	} else {
		m.password.EchoMode = textinput.EchoPassword
	}
}

// appendLog adds a line to the log viewport and scrolls to it.
func (m *model) appendLog(line string) {
	m.content.WriteString(line)
	m.content.WriteString("\n")
	m.viewport.SetContent(m.content.String())
	m.viewport.GotoBottom()
}
