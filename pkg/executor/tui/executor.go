// Package tui provides a terminal form executor for the Damancom login,
// standing in for a desktop window with fields, toggles and a log.
//
// The package is split into a few files:
// - executor.go: Executor and program lifecycle
// - model.go: model structure, state and messages
// - runner.go: the login goroutine and the OTP hand-off
// - update.go: Bubble Tea Update and key handling
// - view.go: Bubble Tea View and rendering
// - helpers.go: event formatting and small utilities
// - styles.go: colors and styles
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/logging"
	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/site"
)

// DefaultHold is how long the browser stays open after a run.
const DefaultHold = 60 * time.Second

// Executor runs the interactive login form.
type Executor struct {
	launcher    browser.Launcher
	site        *site.Site
	browserOpts browser.Options
	timings     login.Timings
	hold        time.Duration
	fileLog     *logging.Logger
	program     *tea.Program
}

// Option configures an Executor.
type Option func(*Executor)

// WithSite replaces the default Damancom selector table.
func WithSite(s *site.Site) Option {
	return func(e *Executor) {
		if s != nil {
			e.site = s
		}
	}
}

// WithBrowserOptions sets the launch options. The form's headless toggle
// starts from opts.Headless.
func WithBrowserOptions(opts browser.Options) Option {
	return func(e *Executor) {
		e.browserOpts = opts
	}
}

// WithTimings overrides the sequencer waits.
func WithTimings(t login.Timings) Option {
	return func(e *Executor) {
		e.timings = t
	}
}

// WithHold sets how long the browser stays open after the outcome.
func WithHold(d time.Duration) Option {
	return func(e *Executor) {
		e.hold = d
	}
}

// WithFileLogger mirrors login events into a file logger.
func WithFileLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.fileLog = l
		}
	}
}

// NewExecutor creates a form executor that launches browsers with launcher.
func NewExecutor(launcher browser.Launcher, opts ...Option) (*Executor, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	e := &Executor{
		launcher:    launcher,
		site:        site.Damancom(),
		browserOpts: browser.DefaultOptions(),
		timings:     login.DefaultTimings(),
		hold:        DefaultHold,
		fileLog:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.site.Check(); err != nil {
		return nil, err
	}
	if err := e.browserOpts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid browser options: %w", err)
	}
	if e.hold < 0 {
		return nil, fmt.Errorf("hold must not be negative")
	}
	return e, nil
}

func (e *Executor) runConfig() *runConfig {
	return &runConfig{
		launcher:    e.launcher,
		site:        e.site,
		browserOpts: e.browserOpts,
		timings:     e.timings,
		hold:        e.hold,
		fileLog:     e.fileLog,
	}
}

// Run starts the form and blocks until the user exits. A run still in
// progress is canceled and its browser closed before Run returns.
func (e *Executor) Run(ctx context.Context) error {
	m := newModel(e.runConfig())
	e.fileLog.Infof("Login form starting, target %s", e.site.URL)

	e.program = tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		// Forward run events to the program
		for msg := range m.events {
			e.program.Send(msg)
		}
	}()

	_, err := e.program.Run()

	m.stop()
	m.wait()
	close(m.events)
	<-forwarded

	e.fileLog.Infof("Login form closed")
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run form: %w", err)
	}
	return nil
}
