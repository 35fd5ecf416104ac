package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/logging"
	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/site"
	"github.com/entrhq/otpgate/pkg/types"
)

const (
	statusLoggedIn = "logged_in"
	statusUnclear  = "unclear"
	statusFailed   = "failed"
	statusCanceled = "canceled"
)

// Executor runs one terminal login
type Executor struct {
	launcher    browser.Launcher
	config      *Config
	site        *site.Site
	browserOpts browser.Options
	timings     login.Timings
	logger      *Logger
	fileLog     *logging.Logger
	prompter    *Prompter

	summary  *ExecutionSummary
	warnings []string
}

// Option configures an Executor.
type Option func(*Executor)

// WithSite replaces the selector table. The configured URL still applies.
func WithSite(s *site.Site) Option {
	return func(e *Executor) {
		e.site = s
	}
}

// WithBrowserOptions sets the launch options. Headless comes from Config.
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

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(e *Executor) {
		e.prompter = NewPrompter(in, out)
		e.logger = NewWriterLogger(e.logger.level, out)
	}
}

// WithFileLogger mirrors the run into a file logger.
func WithFileLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.fileLog = l
		}
	}
}

// NewExecutor creates a terminal executor
func NewExecutor(launcher browser.Launcher, config *Config, opts ...Option) (*Executor, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Executor{
		launcher:    launcher,
		config:      config,
		site:        site.Damancom(),
		browserOpts: browser.DefaultOptions(),
		timings:     login.DefaultTimings(),
		logger:      NewLogger(ParseLogLevel(config.Logging.Verbosity)),
		fileLog:     logging.Discard(),
		prompter:    NewPrompter(os.Stdin, os.Stdout),
		summary: &ExecutionSummary{
			Target:   config.URL,
			Username: config.Username,
			Status:   "running",
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	st := *e.site
	st.URL = config.URL
	e.site = &st
	e.browserOpts.Headless = config.Headless
	return e, nil
}

// Summary returns the run summary. It is complete once Run returns.
func (e *Executor) Summary() *ExecutionSummary {
	return e.summary
}

// Run prompts for credentials, drives the login, holds the browser open for
// inspection and closes it
func (e *Executor) Run(ctx context.Context) error {
	e.summary.StartTime = time.Now()
	e.logger.Header("DAMANCOM LOGIN AUTOMATION")

	creds, err := e.readCredentials(ctx)
	if err != nil {
		if errors.Is(err, login.ErrValidation) {
			e.logger.Errorf("Username and password are required!")
		}
		return e.finish(err)
	}
	e.summary.Username = creds.Username

	e.logger.Header("STARTING AUTOMATION")
	if e.browserOpts.Headless {
		e.logger.Successf("Headless mode enabled")
	} else {
		e.logger.Successf("Running in visible mode (headless disabled)")
	}

	e.logger.Infof("Starting browser...")
	page, err := e.launcher.Launch(ctx, e.browserOpts)
	if err != nil {
		return e.finish(fmt.Errorf("failed to start browser: %w", err))
	}
	defer e.closePage(page)
	e.logger.Successf("Browser started successfully!")
	e.logger.Infof("\n📂 Opening URL: %s", e.site.URL)
	e.fileLog.Infof("Login run started for %s", e.site.URL)

	seq, err := login.New(page, e.site,
		login.WithTimings(e.timings),
		login.WithReporter(login.Multi(e.logger, login.ReporterFunc(e.record))),
	)
	if err != nil {
		return e.finish(err)
	}

	result, runErr := login.Run(ctx, seq, creds, e.prompter)
	e.summary.LastStep = seq.Step()
	if result != nil {
		e.summary.FinalURL = result.URL
		e.summary.Title = result.Title
	} else if page.URL() != "" {
		e.summary.FinalURL = page.URL()
	}

	if e.config.Artifacts.Enabled && e.config.Artifacts.Screenshot && !result.LoggedIn() {
		e.saveScreenshot(ctx, page)
	}

	runErr = e.finish(runErr, result)
	e.hold(ctx)
	return runErr
}

func (e *Executor) readCredentials(ctx context.Context) (login.Credentials, error) {
	var creds login.Credentials
	e.logger.Infof("\nPlease enter your Damancom credentials:")

	creds.Username = e.config.Username
	if creds.Username == "" {
		username, err := e.prompter.ReadLine(ctx, "Username: ")
		if err != nil {
			return creds, err
		}
		creds.Username = username
	} else {
		e.logger.Infof("Username: %s", creds.Username)
	}

	password, err := e.prompter.ReadSecret(ctx, "Password: ")
	if err != nil {
		return creds, err
	}
	creds.Password = password

	return creds, creds.Validate()
}

// record keeps warnings for the summary and mirrors events to the file log.
func (e *Executor) record(event *types.LoginEvent) {
	if event.Type == types.EventTypeWarning {
		e.warnings = append(e.warnings, event.Message)
	}
	e.fileLog.Report(event)
}

func (e *Executor) saveScreenshot(ctx context.Context, page browser.Page) {
	data, err := page.Screenshot(ctx)
	if err != nil {
		e.logger.Verbosef("Could not capture final page: %v", err)
		return
	}
	path, err := NewArtifactWriter(e.config.Artifacts.OutputDir).WriteScreenshot(data)
	if err != nil {
		e.logger.Warningf("%v", err)
		return
	}
	e.summary.Artifacts = append(e.summary.Artifacts, path)
	e.logger.Infof("📸 Saved screenshot: %s", path)
}

// finish fills in the summary, writes artifacts and prints the summary.
func (e *Executor) finish(err error, result ...*login.Result) error {
	e.summary.EndTime = time.Now()
	e.summary.Duration = e.summary.EndTime.Sub(e.summary.StartTime)
	e.summary.Warnings = e.warnings

	switch {
	case errors.Is(err, login.ErrCanceled) || errors.Is(err, context.Canceled):
		e.summary.Status = statusCanceled
		e.summary.Error = login.Message(err)
	case err != nil:
		e.summary.Status = statusFailed
		e.summary.Error = login.Message(err)
	case len(result) > 0 && result[0].LoggedIn():
		e.summary.Status = statusLoggedIn
	default:
		e.summary.Status = statusUnclear
	}
	if err != nil {
		e.fileLog.Errorf("Login run ended: %v", err)
	} else {
		e.fileLog.Infof("Login run ended: %s %s", e.summary.Status, e.summary.FinalURL)
	}

	if e.config.Artifacts.Enabled {
		paths, writeErr := NewArtifactWriter(e.config.Artifacts.OutputDir).WriteAll(e.summary)
		if writeErr != nil {
			e.logger.Warningf("Failed to write artifacts: %v", writeErr)
		}
		e.summary.Artifacts = append(e.summary.Artifacts, paths...)
	}

	e.logger.Summary(e.summary)
	return err
}

func (e *Executor) hold(ctx context.Context) {
	if e.config.Hold <= 0 || ctx.Err() != nil {
		return
	}
	e.logger.Header(fmt.Sprintf("⏳ Browser will remain open for %s for inspection", e.config.Hold))
	login.Hold(ctx, e.config.Hold)
}

func (e *Executor) closePage(page browser.Page) {
	if err := page.Close(); err != nil {
		e.fileLog.Warnf("Failed to close browser: %v", err)
	}
	e.logger.Successf("Script completed. Browser closed.")
}
