package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher starts Chromium instances through a shared Playwright driver.
type PlaywrightLauncher struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
	verbose     bool
}

// LauncherOption configures a PlaywrightLauncher.
type LauncherOption func(*PlaywrightLauncher)

// WithVerboseInstall streams driver installation output to stdout/stderr.
func WithVerboseInstall(verbose bool) LauncherOption {
	return func(l *PlaywrightLauncher) {
		l.verbose = verbose
	}
}

// NewLauncher creates a launcher. Playwright is installed lazily on first launch.
func NewLauncher(opts ...LauncherOption) *PlaywrightLauncher {
	l := &PlaywrightLauncher{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize installs the Chromium driver if needed and starts Playwright.
func (l *PlaywrightLauncher) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	// Keep installer output away from the terminal UIs unless asked for.
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  l.verbose,
	}
	if !l.verbose {
		opts.Stdout = io.Discard
		opts.Stderr = io.Discard
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.playwright = pw
	l.initialized = true
	return nil
}

// Launch starts a browser configured with opts and opens one page.
func (l *PlaywrightLauncher) Launch(ctx context.Context, opts Options) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid browser options: %w", err)
	}
	if err := l.Initialize(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	pw := l.playwright
	l.mu.Unlock()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless:          playwright.Bool(opts.Headless),
		Args:              opts.Args(),
		IgnoreDefaultArgs: []string{"--enable-automation"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	if opts.InitScript != "" {
		if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(opts.InitScript)}); err != nil {
			_ = bctx.Close()
			_ = browser.Close()
			return nil, fmt.Errorf("failed to add init script: %w", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if opts.ElementTimeout > 0 {
		page.SetDefaultTimeout(float64(opts.ElementTimeout.Milliseconds()))
	}
	if opts.PageLoadTimeout > 0 {
		page.SetDefaultNavigationTimeout(float64(opts.PageLoadTimeout.Milliseconds()))
	}

	return &playwrightPage{
		browser:        browser,
		context:        bctx,
		page:           page,
		elementTimeout: opts.ElementTimeout,
	}, nil
}

// Shutdown stops Playwright. Browsers launched earlier must be closed first.
func (l *PlaywrightLauncher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized && l.playwright != nil {
		if err := l.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		l.initialized = false
		l.playwright = nil
	}
	return nil
}
