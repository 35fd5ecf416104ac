package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/otpgate/pkg/locator"
)

var (
	// ErrObstructed is returned by Click when another element receives the click.
	ErrObstructed = errors.New("click obstructed")

	// ErrNavigationTimeout is returned by Goto when the page load timeout expires.
	// The page is usually still usable.
	ErrNavigationTimeout = errors.New("page load timeout")

	// ErrClosed is returned by operations on a closed page.
	ErrClosed = errors.New("page closed")
)

// Page is a controlled browser tab.
//
// A Page is not safe for concurrent use. Callers serialise access.
type Page interface {
	// Goto navigates to url and waits for the load event.
	Goto(ctx context.Context, url string) error

	// Count returns how many elements currently match loc.
	Count(ctx context.Context, loc locator.Locator) (int, error)

	// Fill clears the index-th element matching loc and types value into it.
	Fill(ctx context.Context, loc locator.Locator, index int, value string) error

	// Click clicks the first element matching loc.
	Click(ctx context.Context, loc locator.Locator) error

	// SyntheticClick invokes the element's click() method from page script.
	SyntheticClick(ctx context.Context, loc locator.Locator) error

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// URL returns the current page URL.
	URL() string

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// Close releases the browser. Safe to call more than once.
	Close() error
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Page, error)
}

// Options configures a launched browser.
type Options struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the window and viewport size
	Viewport Viewport

	// UserAgent overrides the browser user agent
	UserAgent string

	// ExtraArgs are appended to the default command-line flags
	ExtraArgs []string

	// InitScript runs in every document before page scripts
	InitScript string

	// ElementTimeout bounds element actions such as fill and click
	ElementTimeout time.Duration

	// PageLoadTimeout bounds navigation
	PageLoadTimeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for launched browsers
const (
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
	DefaultViewportWidth   = 1920
	DefaultViewportHeight  = 1080
	DefaultElementTimeout  = 8 * time.Second
	DefaultPageLoadTimeout = 45 * time.Second

	// HideWebdriverScript removes the automation flag seen by page scripts.
	HideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined })`
)

// DefaultOptions returns visible-mode options with the fingerprint defaults.
func DefaultOptions() Options {
	return Options{
		Headless: false,
		Viewport: Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
		UserAgent:       DefaultUserAgent,
		InitScript:      HideWebdriverScript,
		ElementTimeout:  DefaultElementTimeout,
		PageLoadTimeout: DefaultPageLoadTimeout,
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.Viewport.Width < 100 || o.Viewport.Width > 5000 {
		return fmt.Errorf("viewport width must be between 100 and 5000 pixels")
	}
	if o.Viewport.Height < 100 || o.Viewport.Height > 5000 {
		return fmt.Errorf("viewport height must be between 100 and 5000 pixels")
	}
	if o.ElementTimeout < 0 || o.PageLoadTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

// Args returns the full command-line flag set for the browser.
func (o Options) Args() []string {
	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		fmt.Sprintf("--window-size=%d,%d", o.Viewport.Width, o.Viewport.Height),
		"--disable-blink-features=AutomationControlled",
	}
	return append(args, o.ExtraArgs...)
}
