package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/otpgate/pkg/locator"
)

// clickTimeout bounds a normal click before it is treated as obstructed.
const clickTimeout = 5 * time.Second

// playwrightPage implements Page on top of a Playwright browser.
type playwrightPage struct {
	browser        playwright.Browser
	context        playwright.BrowserContext
	page           playwright.Page
	elementTimeout time.Duration

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func (p *playwrightPage) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

// Goto navigates the page to url.
func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	if err := p.check(ctx); err != nil {
		return err
	}

	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Count returns the number of elements matching loc.
func (p *playwrightPage) Count(ctx context.Context, loc locator.Locator) (int, error) {
	if err := p.check(ctx); err != nil {
		return 0, err
	}

	n, err := p.page.Locator(loc.Selector()).Count()
	if err != nil {
		return 0, fmt.Errorf("selector query failed: %w", err)
	}
	return n, nil
}

// Fill clears and fills the index-th match of loc.
func (p *playwrightPage) Fill(ctx context.Context, loc locator.Locator, index int, value string) error {
	if err := p.check(ctx); err != nil {
		return err
	}

	target := p.page.Locator(loc.Selector()).Nth(index)
	opts := playwright.LocatorFillOptions{}
	if p.elementTimeout > 0 {
		opts.Timeout = playwright.Float(float64(p.elementTimeout.Milliseconds()))
	}

	if err := target.Fill(value, opts); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// Click clicks the first match of loc. A click that cannot land because
// another element sits on top is reported as ErrObstructed.
func (p *playwrightPage) Click(ctx context.Context, loc locator.Locator) error {
	if err := p.check(ctx); err != nil {
		return err
	}

	err := p.page.Locator(loc.Selector()).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(clickTimeout.Milliseconds())),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) || strings.Contains(err.Error(), "intercepts pointer events") {
		return fmt.Errorf("%w: %v", ErrObstructed, err)
	}
	return fmt.Errorf("click failed: %w", err)
}

// SyntheticClick calls element.click() inside the page.
func (p *playwrightPage) SyntheticClick(ctx context.Context, loc locator.Locator) error {
	if err := p.check(ctx); err != nil {
		return err
	}

	if _, err := p.page.Locator(loc.Selector()).First().Evaluate("el => el.click()", nil); err != nil {
		return fmt.Errorf("synthetic click failed: %w", err)
	}
	return nil
}

// Screenshot captures the visible viewport as PNG.
func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}

	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

// URL returns the current page URL.
func (p *playwrightPage) URL() string {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ""
	}
	return p.page.URL()
}

// Title returns the document title.
func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	if err := p.check(ctx); err != nil {
		return "", err
	}
	return p.page.Title()
}

// Close closes the page, its context and the browser. Errors are ignored
// so cleanup always runs to the end.
func (p *playwrightPage) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		_ = p.page.Close()
		_ = p.context.Close()
		_ = p.browser.Close()
	})
	return nil
}
