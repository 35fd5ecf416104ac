// Package browsertest provides a scripted in-memory Page for tests.
//
// A FakePage keeps a count of matching elements per selector and runs
// registered callbacks when an element is clicked, which is enough to
// simulate multi-page login flows without a browser.
package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/locator"
)

// Fill records one fill operation.
type Fill struct {
	Selector string
	Index    int
	Value    string
}

// FakePage is a scripted browser.Page.
type FakePage struct {
	mu sync.Mutex

	counts     map[string]int
	values     map[string]map[int]string
	onClick    map[string]func(*FakePage)
	obstructed map[string]bool
	countErrs  map[string]error

	clicks    []string
	synthetic []string
	fills     []Fill
	visited   []string
	counted   []string

	url        string
	title      string
	screenshot []byte
	closed     int

	// GotoErr is returned by Goto after the URL is recorded
	GotoErr error
	// ScreenshotErr is returned by Screenshot when set
	ScreenshotErr error
}

var _ browser.Page = (*FakePage)(nil)

// NewFakePage returns an empty page at about:blank.
func NewFakePage() *FakePage {
	return &FakePage{
		counts:     make(map[string]int),
		values:     make(map[string]map[int]string),
		onClick:    make(map[string]func(*FakePage)),
		obstructed: make(map[string]bool),
		countErrs:  make(map[string]error),
		url:        "about:blank",
		screenshot: blankPNG(),
	}
}

// Set makes n elements match loc.
func (p *FakePage) Set(loc locator.Locator, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(loc, n)
}

func (p *FakePage) setLocked(loc locator.Locator, n int) {
	if n <= 0 {
		delete(p.counts, loc.Selector())
		return
	}
	p.counts[loc.Selector()] = n
}

// Remove makes loc match nothing.
func (p *FakePage) Remove(loc locator.Locator) {
	p.Set(loc, 0)
}

// OnClick registers fn to run when loc is clicked (normally or synthetically).
// fn runs without the page lock held and may call any FakePage method.
func (p *FakePage) OnClick(loc locator.Locator, fn func(*FakePage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[loc.Selector()] = fn
}

// Obstruct makes normal clicks on loc fail with browser.ErrObstructed.
func (p *FakePage) Obstruct(loc locator.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.obstructed[loc.Selector()] = true
}

// FailCount makes Count on loc return err.
func (p *FakePage) FailCount(loc locator.Locator, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.countErrs[loc.Selector()] = err
}

// SetURL sets the current URL.
func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// SetTitle sets the document title.
func (p *FakePage) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// Value returns what was last filled into the index-th match of loc.
func (p *FakePage) Value(loc locator.Locator, index int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[loc.Selector()][index]
}

// Clicks returns the selectors clicked normally, in order.
func (p *FakePage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// SyntheticClicks returns the selectors clicked through page script, in order.
func (p *FakePage) SyntheticClicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.synthetic...)
}

// Fills returns every fill operation, in order.
func (p *FakePage) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Fill(nil), p.fills...)
}

// Visited returns every URL passed to Goto.
func (p *FakePage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Counted returns every selector passed to Count, in order.
func (p *FakePage) Counted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.counted...)
}

// CloseCount returns how many times Close was called.
func (p *FakePage) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Goto records the navigation and moves to url.
func (p *FakePage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	p.url = url
	return p.GotoErr
}

// Count returns the scripted element count for loc.
func (p *FakePage) Count(ctx context.Context, loc locator.Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := loc.Selector()
	p.counted = append(p.counted, sel)
	if err := p.countErrs[sel]; err != nil {
		return 0, err
	}
	return p.counts[sel], nil
}

// Fill records value for the index-th match of loc.
func (p *FakePage) Fill(ctx context.Context, loc locator.Locator, index int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := loc.Selector()
	if index >= p.counts[sel] {
		return fmt.Errorf("no element %d for %s", index, sel)
	}
	if p.values[sel] == nil {
		p.values[sel] = make(map[int]string)
	}
	p.values[sel][index] = value
	p.fills = append(p.fills, Fill{Selector: sel, Index: index, Value: value})
	return nil
}

// Click clicks loc, failing with browser.ErrObstructed when loc is obstructed.
func (p *FakePage) Click(ctx context.Context, loc locator.Locator) error {
	return p.click(ctx, loc, false)
}

// SyntheticClick clicks loc from page script; obstruction does not apply.
func (p *FakePage) SyntheticClick(ctx context.Context, loc locator.Locator) error {
	return p.click(ctx, loc, true)
}

func (p *FakePage) click(ctx context.Context, loc locator.Locator, synthetic bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	sel := loc.Selector()
	if p.counts[sel] == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no element for %s", sel)
	}
	if !synthetic && p.obstructed[sel] {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", browser.ErrObstructed, sel)
	}
	if synthetic {
		p.synthetic = append(p.synthetic, sel)
	} else {
		p.clicks = append(p.clicks, sel)
	}
	fn := p.onClick[sel]
	p.mu.Unlock()

	if fn != nil {
		fn(p)
	}
	return nil
}

// Screenshot returns a small PNG.
func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return append([]byte(nil), p.screenshot...), nil
}

// URL returns the current URL.
func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Title returns the document title.
func (p *FakePage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

// Close counts the call.
func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func blankPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for y := 0; y < 36; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 179, B: 186, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
