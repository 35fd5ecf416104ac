package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/otpgate/pkg/browser"
)

// SectionIDBrowser is the identifier for the browser settings section
const SectionIDBrowser = "browser"

// BrowserSection holds the launch settings for the controlled browser.
type BrowserSection struct {
	Headless        bool          `json:"headless"`
	ViewportWidth   int           `json:"viewport_width"`
	ViewportHeight  int           `json:"viewport_height"`
	UserAgent       string        `json:"user_agent"`
	ElementWait     time.Duration `json:"element_wait"`
	PageLoadTimeout time.Duration `json:"page_load_timeout"`
	mu              sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Window size, user agent and timeouts of the automated browser."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"headless":          s.Headless,
		"viewport_width":    s.ViewportWidth,
		"viewport_height":   s.ViewportHeight,
		"user_agent":        s.UserAgent,
		"element_wait":      s.ElementWait.String(),
		"page_load_timeout": s.PageLoadTimeout.String(),
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "headless":
			s.Headless, err = toBool(key, value)
		case "viewport_width":
			s.ViewportWidth, err = toInt(key, value)
		case "viewport_height":
			s.ViewportHeight, err = toInt(key, value)
		case "user_agent":
			s.UserAgent, err = toString(key, value)
		case "element_wait":
			s.ElementWait, err = toDuration(key, value)
		case "page_load_timeout":
			s.PageLoadTimeout, err = toDuration(key, value)
		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	if err := s.Options().Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ElementWait <= 0 || s.PageLoadTimeout <= 0 {
		return fmt.Errorf("element_wait and page_load_timeout must be positive")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := browser.DefaultOptions()
	s.Headless = d.Headless
	s.ViewportWidth = d.Viewport.Width
	s.ViewportHeight = d.Viewport.Height
	s.UserAgent = d.UserAgent
	s.ElementWait = d.ElementTimeout
	s.PageLoadTimeout = d.PageLoadTimeout
}

// Options returns launch options built from the section.
func (s *BrowserSection) Options() browser.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opts := browser.DefaultOptions()
	opts.Headless = s.Headless
	opts.Viewport = browser.Viewport{Width: s.ViewportWidth, Height: s.ViewportHeight}
	if s.UserAgent != "" {
		opts.UserAgent = s.UserAgent
	}
	opts.ElementTimeout = s.ElementWait
	opts.PageLoadTimeout = s.PageLoadTimeout
	return opts
}

// SetHeadless sets whether the browser window is hidden.
func (s *BrowserSection) SetHeadless(headless bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = headless
}
