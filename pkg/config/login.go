package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/site"
)

const (
	// SectionIDLogin is the identifier for the login flow section
	SectionIDLogin = "login"

	defaultTerminalHold = 10 * time.Second
	defaultFormHold     = 60 * time.Second
)

// LoginSection holds the target URL and the waits of the login flow.
type LoginSection struct {
	URL                string        `json:"url"`
	ContentWait        time.Duration `json:"content_wait"`
	StepWait           time.Duration `json:"step_wait"`
	ClickWait          time.Duration `json:"click_wait"`
	TerminalHold       time.Duration `json:"terminal_hold"`
	FormHold           time.Duration `json:"form_hold"`
	SuccessURLPatterns []string      `json:"success_url_patterns"`
	mu                 sync.RWMutex
}

// NewLoginSection creates a login section with default settings.
func NewLoginSection() *LoginSection {
	s := &LoginSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *LoginSection) ID() string {
	return SectionIDLogin
}

// Title returns the section title.
func (s *LoginSection) Title() string {
	return "Login Flow"
}

// Description returns the section description.
func (s *LoginSection) Description() string {
	return "Login page URL, page waits, how long the browser stays open, and URL patterns that count as logged in."
}

// Data returns the current configuration data.
func (s *LoginSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patterns := make([]interface{}, 0, len(s.SuccessURLPatterns))
	for _, p := range s.SuccessURLPatterns {
		patterns = append(patterns, p)
	}

	return map[string]interface{}{
		"url":                  s.URL,
		"content_wait":         s.ContentWait.String(),
		"step_wait":            s.StepWait.String(),
		"click_wait":           s.ClickWait.String(),
		"terminal_hold":        s.TerminalHold.String(),
		"form_hold":            s.FormHold.String(),
		"success_url_patterns": patterns,
	}
}

// SetData updates the configuration from the provided data.
func (s *LoginSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "url":
			s.URL, err = toString(key, value)
		case "content_wait":
			s.ContentWait, err = toDuration(key, value)
		case "step_wait":
			s.StepWait, err = toDuration(key, value)
		case "click_wait":
			s.ClickWait, err = toDuration(key, value)
		case "terminal_hold":
			s.TerminalHold, err = toDuration(key, value)
		case "form_hold":
			s.FormHold, err = toDuration(key, value)
		case "success_url_patterns":
			s.SuccessURLPatterns, err = toStringSlice(key, value)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *LoginSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if s.ContentWait <= 0 || s.StepWait <= 0 || s.ClickWait <= 0 {
		return fmt.Errorf("waits must be positive")
	}
	if s.TerminalHold < 0 || s.FormHold < 0 {
		return fmt.Errorf("hold durations cannot be negative")
	}
	for _, p := range s.SuccessURLPatterns {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid success url pattern %q: %w", p, err)
		}
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *LoginSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := login.DefaultTimings()
	s.URL = site.DefaultURL
	s.ContentWait = t.ContentWait
	s.StepWait = t.StepWait
	s.ClickWait = t.ClickWait
	s.TerminalHold = defaultTerminalHold
	s.FormHold = defaultFormHold
	s.SuccessURLPatterns = nil
}

// Site returns the selector table with the configured URL and success patterns.
func (s *LoginSection) Site() *site.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := site.Damancom()
	st.URL = s.URL
	st.SuccessURLPatterns = append([]string(nil), s.SuccessURLPatterns...)
	return st
}

// Timings returns the sequencer timings with the configured waits applied.
// elementWait comes from the browser section.
func (s *LoginSection) Timings(elementWait time.Duration) login.Timings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := login.DefaultTimings()
	t.ContentWait = s.ContentWait
	t.StepWait = s.StepWait
	t.ClickWait = s.ClickWait
	if elementWait > 0 {
		t.ElementWait = elementWait
	}
	return t
}

// Holds returns how long the terminal script and the form keep the browser open.
func (s *LoginSection) Holds() (terminal, form time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TerminalHold, s.FormHold
}
