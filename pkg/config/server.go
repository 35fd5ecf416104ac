package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/otpgate/pkg/session"
)

const (
	// SectionIDServer is the identifier for the web service section
	SectionIDServer = "server"

	defaultServerAddr = "127.0.0.1:5000"
)

// ServerSection holds the web service settings.
type ServerSection struct {
	Addr        string        `json:"addr"`
	IdleTimeout time.Duration `json:"idle_timeout"`
	MaxSessions int           `json:"max_sessions"`
	mu          sync.RWMutex
}

// NewServerSection creates a server section with default settings.
func NewServerSection() *ServerSection {
	s := &ServerSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *ServerSection) ID() string {
	return SectionIDServer
}

// Title returns the section title.
func (s *ServerSection) Title() string {
	return "Web Service"
}

// Description returns the section description.
func (s *ServerSection) Description() string {
	return "Listen address, idle session expiry and the number of concurrent browser sessions."
}

// Data returns the current configuration data.
func (s *ServerSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"addr":         s.Addr,
		"idle_timeout": s.IdleTimeout.String(),
		"max_sessions": s.MaxSessions,
	}
}

// SetData updates the configuration from the provided data.
func (s *ServerSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "addr":
			s.Addr, err = toString(key, value)
		case "idle_timeout":
			s.IdleTimeout, err = toDuration(key, value)
		case "max_sessions":
			s.MaxSessions, err = toInt(key, value)
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
func (s *ServerSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if s.IdleTimeout < time.Minute {
		return fmt.Errorf("idle_timeout must be at least 1m, got %v", s.IdleTimeout)
	}
	if s.MaxSessions < 1 || s.MaxSessions > 50 {
		return fmt.Errorf("max_sessions must be between 1 and 50, got %d", s.MaxSessions)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *ServerSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Addr = defaultServerAddr
	s.IdleTimeout = session.DefaultIdleTimeout
	s.MaxSessions = session.DefaultMaxSessions
}

// Settings returns the address, idle timeout and session cap.
func (s *ServerSection) Settings() (addr string, idle time.Duration, maxSessions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Addr, s.IdleTimeout, s.MaxSessions
}
