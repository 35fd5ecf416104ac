// Package session keeps the live login sessions of the web front end.
//
// Each Entry owns one sequencer and therefore one browser. Entries are
// keyed by a random token handed to the client and are evicted on cleanup,
// after sitting idle, or on shutdown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/otpgate/pkg/login"
)

// Default limits for a Registry.
const (
	DefaultMaxSessions = 5
	DefaultIdleTimeout = 15 * time.Minute
)

var (
	// ErrNotFound is returned for unknown or evicted tokens.
	ErrNotFound = errors.New("session not found")

	// ErrBusy is returned when a step is already running for the entry.
	ErrBusy = errors.New("step already in progress")

	// ErrLimit is returned by Create when the registry is full.
	ErrLimit = errors.New("too many active sessions")
)

// Entry is one login session.
type Entry struct {
	ID        string
	Seq       *login.Sequencer
	CreatedAt time.Time

	step sync.Mutex

	mu       sync.Mutex
	lastUsed time.Time
	status   string
}

// TryLock claims the entry for one step. It fails when another step holds it.
func (e *Entry) TryLock() bool {
	return e.step.TryLock()
}

// Unlock releases the entry after a step.
func (e *Entry) Unlock() {
	e.step.Unlock()
}

// Status returns the last status text recorded for the entry.
func (e *Entry) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetStatus records a status text for the entry.
func (e *Entry) SetStatus(status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

// LastUsedAt returns when the entry was last touched.
func (e *Entry) LastUsedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

func (e *Entry) touch(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = now
}

func (e *Entry) close() {
	if e.Seq != nil && e.Seq.Page() != nil {
		_ = e.Seq.Page().Close() // best effort
	}
}

// Registry maps tokens to entries.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Entry
	maxSessions int
	idleTimeout time.Duration
	now         func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxSessions caps the number of live entries. Zero or less means no cap.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		r.maxSessions = n
	}
}

// WithIdleTimeout sets how long an untouched entry survives.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Entry),
		maxSessions: DefaultMaxSessions,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers seq under a new random token.
func (r *Registry) Create(seq *login.Sequencer) (*Entry, error) {
	if seq == nil {
		return nil, fmt.Errorf("sequencer is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		return nil, fmt.Errorf("%w (max %d)", ErrLimit, r.maxSessions)
	}

	now := r.now()
	e := &Entry{
		ID:        uuid.NewString(),
		Seq:       seq,
		CreatedAt: now,
		lastUsed:  now,
		status:    "Session started",
	}
	r.sessions[e.ID] = e
	return e, nil
}

// Get returns the entry for id and marks it used.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.touch(r.now())
	return e, nil
}

// Evict removes id and closes its browser. Unknown ids are ignored.
func (r *Registry) Evict(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		e.close()
	}
	return nil
}

// CleanupIdle evicts entries untouched for longer than the idle timeout.
// Entries in the middle of a step are left alone. It returns the evicted ids.
func (r *Registry) CleanupIdle() []string {
	if r.idleTimeout <= 0 {
		return nil
	}
	now := r.now()

	r.mu.Lock()
	var idle []*Entry
	for id, e := range r.sessions {
		if now.Sub(e.LastUsedAt()) <= r.idleTimeout {
			continue
		}
		if !e.TryLock() {
			continue
		}
		idle = append(idle, e)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, e := range idle {
		e.close()
		e.Unlock()
		ids = append(ids, e.ID)
	}
	return ids
}

// CloseAll evicts every entry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Entry, 0, len(r.sessions))
	for id, e := range r.sessions {
		all = append(all, e)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, e := range all {
		e.close()
	}
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep runs CleanupIdle every interval until ctx is done. onEvict, when
// set, is called with the ids removed by each pass.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration, onEvict func(ids []string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := r.CleanupIdle(); len(ids) > 0 && onEvict != nil {
				onEvict(ids)
			}
		}
	}
}
