package login

import (
	"sync"

	"github.com/entrhq/otpgate/pkg/types"
)

// Reporter receives progress events from a sequencer.
type Reporter interface {
	Report(event *types.LoginEvent)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(event *types.LoginEvent)

// Report calls f(event).
func (f ReporterFunc) Report(event *types.LoginEvent) {
	f(event)
}

type nopReporter struct{}

func (nopReporter) Report(*types.LoginEvent) {}

// Recorder is a Reporter that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []*types.LoginEvent
}

// Report stores event.
func (r *Recorder) Report(event *types.LoginEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []*types.LoginEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.LoginEvent(nil), r.events...)
}

// Messages returns the message of every event of type t.
func (r *Recorder) Messages(t types.LoginEventType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e.Message)
		}
	}
	return out
}

// Multi fans events out to several reporters.
func Multi(reporters ...Reporter) Reporter {
	return ReporterFunc(func(event *types.LoginEvent) {
		for _, r := range reporters {
			if r != nil {
				r.Report(event)
			}
		}
	})
}
