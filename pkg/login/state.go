package login

import (
	"time"

	"github.com/entrhq/otpgate/pkg/types"
)

// State is the sequencer's position in the login flow.
type State string

const (
	StateStart           State = "start"
	StateAwaitingOTPGate State = "awaiting_otp_gate"
	StateUsernameEntry   State = "username_entry"
	StatePasswordEntry   State = "password_entry"
	StateOTPEntry        State = "otp_entry"
	StateDone            State = "done"
)

// Step tags reported to clients.
const (
	StepUsername = "username"
	StepPassword = "password"
	StepOTP      = "otp"
	StepComplete = "complete"
)

// Step returns the client-facing step tag for s.
func (s State) Step() string {
	switch s {
	case StatePasswordEntry:
		return StepPassword
	case StateOTPEntry:
		return StepOTP
	case StateDone:
		return StepComplete
	default:
		return StepUsername
	}
}

// Outcome of a finished login.
type Outcome string

const (
	OutcomeLoggedIn Outcome = "logged_in"
	OutcomeUnclear  Outcome = "unclear"
)

// Result describes the page after the final submit.
type Result struct {
	Outcome Outcome
	URL     string
	Title   string
}

// LoggedIn reports whether a success indicator was found.
func (r *Result) LoggedIn() bool {
	return r != nil && r.Outcome == OutcomeLoggedIn
}

func (r *Result) event() *types.Outcome {
	return &types.Outcome{Status: string(r.Outcome), URL: r.URL, Title: r.Title}
}

// Timings holds every wait and pause used by the sequencer.
type Timings struct {
	// ContentWait bounds the wait for any button or input on the first page.
	ContentWait time.Duration
	// ElementWait is how long each fill candidate is waited for.
	ElementWait time.Duration
	// ClickWait is how long each click candidate is waited for.
	ClickWait time.Duration
	// StepWait bounds the wait for the next page after a submit.
	StepWait time.Duration
	// PollInterval is the spacing of presence checks.
	PollInterval time.Duration

	AfterLoad     time.Duration
	AfterContent  time.Duration
	AfterGate     time.Duration
	BeforeSubmit  time.Duration
	AfterContinue time.Duration
	AfterOTP      time.Duration
	AfterSubmit   time.Duration
}

// DefaultTimings returns the pauses tuned for the live site.
func DefaultTimings() Timings {
	return Timings{
		ContentWait:   20 * time.Second,
		ElementWait:   8 * time.Second,
		ClickWait:     5 * time.Second,
		StepWait:      20 * time.Second,
		PollInterval:  500 * time.Millisecond,
		AfterLoad:     3 * time.Second,
		AfterContent:  2 * time.Second,
		AfterGate:     2 * time.Second,
		BeforeSubmit:  1 * time.Second,
		AfterContinue: 3 * time.Second,
		AfterOTP:      1 * time.Second,
		AfterSubmit:   3 * time.Second,
	}
}

// NoDelay returns timings with no pauses and short waits, for fake pages.
func NoDelay() Timings {
	return Timings{
		ContentWait:  200 * time.Millisecond,
		ElementWait:  20 * time.Millisecond,
		ClickWait:    20 * time.Millisecond,
		StepWait:     200 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}
