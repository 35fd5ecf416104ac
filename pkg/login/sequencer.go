// Package login drives the username, password and one-time-code pages of
// the target site through a browser.Page.
//
// A Sequencer owns one page and advances through a fixed set of states.
// Each step either moves exactly one state forward or returns an *Error and
// leaves the state where it was, so the same step can be submitted again.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/locator"
	"github.com/entrhq/otpgate/pkg/site"
	"github.com/entrhq/otpgate/pkg/types"
)

// Sequencer runs the login steps against a single page.
//
// Steps must not be called concurrently; State, Step and Result may be.
type Sequencer struct {
	page     browser.Page
	site     *site.Site
	success  site.URLMatcher
	timings  Timings
	reporter Reporter

	mu     sync.RWMutex
	state  State
	result *Result
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTimings overrides the default waits and pauses.
func WithTimings(t Timings) Option {
	return func(s *Sequencer) {
		s.timings = t
	}
}

// WithReporter sets the event sink.
func WithReporter(r Reporter) Option {
	return func(s *Sequencer) {
		if r != nil {
			s.reporter = r
		}
	}
}

// New creates a sequencer in the start state.
func New(page browser.Page, st *site.Site, opts ...Option) (*Sequencer, error) {
	if page == nil {
		return nil, fmt.Errorf("page is required")
	}
	if st == nil {
		return nil, fmt.Errorf("site is required")
	}
	if err := st.Check(); err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}
	success, err := st.SuccessMatcher()
	if err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}

	s := &Sequencer{
		page:     page,
		site:     st,
		success:  success,
		timings:  DefaultTimings(),
		reporter: nopReporter{},
		state:    StateStart,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Step returns the current client-facing step tag.
func (s *Sequencer) Step() string {
	return s.State().Step()
}

// Result returns the outcome once the sequence is done, or nil.
func (s *Sequencer) Result() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Page returns the page the sequencer drives.
func (s *Sequencer) Page() browser.Page {
	return s.page
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Sequencer) emit(event *types.LoginEvent) {
	s.reporter.Report(event)
}

func (s *Sequencer) fail(err *Error) error {
	s.emit(types.NewStepFailedEvent(err.Step, err))
	return err
}

func (s *Sequencer) expect(want State) *Error {
	if got := s.State(); got != want {
		return newError(KindValidation, got.Step(), fmt.Sprintf("Cannot run %s step while at step %s", want.Step(), got.Step()), nil)
	}
	return nil
}

// Open loads the login page and reveals the identifier form.
func (s *Sequencer) Open(ctx context.Context) error {
	if err := s.expect(StateStart); err != nil {
		return err
	}
	step := StepUsername
	s.emit(types.NewStepStartEvent(step, "Opening login page"))

	if err := s.page.Goto(ctx, s.site.URL); err != nil {
		if !errors.Is(err, browser.ErrNavigationTimeout) {
			return s.fail(wrapContext(step, "Failed to open login page", err))
		}
		s.emit(types.NewWarningEvent(step, "Page load timed out, continuing"))
	}
	if err := Sleep(ctx, s.timings.AfterLoad); err != nil {
		return s.fail(wrapContext(step, "", err))
	}

	s.emit(types.NewProgressEvent(step, "Waiting for page content"))
	ok, err := s.waitAny(ctx, s.site.PageReady, s.timings.ContentWait)
	if err != nil {
		return s.fail(wrapContext(step, "Failed to read login page", err))
	}
	if !ok {
		return s.fail(newError(KindTimeout, step, "Login page did not load within expected time", nil))
	}
	if err := Sleep(ctx, s.timings.AfterContent); err != nil {
		return s.fail(wrapContext(step, "", err))
	}

	s.setState(StateAwaitingOTPGate)
	if err := s.passOTPGate(ctx, step); err != nil {
		s.setState(StateStart)
		return s.fail(err)
	}

	s.setState(StateUsernameEntry)
	s.emit(types.NewStepCompleteEvent(step, "Login page ready"))
	return nil
}

// passOTPGate clicks the button that switches the page to OTP login, if
// the page shows one.
func (s *Sequencer) passOTPGate(ctx context.Context, step string) *Error {
	clicked, err := s.clickFirst(ctx, step, s.site.OTPGate, s.timings.ClickWait)
	if err != nil {
		return wrapContext(step, "Failed to click OTP authentication button", err)
	}
	if !clicked {
		s.emit(types.NewWarningEvent(step, "OTP authentication button not found, continuing"))
		return nil
	}
	s.emit(types.NewProgressEvent(step, "Clicked OTP authentication button"))
	if err := Sleep(ctx, s.timings.AfterGate); err != nil {
		return wrapContext(step, "", err)
	}
	return nil
}

// SubmitUsername fills the identifier, presses Next and waits for the
// password page.
func (s *Sequencer) SubmitUsername(ctx context.Context, username string) error {
	if err := s.expect(StateUsernameEntry); err != nil {
		return err
	}
	step := StepUsername

	username = strings.TrimSpace(username)
	if username == "" {
		return s.fail(newError(KindValidation, step, "Username required", nil))
	}
	s.emit(types.NewStepStartEvent(step, "Submitting username"))

	filled, err := s.fillFirst(ctx, step, s.site.Username, username)
	if err != nil {
		return s.fail(wrapContext(step, "Could not find username field", err))
	}
	if !filled {
		return s.fail(newError(KindNotFound, step, "Could not find username field", nil))
	}
	if err := Sleep(ctx, s.timings.BeforeSubmit); err != nil {
		return s.fail(wrapContext(step, "", err))
	}

	clicked, err := s.clickFirst(ctx, step, s.site.Next, s.timings.ClickWait)
	if err != nil {
		return s.fail(wrapContext(step, "Could not find Next button", err))
	}
	if !clicked {
		return s.fail(newError(KindNotFound, step, "Could not find Next button", nil))
	}

	s.emit(types.NewProgressEvent(step, "Waiting for password page"))
	ok, err := s.waitAny(ctx, s.site.PasswordReady, s.timings.StepWait)
	if err != nil {
		return s.fail(wrapContext(step, "Password page did not load within expected time", err))
	}
	if !ok {
		return s.fail(newError(KindTimeout, step, "Password page did not load within expected time", nil))
	}

	s.setState(StatePasswordEntry)
	s.emit(types.NewStepCompleteEvent(step, "Username submitted"))
	return nil
}

// SubmitPassword fills the password, presses the continue button and waits
// for the code inputs.
func (s *Sequencer) SubmitPassword(ctx context.Context, password string) error {
	if err := s.expect(StatePasswordEntry); err != nil {
		return err
	}
	step := StepPassword

	if password == "" {
		return s.fail(newError(KindValidation, step, "Password required", nil))
	}
	s.emit(types.NewStepStartEvent(step, "Submitting password"))

	filled, err := s.fillFirst(ctx, step, s.site.Password, password)
	if err != nil {
		return s.fail(wrapContext(step, "Could not find password field", err))
	}
	if !filled {
		return s.fail(newError(KindNotFound, step, "Could not find password field", nil))
	}
	if err := Sleep(ctx, s.timings.BeforeSubmit); err != nil {
		return s.fail(wrapContext(step, "", err))
	}

	clicked, err := s.clickFirst(ctx, step, s.site.Continue, s.timings.ClickWait)
	if err != nil {
		return s.fail(wrapContext(step, "Could not find continue button", err))
	}
	if !clicked {
		return s.fail(newError(KindNotFound, step, "Could not find continue button", nil))
	}
	if err := Sleep(ctx, s.timings.AfterContinue); err != nil {
		return s.fail(wrapContext(step, "", err))
	}

	s.emit(types.NewProgressEvent(step, "Waiting for code page"))
	ok, err := Until(ctx, s.timings.StepWait, s.timings.PollInterval, func(ctx context.Context) (bool, error) {
		n, err := s.count(ctx, s.site.OTPFields)
		return n >= site.OTPFieldCount, err
	})
	if err != nil {
		return s.fail(wrapContext(step, "OTP page did not load within expected time", err))
	}
	if !ok {
		return s.fail(newError(KindTimeout, step, "OTP page did not load within expected time", nil))
	}

	s.setState(StateOTPEntry)
	s.emit(types.NewStepCompleteEvent(step, "Password submitted"))
	s.emit(types.NewOTPRequiredEvent(site.OTPFieldCount))
	return nil
}

// ValidOTP reports whether code is exactly six ASCII digits.
func ValidOTP(code string) bool {
	if len(code) != site.OTPFieldCount {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// SubmitOTP writes one digit per code input, presses Valider and reports
// where the login ended up. The code is checked before the page is touched.
func (s *Sequencer) SubmitOTP(ctx context.Context, code string) (*Result, error) {
	if err := s.expect(StateOTPEntry); err != nil {
		return nil, err
	}
	step := StepOTP

	if !ValidOTP(code) {
		return nil, s.fail(newError(KindValidation, step, "OTP must be 6 digits", nil))
	}
	s.emit(types.NewStepStartEvent(step, "Submitting code"))

	n, err := s.count(ctx, s.site.OTPFields)
	if err != nil {
		return nil, s.fail(wrapContext(step, "Failed to enter OTP", err))
	}
	if n < site.OTPFieldCount {
		return nil, s.fail(newError(KindNotFound, step, "Failed to enter OTP", nil))
	}
	for i := 0; i < site.OTPFieldCount; i++ {
		if err := s.page.Fill(ctx, s.site.OTPFields, i, code[i:i+1]); err != nil {
			return nil, s.fail(wrapContext(step, "Failed to enter OTP", err))
		}
	}
	if err := Sleep(ctx, s.timings.AfterOTP); err != nil {
		return nil, s.fail(wrapContext(step, "", err))
	}

	clicked, err := s.clickFirst(ctx, step, s.site.Validate, s.timings.ClickWait)
	if err != nil {
		return nil, s.fail(wrapContext(step, "Failed to submit OTP", err))
	}
	if !clicked {
		s.emit(types.NewWarningEvent(step, "Validate button not found, continuing"))
	}
	if err := Sleep(ctx, s.timings.AfterSubmit); err != nil {
		return nil, s.fail(wrapContext(step, "", err))
	}

	result, err := s.DetectOutcome(ctx)
	if err != nil {
		return nil, s.fail(wrapContext(step, "Failed to read final page", err))
	}

	s.mu.Lock()
	s.state = StateDone
	s.result = result
	s.mu.Unlock()

	s.emit(types.NewStepCompleteEvent(step, "Code submitted"))
	s.emit(types.NewOutcomeEvent(result.event()))
	return result, nil
}

// DetectOutcome inspects the current page for signs of a logged-in session.
func (s *Sequencer) DetectOutcome(ctx context.Context) (*Result, error) {
	result := &Result{
		Outcome: OutcomeUnclear,
		URL:     s.page.URL(),
	}
	if title, err := s.page.Title(ctx); err == nil {
		result.Title = title
	}

	found, err := s.anyPresent(ctx, s.site.SuccessIndicators)
	if err != nil {
		return nil, err
	}
	if found || s.success.Match(result.URL) {
		result.Outcome = OutcomeLoggedIn
	}
	return result, nil
}

// count returns how many elements match loc. Query errors count as zero;
// cancellation and a closed page are returned.
func (s *Sequencer) count(ctx context.Context, loc locator.Locator) (int, error) {
	n, err := s.page.Count(ctx, loc)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if errors.Is(err, browser.ErrClosed) {
			return 0, err
		}
		return 0, nil
	}
	return n, nil
}

func (s *Sequencer) anyPresent(ctx context.Context, list locator.List) (bool, error) {
	for _, loc := range list {
		n, err := s.count(ctx, loc)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Sequencer) waitAny(ctx context.Context, list locator.List, timeout time.Duration) (bool, error) {
	return Until(ctx, timeout, s.timings.PollInterval, func(ctx context.Context) (bool, error) {
		return s.anyPresent(ctx, list)
	})
}

func (s *Sequencer) waitFor(ctx context.Context, loc locator.Locator, timeout time.Duration) (bool, error) {
	return Until(ctx, timeout, s.timings.PollInterval, func(ctx context.Context) (bool, error) {
		n, err := s.count(ctx, loc)
		return n > 0, err
	})
}

// fillFirst fills the first candidate of list that appears within
// ElementWait and accepts the value. Candidates are tried in order.
func (s *Sequencer) fillFirst(ctx context.Context, step string, list locator.List, value string) (bool, error) {
	for i, loc := range list {
		ok, err := s.waitFor(ctx, loc, s.timings.ElementWait)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if err := s.page.Fill(ctx, loc, 0, value); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			s.emit(types.NewWarningEvent(step, fmt.Sprintf("Could not fill %s", loc)).WithMetadata("candidate", i))
			continue
		}
		s.emit(types.NewProgressEvent(step, fmt.Sprintf("Filled field using %s", loc)).WithMetadata("candidate", i))
		return true, nil
	}
	return false, nil
}

// clickFirst clicks the first candidate of list that appears within wait.
// An obstructed click is retried as a synthetic click.
func (s *Sequencer) clickFirst(ctx context.Context, step string, list locator.List, wait time.Duration) (bool, error) {
	for i, loc := range list {
		ok, err := s.waitFor(ctx, loc, wait)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		err = s.page.Click(ctx, loc)
		if errors.Is(err, browser.ErrObstructed) {
			s.emit(types.NewProgressEvent(step, fmt.Sprintf("Click on %s obstructed, using script click", loc)))
			err = s.page.SyntheticClick(ctx, loc)
		}
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			s.emit(types.NewWarningEvent(step, fmt.Sprintf("Could not click %s", loc)).WithMetadata("candidate", i))
			continue
		}
		s.emit(types.NewProgressEvent(step, fmt.Sprintf("Clicked %s", loc)).WithMetadata("candidate", i))
		return true, nil
	}
	return false, nil
}
