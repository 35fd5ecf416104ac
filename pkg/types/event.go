package types

// LoginEventType defines the type of event emitted while a login runs.
type LoginEventType string

const (
	EventTypeStepStart    LoginEventType = "step_start"    // EventTypeStepStart indicates a login step has begun.
	EventTypeProgress     LoginEventType = "progress"      // EventTypeProgress indicates an action inside a step (fill, click, wait).
	EventTypeWarning      LoginEventType = "warning"       // EventTypeWarning indicates a tolerated problem, such as a missing optional button.
	EventTypeStepComplete LoginEventType = "step_complete" // EventTypeStepComplete indicates a step finished and the flow advanced.
	EventTypeStepFailed   LoginEventType = "step_failed"   // EventTypeStepFailed indicates a step failed and the flow stopped.
	EventTypeOTPRequired  LoginEventType = "otp_required"  // EventTypeOTPRequired indicates the code page is showing and a code is needed.
	EventTypeOutcome      LoginEventType = "outcome"       // EventTypeOutcome indicates the final login outcome is known.
)

// LoginEvent represents an event emitted by the login sequencer.
type LoginEvent struct {
	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}

	// Error contains error information for failure events.
	Error error

	// Outcome is set on outcome events.
	Outcome *Outcome

	// Message is the human-readable text for the event.
	Message string

	// Step is the step tag the event belongs to (username, password, otp, complete).
	Step string

	// Type indicates the kind of event.
	Type LoginEventType
}

// Outcome describes where a finished login ended up.
type Outcome struct {
	// Status is "logged_in" or "unclear".
	Status string

	// URL is the page URL after the final submit.
	URL string

	// Title is the document title after the final submit.
	Title string
}

// LoggedIn reports whether the outcome is a confirmed login.
func (o *Outcome) LoggedIn() bool {
	return o != nil && o.Status == "logged_in"
}

// NewStepStartEvent creates a step start event.
func NewStepStartEvent(step, message string) *LoginEvent {
	return &LoginEvent{
		Type:     EventTypeStepStart,
		Step:     step,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// NewProgressEvent creates a progress event.
func NewProgressEvent(step, message string) *LoginEvent {
	return &LoginEvent{
		Type:     EventTypeProgress,
		Step:     step,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// NewWarningEvent creates a warning event.
func NewWarningEvent(step, message string) *LoginEvent {
	return &LoginEvent{
		Type:     EventTypeWarning,
		Step:     step,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// NewStepCompleteEvent creates a step complete event.
func NewStepCompleteEvent(step, message string) *LoginEvent {
	return &LoginEvent{
		Type:     EventTypeStepComplete,
		Step:     step,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// NewStepFailedEvent creates a step failed event.
func NewStepFailedEvent(step string, err error) *LoginEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &LoginEvent{
		Type:     EventTypeStepFailed,
		Step:     step,
		Message:  msg,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// NewOTPRequiredEvent creates an OTP required event.
func NewOTPRequiredEvent(fields int) *LoginEvent {
	e := &LoginEvent{
		Type:     EventTypeOTPRequired,
		Step:     "otp",
		Message:  "Enter the one-time code",
		Metadata: make(map[string]interface{}),
	}
	e.Metadata["fields"] = fields
	return e
}

// NewOutcomeEvent creates an outcome event.
func NewOutcomeEvent(outcome *Outcome) *LoginEvent {
	msg := "Login outcome unclear"
	if outcome.LoggedIn() {
		msg = "Login successful"
	}
	return &LoginEvent{
		Type:     EventTypeOutcome,
		Step:     "complete",
		Message:  msg,
		Outcome:  outcome,
		Metadata: make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the event and returns it for chaining.
func (e *LoginEvent) WithMetadata(key string, value interface{}) *LoginEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsErrorEvent returns true if the event reports a failed step.
func (e *LoginEvent) IsErrorEvent() bool {
	return e.Type == EventTypeStepFailed
}

// IsStepBoundary returns true for events that open or close a step.
func (e *LoginEvent) IsStepBoundary() bool {
	return e.Type == EventTypeStepStart ||
		e.Type == EventTypeStepComplete ||
		e.Type == EventTypeStepFailed
}

// IsTerminal returns true if no further events follow in this run.
func (e *LoginEvent) IsTerminal() bool {
	return e.Type == EventTypeStepFailed || e.Type == EventTypeOutcome
}
