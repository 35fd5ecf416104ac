package types

import (
	"errors"
	"testing"
)

func TestLoginEventType(t *testing.T) {
	tests := []struct {
		eventType LoginEventType
		name      string
		expected  string
	}{
		{name: "step_start", eventType: EventTypeStepStart, expected: "step_start"},
		{name: "progress", eventType: EventTypeProgress, expected: "progress"},
		{name: "warning", eventType: EventTypeWarning, expected: "warning"},
		{name: "step_complete", eventType: EventTypeStepComplete, expected: "step_complete"},
		{name: "step_failed", eventType: EventTypeStepFailed, expected: "step_failed"},
		{name: "otp_required", eventType: EventTypeOTPRequired, expected: "otp_required"},
		{name: "outcome", eventType: EventTypeOutcome, expected: "outcome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.eventType) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, string(tt.eventType))
			}
		})
	}
}

func TestNewStepStartEvent(t *testing.T) {
	event := NewStepStartEvent("username", "Submitting username")

	if event.Type != EventTypeStepStart {
		t.Errorf("expected type %s, got %s", EventTypeStepStart, event.Type)
	}
	if event.Step != "username" {
		t.Errorf("expected step username, got %s", event.Step)
	}
	if event.Message != "Submitting username" {
		t.Errorf("unexpected message %q", event.Message)
	}
	if event.Metadata == nil {
		t.Error("expected metadata to be initialized")
	}
	if !event.IsStepBoundary() {
		t.Error("expected step start to be a step boundary")
	}
}

func TestNewStepFailedEvent(t *testing.T) {
	err := errors.New("Could not find Next button")
	event := NewStepFailedEvent("username", err)

	if event.Type != EventTypeStepFailed {
		t.Errorf("expected type %s, got %s", EventTypeStepFailed, event.Type)
	}
	if event.Error != err {
		t.Errorf("expected error %v, got %v", err, event.Error)
	}
	if event.Message != err.Error() {
		t.Errorf("expected message %q, got %q", err.Error(), event.Message)
	}
	if !event.IsErrorEvent() || !event.IsTerminal() {
		t.Error("expected failed event to be an error and terminal")
	}
}

func TestNewStepFailedEvent_NilError(t *testing.T) {
	event := NewStepFailedEvent("otp", nil)
	if event.Message != "" {
		t.Errorf("expected empty message, got %q", event.Message)
	}
}

func TestNewOTPRequiredEvent(t *testing.T) {
	event := NewOTPRequiredEvent(6)

	if event.Step != "otp" {
		t.Errorf("expected step otp, got %s", event.Step)
	}
	if event.Metadata["fields"] != 6 {
		t.Errorf("expected fields metadata 6, got %v", event.Metadata["fields"])
	}
	if event.IsTerminal() {
		t.Error("otp required must not be terminal")
	}
}

func TestNewOutcomeEvent(t *testing.T) {
	tests := []struct {
		name     string
		outcome  *Outcome
		loggedIn bool
		message  string
	}{
		{
			name:     "logged in",
			outcome:  &Outcome{Status: "logged_in", URL: "https://example.com/private"},
			loggedIn: true,
			message:  "Login successful",
		},
		{
			name:     "unclear",
			outcome:  &Outcome{Status: "unclear", URL: "https://example.com/login"},
			loggedIn: false,
			message:  "Login outcome unclear",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewOutcomeEvent(tt.outcome)
			if event.Outcome.LoggedIn() != tt.loggedIn {
				t.Errorf("expected logged in %v", tt.loggedIn)
			}
			if event.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, event.Message)
			}
			if event.Step != "complete" {
				t.Errorf("expected step complete, got %s", event.Step)
			}
			if !event.IsTerminal() {
				t.Error("expected outcome to be terminal")
			}
		})
	}
}

func TestOutcome_LoggedInNil(t *testing.T) {
	var o *Outcome
	if o.LoggedIn() {
		t.Error("nil outcome must not be logged in")
	}
}

func TestWithMetadata(t *testing.T) {
	event := (&LoginEvent{Type: EventTypeProgress}).
		WithMetadata("candidate", 2).
		WithMetadata("selector", "css=button")

	if event.Metadata["candidate"] != 2 {
		t.Errorf("expected candidate 2, got %v", event.Metadata["candidate"])
	}
	if event.Metadata["selector"] != "css=button" {
		t.Errorf("unexpected selector %v", event.Metadata["selector"])
	}
}

func TestInputs(t *testing.T) {
	cancel := NewCancelInput()
	if !cancel.IsCancel() || cancel.IsOTP() {
		t.Error("expected cancel input")
	}

	otp := NewOTPInput("123456")
	if !otp.IsOTP() || otp.IsCancel() {
		t.Error("expected otp input")
	}
	if otp.Content != "123456" {
		t.Errorf("expected content 123456, got %s", otp.Content)
	}
}
