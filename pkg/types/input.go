package types

// InputType defines the type of input sent from a front end to a running login.
type InputType string

const (
	InputTypeCancel InputType = "cancel" // InputTypeCancel indicates the user stopped the run.
	InputTypeOTP    InputType = "otp"    // InputTypeOTP indicates the user entered the one-time code.
)

// Input represents user input delivered to a running login.
type Input struct {
	// Metadata holds optional additional information about the input.
	Metadata map[string]interface{}

	// Content is the code for OTP input.
	// Only populated when Type is InputTypeOTP.
	Content string

	// Type indicates the kind of input.
	Type InputType
}

// NewCancelInput creates a new cancellation input.
func NewCancelInput() *Input {
	return &Input{
		Type:     InputTypeCancel,
		Metadata: make(map[string]interface{}),
	}
}

// NewOTPInput creates a new OTP input carrying code.
func NewOTPInput(code string) *Input {
	return &Input{
		Type:     InputTypeOTP,
		Content:  code,
		Metadata: make(map[string]interface{}),
	}
}

// IsCancel returns true if this is a cancellation input.
func (i *Input) IsCancel() bool {
	return i.Type == InputTypeCancel
}

// IsOTP returns true if this input carries a code.
func (i *Input) IsOTP() bool {
	return i.Type == InputTypeOTP
}
