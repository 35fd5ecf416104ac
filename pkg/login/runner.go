package login

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Credentials are the first two factors.
type Credentials struct {
	Username string
	Password string
}

// Validate rejects empty credentials before a browser is touched.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return newError(KindValidation, StepUsername, "Username required", nil)
	}
	if c.Password == "" {
		return newError(KindValidation, StepPassword, "Password required", nil)
	}
	return nil
}

// OTPPrompter asks the user for the one-time code once the code page shows.
type OTPPrompter interface {
	PromptOTP(ctx context.Context) (string, error)
}

// OTPPrompterFunc adapts a function to OTPPrompter.
type OTPPrompterFunc func(ctx context.Context) (string, error)

// PromptOTP calls f(ctx).
func (f OTPPrompterFunc) PromptOTP(ctx context.Context) (string, error) {
	return f(ctx)
}

// Run executes the whole flow on seq: open, username, password, prompt for
// the code, submit it. It stops at the first error. An invalid code ends
// the run; there is no second prompt.
func Run(ctx context.Context, seq *Sequencer, creds Credentials, prompter OTPPrompter) (*Result, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if prompter == nil {
		return nil, newError(KindValidation, StepOTP, "No OTP prompter configured", nil)
	}

	if err := seq.Open(ctx); err != nil {
		return nil, err
	}
	if err := seq.SubmitUsername(ctx, creds.Username); err != nil {
		return nil, err
	}
	if err := seq.SubmitPassword(ctx, creds.Password); err != nil {
		return nil, err
	}

	code, err := prompter.PromptOTP(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrCanceled) {
			return nil, seq.fail(newError(KindCanceled, StepOTP, "OTP entry canceled", err))
		}
		return nil, seq.fail(newError(KindAutomation, StepOTP, "Failed to read OTP", err))
	}

	return seq.SubmitOTP(ctx, strings.TrimSpace(code))
}

// Hold keeps the caller waiting for d so the browser window stays open for
// inspection. It returns early, without error, when ctx is canceled.
func Hold(ctx context.Context, d time.Duration) {
	_ = Sleep(ctx, d)
}
