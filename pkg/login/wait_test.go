package login

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}

func TestUntil_BecomesTrue(t *testing.T) {
	var calls atomic.Int32
	ok, err := Until(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUntil_TimesOut(t *testing.T) {
	var calls atomic.Int32
	ok, err := Until(context.Background(), 20*time.Millisecond, time.Millisecond, func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestUntil_ConditionError(t *testing.T) {
	boom := errors.New("boom")
	ok, err := Until(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestUntil_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	ok, err := Until(ctx, time.Hour, time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestError(t *testing.T) {
	cause := errors.New("target closed")

	err := newError(KindAutomation, StepOTP, "Failed to enter OTP", cause)
	assert.Equal(t, "Failed to enter OTP: target closed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)

	nf := newError(KindNotFound, StepUsername, "Could not find Next button", nil)
	assert.Equal(t, "Could not find Next button", nf.Error())
	assert.ErrorIs(t, nf, ErrNotFound)
	assert.NotErrorIs(t, nf, ErrTimeout)

	assert.ErrorIs(t, newError(KindTimeout, StepPassword, "x", nil), ErrTimeout)
	assert.ErrorIs(t, newError(KindValidation, StepOTP, "x", nil), ErrValidation)
	assert.ErrorIs(t, newError(KindCanceled, StepOTP, "x", nil), ErrCanceled)
}

func TestWrapContext(t *testing.T) {
	err := wrapContext(StepUsername, "Could not find username field", context.DeadlineExceeded)
	assert.Equal(t, KindCanceled, err.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = wrapContext(StepUsername, "Could not find username field", errors.New("page crashed"))
	assert.Equal(t, KindAutomation, err.Kind)
	assert.Equal(t, "Could not find username field: page crashed", err.Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))

	wrapped := errors.Join(newError(KindValidation, StepOTP, "OTP must be 6 digits", nil))
	assert.Equal(t, "OTP must be 6 digits", Message(wrapped))
}
