package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/types"
)

// start launches a run on its own goroutine. The caller has validated creds.
func (m *model) start(creds login.Credentials) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.status = statusRunning
	m.step = login.StepUsername
	m.finalURL = ""

	// Drop a code left over from an earlier run.
	select {
	case <-m.otp:
	default:
	}

	headless := m.headless
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.run(ctx, creds, headless)
	}()
}

func (m *model) run(ctx context.Context, creds login.Credentials, headless bool) {
	cfg := m.cfg
	opts := cfg.browserOpts
	opts.Headless = headless

	m.send(types.NewProgressEvent(login.StepUsername, "Starting browser..."))
	page, err := cfg.launcher.Launch(ctx, opts)
	if err != nil {
		cfg.fileLog.Errorf("Browser launch failed: %v", err)
		m.send(runFinishedMsg{err: fmt.Errorf("failed to start browser: %w", err)})
		m.send(browserClosedMsg{})
		return
	}

	defer func() {
		if err := page.Close(); err != nil {
			cfg.fileLog.Warnf("Failed to close browser: %v", err)
		}
		m.send(browserClosedMsg{})
	}()

	seq, err := login.New(page, cfg.site,
		login.WithTimings(cfg.timings),
		login.WithReporter(login.Multi(
			login.ReporterFunc(func(event *types.LoginEvent) { m.send(event) }),
			cfg.fileLog,
		)),
	)
	if err != nil {
		m.send(runFinishedMsg{err: err})
		return
	}

	result, err := login.Run(ctx, seq, creds, login.OTPPrompterFunc(m.promptOTP))
	if err != nil {
		cfg.fileLog.Errorf("Login run ended: %v", err)
	} else {
		cfg.fileLog.Infof("Login run ended: %s %s", result.Outcome, result.URL)
	}
	m.send(runFinishedMsg{result: result, err: err})

	if cfg.hold > 0 && ctx.Err() == nil {
		m.send(types.NewProgressEvent(login.StepComplete,
			fmt.Sprintf("Browser stays open for %s. Press ctrl+x to close it now.", cfg.hold)))
		login.Hold(ctx, cfg.hold)
	}
}

// promptOTP asks the form for the code and waits for the modal's answer.
func (m *model) promptOTP(ctx context.Context) (string, error) {
	m.send(otpRequestMsg{})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case in := <-m.otp:
		if in == nil || in.IsCancel() {
			return "", login.ErrCanceled
		}
		return in.Content, nil
	}
}

// send hands msg to the program. Executor.Run drains the channel until
// every run has finished.
func (m *model) send(msg tea.Msg) {
	m.events <- msg
}
