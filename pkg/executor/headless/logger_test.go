package headless

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/entrhq/otpgate/pkg/types"
)

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level       LogLevel
		wantInfo    bool
		wantVerbose bool
		wantDebug   bool
	}{
		{LogLevelQuiet, false, false, false},
		{LogLevelNormal, true, false, false},
		{LogLevelVerbose, true, true, false},
		{LogLevelDebug, true, true, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		l := NewWriterLogger(tt.level, &buf)
		l.Infof("info line")
		l.Verbosef("verbose line")
		l.Debugf("debug line")
		l.Errorf("error line")

		out := buf.String()
		if got := strings.Contains(out, "info line"); got != tt.wantInfo {
			t.Errorf("level %d: info shown = %v, want %v", tt.level, got, tt.wantInfo)
		}
		if got := strings.Contains(out, "verbose line"); got != tt.wantVerbose {
			t.Errorf("level %d: verbose shown = %v, want %v", tt.level, got, tt.wantVerbose)
		}
		if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
			t.Errorf("level %d: debug shown = %v, want %v", tt.level, got, tt.wantDebug)
		}
		if !strings.Contains(out, "error line") {
			t.Errorf("level %d: errors must always be shown", tt.level)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"quiet":   LogLevelQuiet,
		"normal":  LogLevelNormal,
		"verbose": LogLevelVerbose,
		"debug":   LogLevelDebug,
		"":        LogLevelNormal,
		"loud":    LogLevelNormal,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestLoggerReport(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LogLevelVerbose, &buf)

	l.Report(types.NewStepStartEvent("username", "Submitting username"))
	l.Report(types.NewProgressEvent("username", "Filled username field").WithMetadata("candidate", "name(username)"))
	l.Report(types.NewWarningEvent("otp", "Validate button not found, continuing"))
	l.Report(types.NewStepFailedEvent("password", errors.New("Could not find password field")))
	l.Report(types.NewOutcomeEvent(&types.Outcome{Status: "unclear"}))

	out := buf.String()
	for _, want := range []string{
		"=== Step 1: Submitting username ===",
		"Filled username field (name(username))",
		"⚠ Warning: Validate button not found, continuing",
		"✗ Error: Could not find password field",
		"Login outcome unclear. Check the browser window.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggerSummary(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LogLevelQuiet, &buf)

	l.Summary(&ExecutionSummary{
		Target:   "https://example.test/login",
		Username: "alice",
		Status:   statusFailed,
		Error:    "Could not find Next button",
		Duration: 3 * time.Second,
	})

	out := buf.String()
	for _, want := range []string{"LOGIN SUMMARY", "FAILED", "alice", "Could not find Next button", "3s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
