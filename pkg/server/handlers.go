package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/logging"
	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/session"
	"github.com/entrhq/otpgate/pkg/types"
)

//go:embed viewer.html
var viewerHTML []byte

// Messages returned to clients that do not come from the sequencer.
const (
	msgNoSession  = "No active session"
	msgBadRequest = "Invalid request body"
)

// request is the JSON body accepted by every POST route. Each route reads
// only the fields it needs.
type request struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	OTP       string `json:"otp"`
}

type response struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	Step       string `json:"step,omitempty"`
	LoggedIn   *bool  `json:"logged_in,omitempty"`
	Status     string `json:"status,omitempty"`
	URL        string `json:"url,omitempty"`
}

func writeJSON(w http.ResponseWriter, payload response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, response{Success: false, Error: msg})
}

// decodeRequest reads the optional JSON body. An empty body is not an error.
func decodeRequest(r *http.Request) (request, error) {
	var req request
	if r.Body == nil {
		return req, nil
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

// token returns the session token from the cookie, falling back to the body.
func (s *Server) token(r *http.Request, req request) string {
	if id := s.cookieToken(r); id != "" {
		return id
	}
	return strings.TrimSpace(req.SessionID)
}

// cookieToken returns the session bound to the client's cookie, if any.
func (s *Server) cookieToken(r *http.Request) string {
	sess, err := s.cookies.Get(r, cookieName)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[cookieTokenKey].(string)
	return id
}

func (s *Server) lookup(r *http.Request, req request) (*session.Entry, bool) {
	id := s.token(r, req)
	if id == "" {
		return nil, false
	}
	entry, err := s.registry.Get(id)
	if err != nil {
		return nil, false
	}
	return entry, true
}

// screenshot captures and encodes the page. Failures are logged and yield
// an empty string so the step result still reaches the client.
func (s *Server) screenshot(r *http.Request, entry *session.Entry) string {
	data, err := entry.Seq.Page().Screenshot(r.Context())
	if err != nil {
		s.logger.Warnf("Screenshot failed for session %s: %v", entry.ID, err)
		return ""
	}
	encoded, err := browser.EncodeScreenshot(data, browser.ScreenshotWidth, browser.ScreenshotHeight)
	if err != nil {
		s.logger.Warnf("Screenshot encoding failed for session %s: %v", entry.ID, err)
		return ""
	}
	return encoded
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(viewerHTML)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	// A browser left over from an earlier start on this client is released.
	// Only the cookie counts here; a session_id in the body is never evicted.
	if old := s.cookieToken(r); old != "" {
		_ = s.registry.Evict(old)
	}

	entry, err := s.startSession(r)
	s.metrics.observeStep(stepStart, err)
	s.updateActive()
	if err != nil {
		s.logger.Errorf("Failed to start session: %v", err)
		writeError(w, login.Message(err))
		return
	}

	// A cookie signed with an old key decodes with an error but still yields
	// a fresh session to overwrite.
	if sess, _ := s.cookies.Get(r, cookieName); sess != nil {
		sess.Values[cookieTokenKey] = entry.ID
		if err := sess.Save(r, w); err != nil {
			s.logger.Warnf("Failed to save session cookie: %v", err)
		}
	}

	writeJSON(w, response{
		Success:    true,
		SessionID:  entry.ID,
		Screenshot: s.screenshot(r, entry),
		Step:       entry.Seq.Step(),
		Status:     entry.Status(),
	})
}

func (s *Server) startSession(r *http.Request) (*session.Entry, error) {
	page, err := s.launcher.Launch(r.Context(), s.cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	events := &eventLogger{logger: s.logger.With("session")}
	seq, err := login.New(page, s.cfg.Site,
		login.WithTimings(s.cfg.Timings),
		login.WithReporter(events),
	)
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	entry, err := s.registry.Create(seq)
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	events.id = entry.ID

	// Nobody else knows the token yet, so the lock is uncontended.
	entry.TryLock()
	defer entry.Unlock()

	if err := seq.Open(r.Context()); err != nil {
		_ = s.registry.Evict(entry.ID)
		return nil, err
	}
	entry.SetStatus("ready")
	s.logger.Infof("Started session %s", entry.ID)
	return entry, nil
}

func (s *Server) handleGetScreenshot(w http.ResponseWriter, r *http.Request) {
	req, _ := decodeRequest(r)
	entry, ok := s.lookup(r, req)
	if !ok {
		writeError(w, msgNoSession)
		return
	}

	writeJSON(w, response{
		Success:    true,
		Screenshot: s.screenshot(r, entry),
		Step:       entry.Seq.Step(),
		Status:     entry.Status(),
	})
}

// runStep resolves the session, claims it and runs fn. It writes the error
// response itself and returns nil when the step could not run or failed.
func (s *Server) runStep(w http.ResponseWriter, r *http.Request, step string, fn func(*session.Entry, request) error) *session.Entry {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, msgBadRequest)
		return nil
	}

	entry, ok := s.lookup(r, req)
	if !ok {
		writeError(w, msgNoSession)
		return nil
	}
	if !entry.TryLock() {
		writeError(w, session.ErrBusy.Error())
		return nil
	}
	defer entry.Unlock()

	err = fn(entry, req)
	s.metrics.observeStep(step, err)
	if err != nil {
		s.logger.Warnf("Session %s: %s step failed: %v", entry.ID, step, err)
		entry.SetStatus("error")
		writeError(w, login.Message(err))
		return nil
	}
	return entry
}

func (s *Server) handleSubmitUsername(w http.ResponseWriter, r *http.Request) {
	entry := s.runStep(w, r, stepUsername, func(e *session.Entry, req request) error {
		return e.Seq.SubmitUsername(r.Context(), req.Username)
	})
	if entry == nil {
		return
	}
	entry.SetStatus("ready")
	writeJSON(w, response{
		Success:    true,
		Screenshot: s.screenshot(r, entry),
		Step:       entry.Seq.Step(),
		Status:     entry.Status(),
	})
}

func (s *Server) handleSubmitPassword(w http.ResponseWriter, r *http.Request) {
	entry := s.runStep(w, r, stepPassword, func(e *session.Entry, req request) error {
		return e.Seq.SubmitPassword(r.Context(), req.Password)
	})
	if entry == nil {
		return
	}
	entry.SetStatus("ready")
	writeJSON(w, response{
		Success:    true,
		Screenshot: s.screenshot(r, entry),
		Step:       entry.Seq.Step(),
		Status:     entry.Status(),
	})
}

func (s *Server) handleSubmitOTP(w http.ResponseWriter, r *http.Request) {
	var result *login.Result
	entry := s.runStep(w, r, stepOTP, func(e *session.Entry, req request) error {
		var err error
		result, err = e.Seq.SubmitOTP(r.Context(), strings.TrimSpace(req.OTP))
		return err
	})
	if entry == nil {
		return
	}

	loggedIn := result.LoggedIn()
	entry.SetStatus(string(result.Outcome))
	s.logger.Infof("Session %s finished: %s (%s)", entry.ID, result.Outcome, result.URL)

	writeJSON(w, response{
		Success:    true,
		Screenshot: s.screenshot(r, entry),
		Step:       entry.Seq.Step(),
		LoggedIn:   &loggedIn,
		Status:     entry.Status(),
		URL:        result.URL,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	req, _ := decodeRequest(r)
	if id := s.token(r, req); id != "" {
		_ = s.registry.Evict(id)
		s.logger.Infof("Cleaned up session %s", id)
	}
	s.updateActive()

	if sess, err := s.cookies.Get(r, cookieName); err == nil {
		delete(sess.Values, cookieTokenKey)
		sess.Options.MaxAge = -1
		_ = sess.Save(r, w)
	}
	writeJSON(w, response{Success: true})
}

// eventLogger writes sequencer events to the server log, tagged with the
// session token.
type eventLogger struct {
	logger *logging.Logger
	id     string
}

func (l *eventLogger) Report(event *types.LoginEvent) {
	switch event.Type {
	case types.EventTypeWarning:
		l.logger.Warnf("[%s] %s: %s", l.id, event.Step, event.Message)
	case types.EventTypeStepFailed:
		l.logger.Errorf("[%s] %s: %v", l.id, event.Step, event.Error)
	case types.EventTypeProgress:
		l.logger.Debugf("[%s] %s: %s", l.id, event.Step, event.Message)
	default:
		l.logger.Infof("[%s] %s: %s", l.id, event.Step, event.Message)
	}
}
