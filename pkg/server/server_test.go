package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/otpgate/pkg/browser/browsertest"
	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/site"
)

type testEnv struct {
	server   *Server
	http     *httptest.Server
	launcher *browsertest.Launcher
	site     *site.Site
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	st := site.Damancom()
	launcher := &browsertest.Launcher{
		NewPage: func() *browsertest.FakePage { return browsertest.NewLoginFlow(st) },
	}

	cfg := DefaultConfig()
	cfg.Site = st
	cfg.Timings = login.NoDelay()
	cfg.CookieKey = []byte("0123456789abcdef0123456789abcdef")
	for _, m := range mutate {
		m(&cfg)
	}

	srv, err := New(launcher, cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &testEnv{server: srv, http: ts, launcher: launcher, site: st}
}

// client returns an HTTP client that keeps cookies, like a browser tab.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func post(t *testing.T, c *http.Client, url string, body interface{}) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := c.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) post(t *testing.T, c *http.Client, path string, body interface{}) response {
	t.Helper()
	return post(t, c, e.http.URL+path, body)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Site = nil
	_, err = New(&browsertest.Launcher{}, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Browser.Viewport.Width = 10
	_, err = New(&browsertest.Launcher{}, cfg)
	assert.Error(t, err)

	srv, err := New(&browsertest.Launcher{}, DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())
}

func TestServer_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	start := env.post(t, c, "/start_session", nil)
	require.True(t, start.Success, start.Error)
	assert.NotEmpty(t, start.SessionID)
	assert.NotEmpty(t, start.Screenshot)
	assert.Equal(t, "username", start.Step)

	launches := env.launcher.Launches()
	require.Len(t, launches, 1)
	assert.True(t, launches[0].Headless)
	assert.Equal(t, 1280, launches[0].Viewport.Width)
	assert.Equal(t, 720, launches[0].Viewport.Height)

	user := env.post(t, c, "/submit_username", map[string]string{"username": "alice"})
	require.True(t, user.Success, user.Error)
	assert.Equal(t, "password", user.Step)
	assert.NotEmpty(t, user.Screenshot)

	pass := env.post(t, c, "/submit_password", map[string]string{"password": "secret"})
	require.True(t, pass.Success, pass.Error)
	assert.Equal(t, "otp", pass.Step)

	otp := env.post(t, c, "/submit_otp", map[string]string{"otp": "123456"})
	require.True(t, otp.Success, otp.Error)
	require.NotNil(t, otp.LoggedIn)
	assert.True(t, *otp.LoggedIn)
	assert.Equal(t, browsertest.DashboardURL, otp.URL)
	assert.Equal(t, "complete", otp.Step)
	assert.Equal(t, "logged_in", otp.Status)

	page := env.launcher.Pages()[0]
	assert.Equal(t, "alice", page.Value(env.site.Username[0], 0))
	assert.Equal(t, "secret", page.Value(env.site.Password[0], 0))
	for i, d := range "123456" {
		assert.Equal(t, string(d), page.Value(env.site.OTPFields, i))
	}

	shot := env.post(t, c, "/get_screenshot", nil)
	require.True(t, shot.Success)
	assert.Equal(t, "complete", shot.Step)
}

func TestServer_NoActiveSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, path := range []string{"/get_screenshot", "/submit_username", "/submit_password", "/submit_otp"} {
		t.Run(path, func(t *testing.T) {
			resp := env.post(t, c, path, map[string]string{"username": "alice", "password": "x", "otp": "123456"})
			assert.False(t, resp.Success)
			assert.Equal(t, "No active session", resp.Error)
		})
	}

	resp := env.post(t, c, "/submit_username", map[string]string{"session_id": "unknown", "username": "alice"})
	assert.Equal(t, "No active session", resp.Error)
	assert.Empty(t, env.launcher.Launches())
}

func TestServer_CleanupIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	// Nothing to clean up yet.
	assert.True(t, env.post(t, c, "/cleanup", nil).Success)

	require.True(t, env.post(t, c, "/start_session", nil).Success)
	assert.Equal(t, 1, env.server.Registry().Len())

	assert.True(t, env.post(t, c, "/cleanup", nil).Success)
	assert.True(t, env.post(t, c, "/cleanup", nil).Success)
	assert.True(t, env.post(t, c, "/cleanup", map[string]string{"session_id": "never-existed"}).Success)

	assert.Equal(t, 0, env.server.Registry().Len())
	assert.Equal(t, 1, env.launcher.Pages()[0].CloseCount())

	resp := env.post(t, c, "/get_screenshot", nil)
	assert.Equal(t, "No active session", resp.Error)
}

func TestServer_StepErrorsKeepStep(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	require.True(t, env.post(t, c, "/start_session", nil).Success)

	resp := env.post(t, c, "/submit_username", map[string]string{"username": "  "})
	assert.False(t, resp.Success)
	assert.Equal(t, "Username required", resp.Error)

	resp = env.post(t, c, "/submit_otp", map[string]string{"otp": "123456"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Cannot run otp step while at step username", resp.Error)

	shot := env.post(t, c, "/get_screenshot", nil)
	assert.Equal(t, "username", shot.Step)
	assert.Equal(t, "error", shot.Status)

	// The same step can be retried.
	resp = env.post(t, c, "/submit_username", map[string]string{"username": "alice"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "password", resp.Step)
	assert.Equal(t, "ready", resp.Status)
}

func TestServer_InvalidOTPRejectedBeforeFill(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	require.True(t, env.post(t, c, "/start_session", nil).Success)
	require.True(t, env.post(t, c, "/submit_username", map[string]string{"username": "alice"}).Success)
	require.True(t, env.post(t, c, "/submit_password", map[string]string{"password": "secret"}).Success)

	for _, code := range []string{"12345", "1234567", "12a456", ""} {
		resp := env.post(t, c, "/submit_otp", map[string]string{"otp": code})
		assert.False(t, resp.Success, code)
		assert.Equal(t, "OTP must be 6 digits", resp.Error, code)
	}

	page := env.launcher.Pages()[0]
	for _, f := range page.Fills() {
		assert.NotEqual(t, env.site.OTPFields.Selector(), f.Selector)
	}
}

func TestServer_LaunchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.launcher.Err = errors.New("chromium missing")
	c := env.client(t)

	resp := env.post(t, c, "/start_session", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "failed to launch browser")
	assert.Contains(t, resp.Error, "chromium missing")
	assert.Equal(t, 0, env.server.Registry().Len())
}

func TestServer_OpenFailureEvictsSession(t *testing.T) {
	env := newTestEnv(t)
	env.launcher.NewPage = browsertest.NewFakePage // nothing ever appears
	c := env.client(t)

	resp := env.post(t, c, "/start_session", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "Login page did not load within expected time", resp.Error)
	assert.Equal(t, 0, env.server.Registry().Len())
	assert.Equal(t, 1, env.launcher.Pages()[0].CloseCount())
}

func TestServer_BusySession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	start := env.post(t, c, "/start_session", nil)
	require.True(t, start.Success)

	entry, err := env.server.Registry().Get(start.SessionID)
	require.NoError(t, err)
	require.True(t, entry.TryLock())

	resp := env.post(t, c, "/submit_username", map[string]string{"username": "alice"})
	assert.False(t, resp.Success)
	assert.Equal(t, "step already in progress", resp.Error)

	entry.Unlock()
	resp = env.post(t, c, "/submit_username", map[string]string{"username": "alice"})
	assert.True(t, resp.Success, resp.Error)
}

func TestServer_SessionLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.MaxSessions = 1 })

	first := env.post(t, env.client(t), "/start_session", nil)
	require.True(t, first.Success)

	second := env.post(t, env.client(t), "/start_session", nil)
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "too many active sessions")

	pages := env.launcher.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].CloseCount())
	assert.Equal(t, 1, pages[1].CloseCount())
}

func TestServer_RestartReplacesSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	first := env.post(t, c, "/start_session", nil)
	second := env.post(t, c, "/start_session", nil)
	require.True(t, second.Success)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	assert.Equal(t, 1, env.server.Registry().Len())
	assert.Equal(t, 1, env.launcher.Pages()[0].CloseCount())
}

func TestServer_SessionIDInBody(t *testing.T) {
	env := newTestEnv(t)
	c := &http.Client{} // no cookie jar

	start := env.post(t, c, "/start_session", nil)
	require.True(t, start.Success)

	resp := env.post(t, c, "/submit_username", map[string]string{"username": "alice"})
	assert.Equal(t, "No active session", resp.Error)

	resp = env.post(t, c, "/submit_username", map[string]string{"session_id": start.SessionID, "username": "alice"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "password", resp.Step)

	assert.True(t, env.post(t, c, "/cleanup", map[string]string{"session_id": start.SessionID}).Success)
	assert.Equal(t, 0, env.server.Registry().Len())
}

func TestServer_StartIgnoresSessionIDInBody(t *testing.T) {
	env := newTestEnv(t)

	owner := env.post(t, env.client(t), "/start_session", nil)
	require.True(t, owner.Success)

	other := env.post(t, &http.Client{}, "/start_session", map[string]string{"session_id": owner.SessionID})
	require.True(t, other.Success)

	assert.Equal(t, 2, env.server.Registry().Len())
	_, err := env.server.Registry().Get(owner.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, 0, env.launcher.Pages()[0].CloseCount())
}

func TestServer_ConcurrentSessions(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxSessions = 8
		cfg.Site.SuccessURLPatterns = []string{"https://www.damancom.ma/*/private/**"}
	})

	const clients = 8
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func() {
			errs <- runLogin(env)
		}()
	}
	for i := 0; i < clients; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, clients, env.server.Registry().Len())
}

// runLogin walks one cookie-holding client through the whole login.
func runLogin(env *testEnv) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	c := &http.Client{Jar: jar}

	steps := []struct {
		path string
		body map[string]string
	}{
		{"/start_session", nil},
		{"/submit_username", map[string]string{"username": "alice"}},
		{"/submit_password", map[string]string{"password": "secret"}},
		{"/submit_otp", map[string]string{"otp": "123456"}},
	}
	var last response
	for _, step := range steps {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(step.body); err != nil {
			return err
		}
		resp, err := c.Post(env.http.URL+step.path, "application/json", &buf)
		if err != nil {
			return err
		}
		err = json.NewDecoder(resp.Body).Decode(&last)
		resp.Body.Close()
		if err != nil {
			return err
		}
		if !last.Success {
			return fmt.Errorf("%s: %s", step.path, last.Error)
		}
	}
	if last.Status != "logged_in" {
		return fmt.Errorf("unexpected status %q", last.Status)
	}
	return nil
}

func TestServer_BadRequestBody(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	require.True(t, env.post(t, c, "/start_session", nil).Success)

	resp, err := c.Post(env.http.URL+"/submit_username", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Success)
	assert.Equal(t, "Invalid request body", out.Error)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_StaticRoutes(t *testing.T) {
	env := newTestEnv(t)

	code, body := get(t, env.http.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	code, body = get(t, env.http.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/start_session")

	resp, err := http.Get(env.http.URL + "/start_session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	require.True(t, env.post(t, c, "/start_session", nil).Success)
	require.False(t, env.post(t, c, "/submit_password", map[string]string{"password": "x"}).Success)

	_, body := get(t, env.http.URL+"/metrics")
	assert.Contains(t, body, `otpgate_steps_total{result="ok",step="start"} 1`)
	assert.Contains(t, body, `otpgate_steps_total{result="error",step="password"} 1`)
	assert.Contains(t, body, "otpgate_active_sessions 1")

	require.True(t, env.post(t, c, "/cleanup", nil).Success)
	_, body = get(t, env.http.URL+"/metrics")
	assert.Contains(t, body, "otpgate_active_sessions 0")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	st := site.Damancom()
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.FakePage { return browsertest.NewLoginFlow(st) }}
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.Timings = login.NoDelay()

	srv, err := New(launcher, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, srv.Registry().Len())
}
