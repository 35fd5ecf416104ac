// Package server exposes the login steps over HTTP.
//
// Each POST route runs one step of a login.Sequencer and answers with a JSON
// body carrying a downscaled screenshot of the page, so a browser-based
// viewer can follow the remote session. The session token travels in a
// signed cookie and may also be passed as session_id in the request body.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/logging"
	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/session"
	"github.com/entrhq/otpgate/pkg/site"
)

const (
	// DefaultAddr is the listen address used when Config.Addr is empty.
	DefaultAddr = "127.0.0.1:5000"

	cookieName     = "otpgate"
	cookieTokenKey = "session_id"
	sweepInterval  = time.Minute
	shutdownGrace  = 10 * time.Second
)

// Config holds everything a Server needs besides its launcher.
type Config struct {
	Addr        string
	Site        *site.Site
	Browser     browser.Options
	Timings     login.Timings
	MaxSessions int
	IdleTimeout time.Duration

	// CookieKey signs the session cookie. A random key is generated when empty,
	// which invalidates cookies on restart.
	CookieKey []byte
}

// DefaultConfig returns headless 1280x720 browsers against the default site.
func DefaultConfig() Config {
	opts := browser.DefaultOptions()
	opts.Headless = true
	opts.Viewport = browser.Viewport{Width: browser.ScreenshotWidth, Height: browser.ScreenshotHeight}

	return Config{
		Addr:        DefaultAddr,
		Site:        site.Damancom(),
		Browser:     opts,
		Timings:     login.DefaultTimings(),
		MaxSessions: session.DefaultMaxSessions,
		IdleTimeout: session.DefaultIdleTimeout,
	}
}

// Server serves the viewer page and the step routes.
type Server struct {
	cfg      Config
	launcher browser.Launcher
	registry *session.Registry
	cookies  sessions.Store
	metrics  *metrics
	logger   *logging.Logger
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCookieStore replaces the cookie-backed session store.
func WithCookieStore(store sessions.Store) Option {
	return func(s *Server) {
		if store != nil {
			s.cookies = store
		}
	}
}

// New creates a server. The launcher is called once per started session.
func New(launcher browser.Launcher, cfg Config, opts ...Option) (*Server, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if cfg.Site == nil {
		return nil, fmt.Errorf("site is required")
	}
	if err := cfg.Site.Check(); err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}
	if err := cfg.Browser.Validate(); err != nil {
		return nil, fmt.Errorf("invalid browser options: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	key := cfg.CookieKey
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, fmt.Errorf("failed to generate cookie key")
		}
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.IdleTimeout.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		cfg:      cfg,
		launcher: launcher,
		registry: session.NewRegistry(
			session.WithMaxSessions(cfg.MaxSessions),
			session.WithIdleTimeout(cfg.IdleTimeout),
		),
		cookies: store,
		metrics: newMetrics(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.Handle("/metrics", s.metrics.handler()).Methods("GET")

	r.HandleFunc("/start_session", s.handleStartSession).Methods("POST")
	r.HandleFunc("/get_screenshot", s.handleGetScreenshot).Methods("POST")
	r.HandleFunc("/submit_username", s.handleSubmitUsername).Methods("POST")
	r.HandleFunc("/submit_password", s.handleSubmitPassword).Methods("POST")
	r.HandleFunc("/submit_otp", s.handleSubmitOTP).Methods("POST")
	r.HandleFunc("/cleanup", s.handleCleanup).Methods("POST")
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the live session table.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run listens on the configured address until ctx is canceled, then shuts
// the listener down and closes every browser.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.registry.Sweep(sweepCtx, sweepInterval, func(ids []string) {
		for _, id := range ids {
			s.logger.Infof("Evicted idle session %s", id)
		}
		s.updateActive()
	})

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		err = srv.Shutdown(shutdownCtx)
		cancel()
	}

	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close evicts every session and closes its browser.
func (s *Server) Close() {
	if n := s.registry.Len(); n > 0 {
		s.logger.Infof("Closing %d session(s)", n)
	}
	s.registry.CloseAll()
	s.updateActive()
}

func (s *Server) updateActive() {
	s.metrics.activeSessions.Set(float64(s.registry.Len()))
}
