// Package main provides the otpgate web service.
// It serves a viewer page and JSON step routes, keeping one headless
// browser per client session and streaming screenshots of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/otpgate/pkg/browser"
	appconfig "github.com/entrhq/otpgate/pkg/config"
	"github.com/entrhq/otpgate/pkg/logging"
	"github.com/entrhq/otpgate/pkg/server"
)

const (
	version = "0.1.0"

	// CookieKeyEnv holds the key that signs session cookies.
	CookieKeyEnv = "OTPGATE_COOKIE_KEY"
)

// Config holds the application configuration
type Config struct {
	Settings    string
	Addr        string
	MaxSessions int
	IdleTimeout time.Duration
	Visible     bool
	ShowVersion bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("otpgate-server v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		cancel()
		log.Fatalf("Server error: %v", err)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.Settings, "settings", "", "Path to the settings file (default: ~/.otpgate/config.json)")
	flag.StringVar(&config.Addr, "addr", "", "Listen address (overrides settings)")
	flag.IntVar(&config.MaxSessions, "max-sessions", 0, "Maximum concurrent sessions (overrides settings)")
	flag.DurationVar(&config.IdleTimeout, "idle-timeout", 0, "Evict sessions idle this long (overrides settings)")
	flag.BoolVar(&config.Visible, "visible", false, "Show the browser windows instead of running headless")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "otpgate-server - Damancom OTP login over HTTP\n\n")
		fmt.Fprintf(os.Stderr, "Usage: otpgate-server [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s  key that signs session cookies (random per start when unset)\n", CookieKeyEnv)
	}

	flag.Parse()
	return config
}

// run starts the server and blocks until ctx is canceled
func run(ctx context.Context, config *Config) error {
	if err := appconfig.Initialize(config.Settings); err != nil {
		if !appconfig.IsInitialized() {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}
		log.Printf("Warning: %v", err)
	}

	logger, err := logging.NewLogger("server")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer logger.Close()

	cfg := server.DefaultConfig()
	addr, idle, maxSessions := appconfig.GetServer().Settings()
	cfg.Addr, cfg.IdleTimeout, cfg.MaxSessions = addr, idle, maxSessions
	if config.Addr != "" {
		cfg.Addr = config.Addr
	}
	if config.MaxSessions > 0 {
		cfg.MaxSessions = config.MaxSessions
	}
	if config.IdleTimeout > 0 {
		cfg.IdleTimeout = config.IdleTimeout
	}

	loginCfg := appconfig.GetLogin()
	browserOpts := appconfig.GetBrowser().Options()
	cfg.Site = loginCfg.Site()
	cfg.Timings = loginCfg.Timings(browserOpts.ElementTimeout)
	cfg.Browser.UserAgent = browserOpts.UserAgent
	cfg.Browser.ElementTimeout = browserOpts.ElementTimeout
	cfg.Browser.PageLoadTimeout = browserOpts.PageLoadTimeout
	cfg.Browser.Headless = !config.Visible
	if key := os.Getenv(CookieKeyEnv); key != "" {
		cfg.CookieKey = []byte(key)
	}

	launcher := browser.NewLauncher()
	defer func() {
		if err := launcher.Shutdown(); err != nil {
			logger.Warnf("Failed to stop playwright: %v", err)
		}
	}()

	srv, err := server.New(launcher, cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}

	fmt.Printf("otpgate-server v%s listening on http://%s\n", version, cfg.Addr)
	if path := logger.LogPath(); path != "" {
		fmt.Printf("Logs: %s\n", path)
	}
	return srv.Run(ctx)
}
