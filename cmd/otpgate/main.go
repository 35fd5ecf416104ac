// Package main provides the otpgate login form.
// It drives a Chromium window through the Damancom username, password and
// OTP pages while the user fills in a terminal form.
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
	"github.com/entrhq/otpgate/pkg/executor/tui"
	"github.com/entrhq/otpgate/pkg/logging"
)

const version = "0.1.0"

// Config holds the application configuration
type Config struct {
	Settings    string
	URL         string
	Headless    bool
	Hold        time.Duration
	ShowVersion bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("otpgate v%s\n", version)
		return
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.Settings, "settings", "", "Path to the settings file (default: ~/.otpgate/config.json)")
	flag.StringVar(&config.URL, "url", "", "Login page URL (overrides settings)")
	flag.BoolVar(&config.Headless, "headless", false, "Start with the headless toggle on")
	flag.DurationVar(&config.Hold, "hold", -1, "How long the browser stays open after login (overrides settings)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "otpgate - Damancom OTP login form\n\n")
		fmt.Fprintf(os.Stderr, "Usage: otpgate [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys:\n")
		fmt.Fprintf(os.Stderr, "  Tab        switch between username and password\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+S     start the login\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+X     stop and close the browser\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+P     show or hide the password\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+T     toggle headless mode\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+Y     copy the final URL\n")
	}

	flag.Parse()
	return config
}

// run executes the main application logic
func run(ctx context.Context, config *Config) error {
	if err := appconfig.Initialize(config.Settings); err != nil {
		if !appconfig.IsInitialized() {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}
		log.Printf("Warning: %v", err)
	}

	fileLog, err := logging.NewLogger("form")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer fileLog.Close()

	loginCfg := appconfig.GetLogin()
	opts := appconfig.GetBrowser().Options()
	if config.Headless {
		opts.Headless = true
	}

	st := loginCfg.Site()
	if config.URL != "" {
		st.URL = config.URL
	}

	_, hold := loginCfg.Holds()
	if config.Hold >= 0 {
		hold = config.Hold
	}

	launcher := browser.NewLauncher()
	defer func() {
		if err := launcher.Shutdown(); err != nil {
			fileLog.Warnf("Failed to stop playwright: %v", err)
		}
	}()

	executor, err := tui.NewExecutor(launcher,
		tui.WithSite(st),
		tui.WithBrowserOptions(opts),
		tui.WithTimings(loginCfg.Timings(opts.ElementTimeout)),
		tui.WithHold(hold),
		tui.WithFileLogger(fileLog),
	)
	if err != nil {
		return err
	}

	return executor.Run(ctx)
}
