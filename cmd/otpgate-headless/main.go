// Package main provides the otpgate terminal script.
// It prompts for the Damancom credentials and the OTP on the terminal and
// drives a Chromium window through the login.
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
	"github.com/entrhq/otpgate/pkg/executor/headless"
	"github.com/entrhq/otpgate/pkg/logging"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Settings    string
	URL         string
	Username    string
	Headless    bool
	Hold        time.Duration
	Verbosity   string
	OutputDir   string
	ShowVersion bool

	set map[string]bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("otpgate-headless v%s\n", version)
		return
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		cancel()
		log.Printf("Login failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	config := &CLIConfig{set: make(map[string]bool)}

	flag.StringVar(&config.ConfigFile, "config", "", "Path to a run file (YAML)")
	flag.StringVar(&config.Settings, "settings", "", "Path to the settings file (default: ~/.otpgate/config.json)")
	flag.StringVar(&config.URL, "url", "", "Login page URL")
	flag.StringVar(&config.Username, "username", "", "Username (prompted when empty)")
	flag.BoolVar(&config.Headless, "headless", false, "Run the browser without a window")
	flag.DurationVar(&config.Hold, "hold", headless.DefaultHold, "How long the browser stays open after login")
	flag.StringVar(&config.Verbosity, "verbosity", "normal", "Output level: quiet, normal, verbose or debug")
	flag.StringVar(&config.OutputDir, "output", "", "Write execution.json and summary.md to this directory")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "otpgate-headless - Damancom OTP login from the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: otpgate-headless [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  otpgate-headless\n")
		fmt.Fprintf(os.Stderr, "  otpgate-headless -username alice -headless\n")
		fmt.Fprintf(os.Stderr, "  otpgate-headless -config run.yaml -output .otpgate/runs/today\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		config.set[f.Name] = true
	})
	return config
}

// run executes the terminal login
func run(ctx context.Context, cliConfig *CLIConfig) error {
	if err := appconfig.Initialize(cliConfig.Settings); err != nil {
		if !appconfig.IsInitialized() {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}
		log.Printf("Warning: %v", err)
	}

	execConfig, err := loadConfig(cliConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fileLog, err := logging.NewLogger("headless")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer fileLog.Close()

	loginCfg := appconfig.GetLogin()
	opts := appconfig.GetBrowser().Options()

	launcher := browser.NewLauncher()
	defer func() {
		if err := launcher.Shutdown(); err != nil {
			fileLog.Warnf("Failed to stop playwright: %v", err)
		}
	}()

	executor, err := headless.NewExecutor(launcher, execConfig,
		headless.WithSite(loginCfg.Site()),
		headless.WithBrowserOptions(opts),
		headless.WithTimings(loginCfg.Timings(opts.ElementTimeout)),
		headless.WithFileLogger(fileLog),
	)
	if err != nil {
		return err
	}

	return executor.Run(ctx)
}

// loadConfig builds the run configuration. Settings supply the defaults, the
// run file overrides them and explicit flags override both.
func loadConfig(cli *CLIConfig) (*headless.Config, error) {
	config := headless.DefaultConfig()

	loginCfg := appconfig.GetLogin()
	config.URL = loginCfg.Site().URL
	config.Hold, _ = loginCfg.Holds()
	config.Headless = appconfig.GetBrowser().Options().Headless

	if cli.ConfigFile != "" {
		fromFile, err := headless.LoadConfigOver(cli.ConfigFile, config)
		if err != nil {
			return nil, err
		}
		config = fromFile
	}

	if cli.set["url"] {
		config.URL = cli.URL
	}
	if cli.set["username"] {
		config.Username = cli.Username
	}
	if cli.set["headless"] {
		config.Headless = cli.Headless
	}
	if cli.set["hold"] {
		config.Hold = cli.Hold
	}
	if cli.set["verbosity"] {
		config.Logging.Verbosity = cli.Verbosity
	}
	if cli.set["output"] {
		config.Artifacts.Enabled = true
		config.Artifacts.OutputDir = cli.OutputDir
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
