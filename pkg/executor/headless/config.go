package headless

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/otpgate/pkg/site"
)

// DefaultHold is how long the browser stays open after the run.
const DefaultHold = 10 * time.Second

// Config represents the configuration for a terminal login run
type Config struct {
	// Login page URL
	URL string `yaml:"url" json:"url"`

	// Username to submit. Prompted for when empty.
	Username string `yaml:"username" json:"username"`

	// Run the browser without a window
	Headless bool `yaml:"headless" json:"headless"`

	// How long to keep the browser open once the run ends
	Hold time.Duration `yaml:"hold" json:"hold"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Artifacts configuration
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// ArtifactConfig defines where run reports are written
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Screenshot saves a PNG of the final page when the outcome is not a
	// confirmed login
	Screenshot bool `yaml:"screenshot" json:"screenshot"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}

	if c.Hold < 0 {
		return fmt.Errorf("hold cannot be negative")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts are enabled")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// DefaultConfig returns a visible-browser run against the default site
func DefaultConfig() *Config {
	return &Config{
		URL:  site.DefaultURL,
		Hold: DefaultHold,
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
		Artifacts: ArtifactConfig{
			Enabled:    false,
			OutputDir:  ".otpgate/runs",
			Screenshot: true,
		},
	}
}

// LoadConfig reads a YAML run file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOver(path, DefaultConfig())
}

// LoadConfigOver reads the run file at path on top of base. Keys missing
// from the file keep base's values. base is modified and returned.
func LoadConfigOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := base
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}
