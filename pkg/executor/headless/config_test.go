package headless

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/otpgate/pkg/site"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, site.DefaultURL, cfg.URL)
	assert.Equal(t, 10*time.Second, cfg.Hold)
	assert.False(t, cfg.Headless)
	assert.False(t, cfg.Artifacts.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"empty verbosity defaults to normal", func(c *Config) { c.Logging.Verbosity = "" }, false},
		{"unknown verbosity", func(c *Config) { c.Logging.Verbosity = "chatty" }, true},
		{"missing url", func(c *Config) { c.URL = "" }, true},
		{"negative hold", func(c *Config) { c.Hold = -time.Second }, true},
		{"artifacts without dir", func(c *Config) {
			c.Artifacts.Enabled = true
			c.Artifacts.OutputDir = ""
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "normal", cfg.Logging.Verbosity)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
username: alice
headless: true
hold: 2s
logging:
  verbosity: debug
artifacts:
  enabled: true
  output_dir: out
`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, site.DefaultURL, cfg.URL, "unset keys keep their defaults")
	assert.Equal(t, "alice", cfg.Username)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 2*time.Second, cfg.Hold)
	assert.Equal(t, "debug", cfg.Logging.Verbosity)
	assert.True(t, cfg.Artifacts.Enabled)
	assert.Equal(t, "out", cfg.Artifacts.OutputDir)
	assert.True(t, cfg.Artifacts.Screenshot)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hold: [not a duration"), 0600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: bob\n"), 0600))

	base := DefaultConfig()
	base.URL = "https://staging.example.test/login"
	base.Hold = time.Minute

	cfg, err := LoadConfigOver(path, base)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, "https://staging.example.test/login", cfg.URL)
	assert.Equal(t, time.Minute, cfg.Hold)
}
