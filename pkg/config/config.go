package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Load creates a manager over the file at configPath with the browser,
// login and server sections registered and loaded. An empty path means
// ~/.otpgate/config.json. A missing file yields defaults.
func Load(configPath string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	for _, section := range []Section{
		NewBrowserSection(),
		NewLoginSection(),
		NewServerSection(),
	} {
		if err := manager.RegisterSection(section); err != nil {
			return nil, err
		}
	}

	if err := manager.LoadAll(); err != nil {
		return manager, err
	}
	return manager, nil
}

// Initialize loads the configuration and installs it as the global manager.
// This should be called once at application startup. When a section holds
// invalid values the manager is still installed, with that section reset
// to defaults, and the error is returned for the caller to report.
func Initialize(configPath string) error {
	manager, err := Load(configPath)
	if manager == nil {
		return err
	}

	globalMu.Lock()
	globalManager = manager
	globalMu.Unlock()
	return err
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetBrowser returns the browser section from global config.
// Returns defaults if config is not initialized.
func GetBrowser() *BrowserSection {
	if s, ok := globalSection(SectionIDBrowser).(*BrowserSection); ok {
		return s
	}
	return NewBrowserSection()
}

// GetLogin returns the login section from global config.
// Returns defaults if config is not initialized.
func GetLogin() *LoginSection {
	if s, ok := globalSection(SectionIDLogin).(*LoginSection); ok {
		return s
	}
	return NewLoginSection()
}

// GetServer returns the server section from global config.
// Returns defaults if config is not initialized.
func GetServer() *ServerSection {
	if s, ok := globalSection(SectionIDServer).(*ServerSection); ok {
		return s
	}
	return NewServerSection()
}

func globalSection(id string) Section {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(id)
	if !ok {
		return nil
	}
	return section
}
