// Package browser launches and drives a controlled Chromium instance through Playwright.
//
// The package is the only place that talks to Playwright. Everything above it
// works against the Page interface, which keeps the login steps testable with
// a scripted fake (see package browsertest).
//
// # Architecture
//
// The package is built around two concepts:
//
//  1. Launcher: owns the Playwright driver process and starts browsers
//  2. Page: one browser, context and tab, addressed with locators
//
// # Fingerprint reduction
//
// Every launched browser gets the same treatment:
//
//   - sandbox and shared-memory flags for containerized execution
//   - the AutomationControlled blink feature disabled
//   - the default --enable-automation switch suppressed
//   - a fixed desktop user agent and window size
//   - an init script that hides navigator.webdriver from page scripts
//
// # Example Usage
//
//	launcher := browser.NewLauncher()
//	defer launcher.Shutdown()
//
//	page, err := launcher.Launch(ctx, browser.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer page.Close()
//
//	err = page.Goto(ctx, "https://example.com")
package browser
