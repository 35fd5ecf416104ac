// Package headless implements the terminal script front end.
//
// The script asks for credentials on standard input (the password is read
// without echo when stdin is a terminal), drives the whole login through
// login.Run, asks for the one-time code once the code page shows, prints a
// coloured step log and a summary, then keeps the browser open for a short
// inspection window before closing it.
//
//	┌──────────────────────────────┐
//	│       Headless Executor      │
//	│  - Prompts (stdin)           │
//	│  - Step log + summary        │
//	│  - Run artifacts             │
//	└──────────────┬───────────────┘
//	               │
//	               ▼
//	     ┌────────────────────┐
//	     │  login.Sequencer   │
//	     │  (one browser)     │
//	     └────────────────────┘
//
// Example usage:
//
//	config := headless.DefaultConfig()
//	config.Username = "alice"
//
//	executor, _ := headless.NewExecutor(browser.NewLauncher(), config)
//	if err := executor.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// A YAML run file can preset everything except the password and the code:
//
//	url: https://www.damancom.ma/fr/authentification
//	username: alice
//	headless: true
//	hold: 10s
//	logging:
//	  verbosity: verbose
//	artifacts:
//	  enabled: true
//	  output_dir: .otpgate/runs
package headless
