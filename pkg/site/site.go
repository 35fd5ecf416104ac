// Package site holds the selector tables for the target login page.
//
// Every locator here encodes an assumption about the third-party page:
// French button labels, placeholder substrings and the attributes of the
// one-time-code inputs. A change on the site breaks these lists together.
package site

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/entrhq/otpgate/pkg/locator"
)

// DefaultURL is the authentication page of the target site.
const DefaultURL = "https://www.damancom.ma/fr/authentification"

// OTPFieldCount is the number of single-digit inputs on the code page.
const OTPFieldCount = 6

// Site describes where the login page lives and how to find its elements.
type Site struct {
	URL string

	// PageReady are checked together: the page counts as loaded when any
	// of them matches at least one element.
	PageReady locator.List

	OTPGate       locator.List
	Username      locator.List
	Next          locator.List
	Password      locator.List
	PasswordReady locator.List
	Continue      locator.List
	OTPFields     locator.Locator
	Validate      locator.List

	SuccessIndicators locator.List

	// SuccessURLPatterns are glob patterns matched against the final URL.
	// A match counts as a logged-in indicator.
	SuccessURLPatterns []string
}

// Damancom returns the selector table for the damancom.ma login flow.
func Damancom() *Site {
	return &Site{
		URL: DefaultURL,
		PageReady: locator.List{
			locator.ByTag("button"),
			locator.ByTag("input"),
		},
		OTPGate: locator.List{
			locator.ByXPath(`//button[contains(@class, 'btn-primary') and contains(text(), "S'authentifier avec OTP")]`),
			locator.ByXPath(`//button[contains(normalize-space(.), "S'authentifier avec OTP")]`),
			locator.ByXPath(`//button[contains(., 'OTP')]`),
		},
		Username: locator.List{
			locator.ByXPath(`//input[contains(@placeholder,'IDENTIFIANT') or contains(@placeholder,'Identifiant')]`),
			locator.ByName("username"),
			locator.ByName("identifiant"),
			locator.ByName("identite"),
			locator.ByName("email"),
			locator.ByID("username"),
			locator.ByID("identifiant"),
			locator.ByXPath(`//input[@type='text']`),
		},
		Next: locator.List{
			locator.ByXPath(`//button[contains(@class, 'btn-primary') and contains(text(), 'Suivant')]`),
			locator.ByXPath(`//button[contains(normalize-space(.), 'Suivant')]`),
			locator.ByXPath(`//button[contains(., 'Suivant')]`),
		},
		Password: locator.List{
			locator.ByXPath(`//input[contains(@placeholder,'MOT DE PASSE') or contains(@placeholder,'Mot de passe')]`),
			locator.ByName("password"),
			locator.ByName("motdepasse"),
			locator.ByID("password"),
			locator.ByXPath(`//input[@type='password']`),
		},
		PasswordReady: locator.List{
			locator.ByXPath(`//input[contains(@placeholder,'MOT DE PASSE') or contains(@placeholder,'Mot de passe')]`),
			locator.ByName("password"),
			locator.ByID("password"),
			locator.ByXPath(`//input[@type='password']`),
		},
		Continue: locator.List{
			locator.ByXPath(`//button[contains(@class, 'btn-primary') and contains(text(), 'Suivant')]`),
			locator.ByXPath(`//button[contains(normalize-space(.), 'Suivant')]`),
			locator.ByXPath(`//button[contains(., 'Suivant')]`),
			locator.ByXPath(`//button[contains(normalize-space(.), 'Continuer')]`),
			locator.ByXPath(`//button[@type='submit']`),
		},
		OTPFields: locator.ByXPath(`//input[@type='tel' and @maxlength='1']`),
		Validate: locator.List{
			locator.ByXPath(`//button[contains(normalize-space(.), 'Valider')]`),
		},
		SuccessIndicators: locator.List{
			locator.ByXPath(`//a[contains(., 'Logout') or contains(., 'Déconnexion') or contains(., 'Se déconnecter')]`),
			locator.ByXPath(`//div[contains(@class,'dashboard')]`),
			locator.ByXPath(`//h1[contains(.,'Bienvenue')]`),
			locator.ByXPath(`//a[contains(@href,'/private/')]`),
		},
	}
}

// Check validates the table and the success URL patterns. It does not
// modify s, so one Site can back many sequencers at once.
func (s *Site) Check() error {
	if s.URL == "" {
		return fmt.Errorf("site url is required")
	}

	lists := map[string]locator.List{
		"page_ready":         s.PageReady,
		"otp_gate":           s.OTPGate,
		"username":           s.Username,
		"next":               s.Next,
		"password":           s.Password,
		"password_ready":     s.PasswordReady,
		"continue":           s.Continue,
		"validate":           s.Validate,
		"success_indicators": s.SuccessIndicators,
	}
	for name, list := range lists {
		if err := list.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := s.OTPFields.Validate(); err != nil {
		return fmt.Errorf("otp_fields: %w", err)
	}

	_, err := s.SuccessMatcher()
	return err
}

// URLMatcher holds compiled success URL patterns.
type URLMatcher []glob.Glob

// Match reports whether url matches one of the patterns.
func (m URLMatcher) Match(url string) bool {
	for _, g := range m {
		if g.Match(url) {
			return true
		}
	}
	return false
}

// SuccessMatcher compiles SuccessURLPatterns.
func (s *Site) SuccessMatcher() (URLMatcher, error) {
	m := make(URLMatcher, 0, len(s.SuccessURLPatterns))
	for _, pattern := range s.SuccessURLPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid success url pattern %q: %w", pattern, err)
		}
		m = append(m, g)
	}
	return m, nil
}

// MatchSuccessURL reports whether url matches one of the success patterns.
// Invalid patterns never match.
func (s *Site) MatchSuccessURL(url string) bool {
	m, err := s.SuccessMatcher()
	if err != nil {
		return false
	}
	return m.Match(url)
}
