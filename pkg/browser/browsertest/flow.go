package browsertest

import (
	"context"
	"sync"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/site"
)

// DashboardURL is where NewLoginFlow lands after a complete login.
const DashboardURL = "https://www.damancom.ma/fr/private/accueil"

// NewLoginFlow returns a page scripted to behave like the login pages
// described by s. The landing page shows the OTP gate; the gate reveals the
// identifier form; each submit button advances only when its field was filled.
// The final Validate click lands on DashboardURL with a logout link.
func NewLoginFlow(s *site.Site) *FakePage {
	p := NewFakePage()

	// Landing page
	p.Set(s.PageReady[0], 3)
	p.Set(s.OTPGate[0], 1)

	gate := s.OTPGate[0]
	username := s.Username[0]
	next := s.Next[1]
	password := s.Password[0]
	cont := s.Continue[3]
	validate := s.Validate[0]

	p.OnClick(gate, func(p *FakePage) {
		p.Remove(gate)
		p.Set(username, 1)
		p.Set(next, 1)
	})

	p.OnClick(next, func(p *FakePage) {
		if p.Value(username, 0) == "" {
			return
		}
		p.Remove(username)
		p.Remove(next)
		p.Set(password, 1)
		p.Set(cont, 1)
	})

	p.OnClick(cont, func(p *FakePage) {
		if p.Value(password, 0) == "" {
			return
		}
		p.Remove(password)
		p.Remove(cont)
		p.Set(s.OTPFields, site.OTPFieldCount)
		p.Set(validate, 1)
	})

	p.OnClick(validate, func(p *FakePage) {
		for i := 0; i < site.OTPFieldCount; i++ {
			if p.Value(s.OTPFields, i) == "" {
				return
			}
		}
		p.Remove(s.OTPFields)
		p.Remove(validate)
		p.Set(s.SuccessIndicators[0], 1)
		p.SetURL(DashboardURL)
		p.SetTitle("Espace privé")
	})

	return p
}

// Launcher hands out FakePages and records the options it was given.
type Launcher struct {
	// NewPage builds the page for each launch. Defaults to NewFakePage.
	NewPage func() *FakePage
	// Err, when set, fails every launch.
	Err error

	mu       sync.Mutex
	pages    []*FakePage
	launches []browser.Options
}

var _ browser.Launcher = (*Launcher)(nil)

// Launch returns a new FakePage.
func (l *Launcher) Launch(ctx context.Context, opts browser.Options) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches = append(l.launches, opts)
	if l.Err != nil {
		return nil, l.Err
	}

	newPage := l.NewPage
	if newPage == nil {
		newPage = NewFakePage
	}
	p := newPage()
	l.pages = append(l.pages, p)
	return p, nil
}

// Pages returns every page launched so far.
func (l *Launcher) Pages() []*FakePage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakePage(nil), l.pages...)
}

// Launches returns the options of every launch attempt.
func (l *Launcher) Launches() []browser.Options {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.Options(nil), l.launches...)
}
