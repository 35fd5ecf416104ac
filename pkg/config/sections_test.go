package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/otpgate/pkg/browser"
	"github.com/entrhq/otpgate/pkg/site"
)

func TestBrowserSection(t *testing.T) {
	s := NewBrowserSection()
	require.NoError(t, s.Validate())
	assert.Equal(t, browser.DefaultOptions(), s.Options())

	require.NoError(t, s.SetData(map[string]interface{}{
		"headless":          true,
		"viewport_width":    float64(1280),
		"viewport_height":   float64(720),
		"element_wait":      "3s",
		"page_load_timeout": float64(10 * time.Second),
		"unknown":           "ignored",
	}))
	require.NoError(t, s.Validate())

	opts := s.Options()
	assert.True(t, opts.Headless)
	assert.Equal(t, browser.Viewport{Width: 1280, Height: 720}, opts.Viewport)
	assert.Equal(t, 3*time.Second, opts.ElementTimeout)
	assert.Equal(t, 10*time.Second, opts.PageLoadTimeout)
	assert.Equal(t, browser.HideWebdriverScript, opts.InitScript)

	// Data survives a trip through SetData.
	copyOf := NewBrowserSection()
	require.NoError(t, copyOf.SetData(s.Data()))
	assert.Equal(t, s.Options(), copyOf.Options())

	s.Reset()
	assert.False(t, s.Headless)
	assert.Equal(t, 1920, s.ViewportWidth)
}

func TestBrowserSection_Errors(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
	}{
		{"headless not bool", map[string]interface{}{"headless": "yes"}},
		{"fractional width", map[string]interface{}{"viewport_width": 12.5}},
		{"bad duration", map[string]interface{}{"element_wait": "soon"}},
		{"user agent not string", map[string]interface{}{"user_agent": 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewBrowserSection().SetData(tt.data))
		})
	}

	s := NewBrowserSection()
	require.NoError(t, s.SetData(map[string]interface{}{"viewport_width": float64(20)}))
	assert.Error(t, s.Validate())

	s = NewBrowserSection()
	require.NoError(t, s.SetData(map[string]interface{}{"element_wait": "0s"}))
	assert.Error(t, s.Validate())
}

func TestLoginSection(t *testing.T) {
	s := NewLoginSection()
	require.NoError(t, s.Validate())
	assert.Equal(t, site.DefaultURL, s.URL)

	terminal, form := s.Holds()
	assert.Equal(t, 10*time.Second, terminal)
	assert.Equal(t, 60*time.Second, form)

	require.NoError(t, s.SetData(map[string]interface{}{
		"url":                  "https://staging.example.test/auth",
		"click_wait":           "2s",
		"form_hold":            "0s",
		"success_url_patterns": []interface{}{"https://staging.example.test/app/**"},
	}))
	require.NoError(t, s.Validate())

	st := s.Site()
	assert.Equal(t, "https://staging.example.test/auth", st.URL)
	require.NoError(t, st.Check())
	assert.True(t, st.MatchSuccessURL("https://staging.example.test/app/home"))

	timings := s.Timings(4 * time.Second)
	assert.Equal(t, 2*time.Second, timings.ClickWait)
	assert.Equal(t, 4*time.Second, timings.ElementWait)
	assert.Equal(t, 3*time.Second, timings.AfterLoad)

	copyOf := NewLoginSection()
	require.NoError(t, copyOf.SetData(s.Data()))
	assert.Equal(t, s.Site().SuccessURLPatterns, copyOf.Site().SuccessURLPatterns)
}

func TestLoginSection_Validate(t *testing.T) {
	s := NewLoginSection()
	require.NoError(t, s.SetData(map[string]interface{}{"success_url_patterns": []interface{}{"[open"}}))
	assert.Error(t, s.Validate())

	s = NewLoginSection()
	require.NoError(t, s.SetData(map[string]interface{}{"url": ""}))
	assert.Error(t, s.Validate())

	s = NewLoginSection()
	assert.Error(t, s.SetData(map[string]interface{}{"success_url_patterns": []interface{}{1}}))
}

func TestServerSection(t *testing.T) {
	s := NewServerSection()
	require.NoError(t, s.Validate())

	require.NoError(t, s.SetData(map[string]interface{}{
		"addr":         ":9000",
		"idle_timeout": "30m",
		"max_sessions": float64(10),
	}))
	require.NoError(t, s.Validate())

	addr, idle, maxSessions := s.Settings()
	assert.Equal(t, ":9000", addr)
	assert.Equal(t, 30*time.Minute, idle)
	assert.Equal(t, 10, maxSessions)

	require.NoError(t, s.SetData(map[string]interface{}{"idle_timeout": "5s"}))
	assert.Error(t, s.Validate())

	s.Reset()
	assert.Equal(t, "127.0.0.1:5000", s.Addr)
}
