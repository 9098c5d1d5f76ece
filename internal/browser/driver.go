// Package browser drives a headless browser session against the X web UI:
// launch, login, cookie persistence, timeline scraping and UI engagement.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LaunchOptions configure a new browser process.
type LaunchOptions struct {
	Headless   bool
	Bin        string
	UserAgent  string
	SlowMotion time.Duration
}

// Engine starts browser processes.
type Engine interface {
	Launch(ctx context.Context, opts LaunchOptions) (Driver, error)
}

// Driver is one live browser with a single page. Every call is bounded by ctx.
type Driver interface {
	Alive(ctx context.Context) bool
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// ClickText clicks the first element matching selector whose text matches
	// the JS regular expression textPattern.
	ClickText(ctx context.Context, selector, textPattern string) error
	Type(ctx context.Context, selector, text string) error
	// Evaluate runs a JS function expression and returns its JSON result.
	Evaluate(ctx context.Context, js string) ([]byte, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// Cookie is the persisted form of a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// CookieStore keeps serialized cookies between runs.
type CookieStore interface {
	GetCookies(ctx context.Context, key string) (string, bool, error)
	SetCookies(ctx context.Context, key, cookies string) error
}

func encodeCookies(cs []Cookie) (string, error) {
	b, err := json.Marshal(cs)
	if err != nil {
		return "", fmt.Errorf("encode cookies: %w", err)
	}
	return string(b), nil
}

func decodeCookies(s string) ([]Cookie, error) {
	var cs []Cookie
	if err := json.Unmarshal([]byte(s), &cs); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}
	return cs, nil
}
