package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// RodEngine launches Chromium through go-rod.
type RodEngine struct{}

func (RodEngine) Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("disable-dev-shm-usage"))
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if opts.SlowMotion > 0 {
		b = b.SlowMotion(opts.SlowMotion)
	}
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = b.Close()
			l.Kill()
			l.Cleanup()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	return &rodDriver{launcher: l, browser: b, page: page}, nil
}

type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func (d *rodDriver) Alive(ctx context.Context) bool {
	_, err := d.browser.Context(ctx).Version()
	return err == nil
}

func (d *rodDriver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (d *rodDriver) WaitFor(ctx context.Context, selector string) error {
	_, err := d.page.Context(ctx).Element(selector)
	return err
}

func (d *rodDriver) Click(ctx context.Context, selector string) error {
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *rodDriver) ClickText(ctx context.Context, selector, textPattern string) error {
	el, err := d.page.Context(ctx).ElementR(selector, textPattern)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *rodDriver) Type(ctx context.Context, selector, text string) error {
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Input(text)
}

func (d *rodDriver) Evaluate(ctx context.Context, js string) ([]byte, error) {
	res, err := d.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, err
	}
	return res.Value.MarshalJSON()
}

func (d *rodDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := d.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

func (d *rodDriver) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	if len(params) == 0 {
		return nil
	}
	return d.browser.Context(ctx).SetCookies(params)
}

func (d *rodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Kill()
	d.launcher.Cleanup()
	return err
}
