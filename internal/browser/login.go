package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"herald/internal/logging"
)

const (
	selHomeLink      = `[data-testid="AppTabBar_Home_Link"]`
	selUsername      = `input[autocomplete="username"]`
	selButton        = `button[role="button"], div[role="button"]`
	selChallenge     = `input[data-testid="ocfEnterTextTextInput"]`
	selPassword      = `input[name="password"]`
	selPasswordOrChk = selPassword + `, ` + selChallenge
	selLoginButton   = `[data-testid="LoginForm_Login_Button"]`
)

// Login authenticates the browser. It returns immediately when the restored
// cookies already give a logged-in home timeline.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	d, err := m.ready()
	if err != nil {
		return err
	}
	if err := m.navigate(ctx, d, m.opts.BaseURL+"/home"); err != nil {
		return stepErr("open home", err)
	}
	m.setState(StateAuthenticating)
	defer m.setState(StateReady)

	if ok, err := m.authenticated(ctx, d); err != nil {
		return err
	} else if ok {
		logging.Debug("browser_login_reused", nil)
		return nil
	}
	if creds.Username == "" || creds.Password == "" {
		return errors.New("browser login needs username and password")
	}
	if err := m.loginFlow(ctx, d, creds); err != nil {
		return err
	}
	if err := m.persistCookies(ctx, d); err != nil {
		return err
	}
	logging.Info("browser_logged_in", map[string]any{"username": creds.Username})
	return nil
}

// authenticated waits up to one step timeout for the signed-in navigation.
func (m *Manager) authenticated(ctx context.Context, d Driver) (bool, error) {
	err := m.step(ctx, "check session", func(c context.Context) error { return d.WaitFor(c, selHomeLink) })
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

func (m *Manager) loginFlow(ctx context.Context, d Driver, creds Credentials) error {
	if err := m.navigate(ctx, d, m.opts.BaseURL+"/i/flow/login"); err != nil {
		return stepErr("open login", err)
	}
	m.setState(StateAuthenticating)

	if err := m.step(ctx, "username", func(c context.Context) error { return d.Type(c, selUsername, creds.Username) }); err != nil {
		return err
	}
	if err := m.step(ctx, "next", func(c context.Context) error { return d.ClickText(c, selButton, "^Next$") }); err != nil {
		return err
	}
	if err := m.step(ctx, "password prompt", func(c context.Context) error { return d.WaitFor(c, selPasswordOrChk) }); err != nil {
		return err
	}
	challenged, err := m.present(ctx, d, selChallenge)
	if err != nil {
		return stepErr("identity challenge", err)
	}
	if challenged {
		answer := creds.Email
		if answer == "" {
			answer = creds.Username
		}
		if err := m.step(ctx, "identity challenge", func(c context.Context) error { return d.Type(c, selChallenge, answer) }); err != nil {
			return err
		}
		if err := m.step(ctx, "challenge next", func(c context.Context) error { return d.ClickText(c, selButton, "^Next$") }); err != nil {
			return err
		}
	}
	if err := m.step(ctx, "password", func(c context.Context) error { return d.Type(c, selPassword, creds.Password) }); err != nil {
		return err
	}
	if err := m.step(ctx, "submit", func(c context.Context) error { return d.Click(c, selLoginButton) }); err != nil {
		return err
	}
	vctx, cancel := context.WithTimeout(ctx, m.opts.NavigationTimeout)
	defer cancel()
	return stepErr("verify login", d.WaitFor(vctx, selHomeLink))
}

// present reports whether selector currently matches an element.
func (m *Manager) present(ctx context.Context, d Driver, selector string) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, m.opts.StepTimeout)
	defer cancel()
	js := fmt.Sprintf(`() => document.querySelector(%q) !== null`, selector)
	raw, err := d.Evaluate(sctx, js)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (m *Manager) persistCookies(ctx context.Context, d Driver) error {
	if m.cookies == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, m.opts.StepTimeout)
	defer cancel()
	cs, err := d.Cookies(sctx)
	if err != nil {
		return stepErr("read cookies", err)
	}
	raw, err := encodeCookies(cs)
	if err != nil {
		return err
	}
	if err := m.cookies.SetCookies(ctx, m.opts.SessionKey, raw); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	return nil
}
