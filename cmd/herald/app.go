package main

import (
	"context"
	"fmt"
	"time"

	"herald/internal/browser"
	"herald/internal/config"
	"herald/internal/engage"
	"herald/internal/jobs"
	"herald/internal/llm"
	"herald/internal/logging"
	"herald/internal/policy"
	"herald/internal/store"
	"herald/internal/store/dynamo"
	"herald/internal/xclient"
)

// app holds the wired dependencies shared by the run, serve and login commands.
type app struct {
	cfg     config.Config
	db      *store.DB
	session *browser.Manager
	runner  *jobs.Runner
}

func (a *app) Close() {
	a.session.Close()
	if err := a.db.Close(); err != nil {
		logging.Warn("db_close_failed", map[string]any{"error": err})
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	cookies, err := cookieStore(ctx, cfg.Storage, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	session := browser.NewManager(browser.RodEngine{}, cookies, browser.Options{
		BaseURL:    cfg.Browser.BaseURL,
		SessionKey: cfg.Browser.SessionKey,
		Launch: browser.LaunchOptions{
			Headless:   cfg.Browser.Headless,
			Bin:        cfg.Browser.Bin,
			UserAgent:  cfg.Browser.UserAgent,
			SlowMotion: cfg.Browser.SlowMotion,
		},
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		StepTimeout:       cfg.Browser.StepTimeout,
		ScrollPause:       1500 * time.Millisecond,
	})

	gen, err := llm.New(cfg.LLM)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, disabled := gen.(llm.Disabled); disabled {
		logging.Warn("llm_disabled", map[string]any{"effect": "every candidate will be ignored"})
	}
	pol := policy.New(gen, cfg.Persona, cfg.Engagement.MinConfidence)

	var api xclient.Writer
	if cfg.Credentials.HasAPI() {
		api = xclient.NewHTTPClient(xclient.Credentials{
			ConsumerKey:    cfg.Credentials.ConsumerKey,
			ConsumerSecret: cfg.Credentials.ConsumerSecret,
			AccessToken:    cfg.Credentials.AccessToken,
			AccessSecret:   cfg.Credentials.AccessSecret,
		})
	} else {
		logging.Warn("api_credentials_missing", map[string]any{"effect": "browser channel only"})
	}

	sched := engage.NewScheduler(
		engage.NewLedger(db, cfg.Engagement),
		session,
		pol,
		engage.NewExecutor(api, session),
		db,
		cfg.Engagement,
		browserCreds(cfg.Account),
	)
	return &app{cfg: cfg, db: db, session: session, runner: jobs.NewRunner(sched)}, nil
}

func cookieStore(ctx context.Context, sc config.StorageConfig, db *store.DB) (browser.CookieStore, error) {
	switch sc.CookieBackend {
	case "dynamodb":
		cs, err := dynamo.NewFromRegion(ctx, sc.AWSRegion, sc.DynamoTable)
		if err != nil {
			return nil, fmt.Errorf("dynamodb cookie store: %w", err)
		}
		return cs, nil
	default:
		return db, nil
	}
}

func browserCreds(a config.AccountConfig) browser.Credentials {
	return browser.Credentials{Username: a.Username, Password: a.Password, Email: a.Email}
}
