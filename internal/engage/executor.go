package engage

import (
	"context"
	"errors"
	"fmt"

	"herald/internal/logging"
	"herald/internal/metrics"
	"herald/internal/model"
	"herald/internal/xclient"
)

// errNoAPI stands in for the API channel when no credentials are configured.
var errNoAPI = errors.New("api channel not configured")

// BrowserActions is the UI side of the executor.
type BrowserActions interface {
	LikePost(ctx context.Context, url string) error
	RetweetPost(ctx context.Context, url string) error
	ReplyToPost(ctx context.Context, url, text string) error
}

// Result is the outcome of one Execute call.
type Result struct {
	Success bool
	Method  model.Method
	Err     error
}

// ChannelError carries both channel failures when nothing worked.
type ChannelError struct {
	API     error
	Browser error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("api: %v; browser: %v", e.API, e.Browser)
}

func (e *ChannelError) Unwrap() []error { return []error{e.API, e.Browser} }

// Executor performs an action through the API and falls back to the browser.
type Executor struct {
	api     xclient.Writer
	browser BrowserActions
}

// NewExecutor takes a nil api when no credentials exist; every action then
// goes straight to the browser.
func NewExecutor(api xclient.Writer, browser BrowserActions) *Executor {
	return &Executor{api: api, browser: browser}
}

// Execute tries the API once and, on any error, the browser once.
func (e *Executor) Execute(ctx context.Context, target model.Target, action model.Action) Result {
	if action == nil {
		return Result{Method: model.MethodNone}
	}
	if _, ok := action.(model.Ignore); ok {
		return Result{Method: model.MethodNone}
	}
	apiErr := e.viaAPI(ctx, target, action)
	if apiErr == nil {
		return Result{Success: true, Method: model.MethodAPI}
	}
	metrics.ChannelFallbacks.WithLabelValues(string(action.Kind())).Inc()
	logging.Warn("api_failed_fallback_browser", map[string]any{
		"action": string(action.Kind()), "tweet_id": target.TweetID, "error": apiErr,
	})
	brErr := e.viaBrowser(ctx, target, action)
	if brErr == nil {
		return Result{Success: true, Method: model.MethodBrowser}
	}
	return Result{Method: model.MethodNone, Err: &ChannelError{API: apiErr, Browser: brErr}}
}

func (e *Executor) viaAPI(ctx context.Context, t model.Target, action model.Action) error {
	if e.api == nil {
		return errNoAPI
	}
	switch a := action.(type) {
	case model.Like:
		return e.api.Like(ctx, t.TweetID)
	case model.Retweet:
		return e.api.Retweet(ctx, t.TweetID)
	case model.Reply:
		_, err := e.api.PostReply(ctx, a.Text, t.TweetID)
		return err
	default:
		return fmt.Errorf("unsupported action %T", action)
	}
}

func (e *Executor) viaBrowser(ctx context.Context, t model.Target, action model.Action) error {
	if e.browser == nil {
		return errors.New("browser channel not configured")
	}
	switch a := action.(type) {
	case model.Like:
		return e.browser.LikePost(ctx, t.URL)
	case model.Retweet:
		return e.browser.RetweetPost(ctx, t.URL)
	case model.Reply:
		return e.browser.ReplyToPost(ctx, t.URL, a.Text)
	default:
		return fmt.Errorf("unsupported action %T", action)
	}
}
