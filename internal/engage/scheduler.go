// Package engage runs engagement: budget and cooldown checks over the action
// log, API-first execution with browser fallback, and the per-run scheduler.
package engage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"herald/internal/browser"
	"herald/internal/config"
	"herald/internal/logging"
	"herald/internal/metrics"
	"herald/internal/model"
	"herald/internal/schedule"
)

// Skip reasons reported in RunSummary.Skipped.
const (
	SkipQuietHours = "quiet_hours"
	SkipRateLimit  = "rate_limit"
)

// Session is the browser session a run drives.
type Session interface {
	Init(ctx context.Context) error
	Login(ctx context.Context, creds browser.Credentials) error
	TimelinePosts(ctx context.Context, count, maxScrolls int) iter.Seq2[model.CandidatePost, error]
	Close()
}

// Decider picks the action for a post.
type Decider interface {
	Decide(ctx context.Context, postText string, engagementScore float64) model.Decision
}

// ActionExecutor performs a decided action.
type ActionExecutor interface {
	Execute(ctx context.Context, target model.Target, action model.Action) Result
}

// Recorder appends to the action log.
type Recorder interface {
	InsertAction(ctx context.Context, r model.ActionRecord) error
}

// RunSummary describes one run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Skipped    string    `json:"skipped,omitempty"`
	Stopped    string    `json:"stopped,omitempty"`
	Discovered int       `json:"discovered"`
	Candidates int       `json:"candidates"`
	Decisions  int       `json:"decisions"`
	Ignored    int       `json:"ignored"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// Scheduler runs one engagement pass at a time. Sleep, Delay, Now and NewID
// are replaceable for tests.
type Scheduler struct {
	ledger  *Ledger
	session Session
	policy  Decider
	exec    ActionExecutor
	log     Recorder
	cfg     config.EngagementConfig
	creds   browser.Credentials
	self    string

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Delay func() time.Duration
	NewID func() string
}

func NewScheduler(ledger *Ledger, session Session, policy Decider, exec ActionExecutor, log Recorder,
	cfg config.EngagementConfig, creds browser.Credentials) *Scheduler {
	s := &Scheduler{
		ledger:  ledger,
		session: session,
		policy:  policy,
		exec:    exec,
		log:     log,
		cfg:     cfg,
		creds:   creds,
		self:    normalizeHandle(creds.Username),
		Now:     time.Now,
		Sleep:   sleepCtx,
		NewID:   func() string { return uuid.NewString() },
	}
	s.Delay = func() time.Duration { return randomDelay(s.cfg.MinDelay, s.cfg.MaxDelay) }
	return s
}

// Run performs one pass. Capacity and quiet hours end the run early with
// Skipped set and a nil error. The browser session is closed on every path
// once it has been started.
func (s *Scheduler) Run(ctx context.Context) (sum RunSummary, err error) {
	sum.RunID = s.NewID()
	sum.Started = s.Now()
	defer func() { sum.Finished = s.Now() }()

	if schedule.IsQuiet(sum.Started, s.cfg.QuietHours) {
		sum.Skipped = SkipQuietHours
		return sum, nil
	}
	ok, err := s.ledger.CanPerformActions(ctx)
	if err != nil {
		return sum, fmt.Errorf("check rate limits: %w", err)
	}
	if !ok {
		sum.Skipped = SkipRateLimit
		return sum, nil
	}

	defer s.session.Close()
	if err := s.session.Init(ctx); err != nil {
		return sum, fmt.Errorf("init session: %w", err)
	}
	if err := s.session.Login(ctx, s.creds); err != nil {
		return sum, fmt.Errorf("login: %w", err)
	}

	posts, err := s.discover(ctx)
	if err != nil {
		return sum, err
	}
	sum.Discovered = len(posts)
	candidates, err := s.filter(ctx, posts)
	if err != nil {
		return sum, err
	}
	ranked := model.RankByEngagement(candidates)
	sum.Candidates = len(ranked)
	logging.Info("engage_run_candidates", map[string]any{
		"run_id": sum.RunID, "discovered": sum.Discovered, "candidates": sum.Candidates,
	})

	waitBefore := false
	for i, p := range ranked {
		if i >= s.cfg.MaxPerRun {
			break
		}
		if waitBefore {
			if err := s.Sleep(ctx, s.Delay()); err != nil {
				return sum, err
			}
		}
		ok, err := s.ledger.CanPerformActions(ctx)
		if err != nil {
			return sum, fmt.Errorf("check rate limits: %w", err)
		}
		if !ok {
			sum.Stopped = SkipRateLimit
			break
		}
		executed, err := s.process(ctx, sum.RunID, p, &sum)
		if err != nil {
			return sum, err
		}
		waitBefore = executed
	}
	return sum, nil
}

func (s *Scheduler) discover(ctx context.Context) ([]model.CandidatePost, error) {
	var posts []model.CandidatePost
	for p, err := range s.session.TimelinePosts(ctx, s.cfg.DiscoverCount, s.cfg.MaxScrolls) {
		if err != nil {
			return nil, fmt.Errorf("discover posts: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// filter drops own posts, posts missing an id or author, repeat authors and
// authors still in cooldown. Discovery order is kept.
func (s *Scheduler) filter(ctx context.Context, posts []model.CandidatePost) ([]model.CandidatePost, error) {
	seen := make(map[string]bool)
	var out []model.CandidatePost
	for _, p := range posts {
		author := normalizeHandle(p.AuthorHandle)
		if p.TweetID == "" || author == "" || author == s.self || seen[author] {
			continue
		}
		seen[author] = true
		recent, err := s.ledger.HasRecentlyEngaged(ctx, author, s.cfg.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("check cooldown for %s: %w", p.AuthorHandle, err)
		}
		if recent {
			logging.Debug("candidate_in_cooldown", map[string]any{"author": p.AuthorHandle})
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// process decides and executes one candidate and always writes exactly one
// record for it, even when a step fails or panics. The record is stamped when
// processing ends. It reports whether a platform action was attempted.
func (s *Scheduler) process(ctx context.Context, runID string, p model.CandidatePost, sum *RunSummary) (executed bool, err error) {
	score := p.TotalEngagement()
	target := p.Target()
	rec := model.ActionRecord{
		ID:              s.NewID(),
		RunID:           runID,
		Method:          model.MethodNone,
		ActionType:      model.KindIgnore,
		TargetUser:      normalizeHandle(p.AuthorHandle),
		TargetTweetID:   p.TweetID,
		TargetURL:       target.URL,
		EngagementScore: score,
		Likes:           model.ParseCount(p.Likes),
		Replies:         model.ParseCount(p.Replies),
		Retweets:        model.ParseCount(p.Retweets),
		Views:           model.ParseCount(p.Views),
	}
	defer func() {
		if r := recover(); r != nil {
			rec.Success = false
			rec.ErrorMessage = fmt.Sprintf("panic: %v", r)
			err = fmt.Errorf("processing %s panicked: %v", p.TweetID, r)
		}
		rec.Timestamp = s.Now().UTC()
		if ierr := s.log.InsertAction(context.WithoutCancel(ctx), rec); ierr != nil {
			err = errors.Join(err, ierr)
		}
		metrics.IncAction(string(rec.ActionType), string(rec.Method), rec.Success)
		logging.Info("engage_action_recorded", map[string]any{
			"run_id": runID, "action": string(rec.ActionType), "method": string(rec.Method),
			"success": rec.Success, "tweet_id": p.TweetID, "attempts": rec.Attempts,
		})
	}()

	d := s.policy.Decide(ctx, p.Text, score)
	sum.Decisions++
	rec.Confidence = d.Confidence
	rec.Reasoning = d.Reasoning
	if d.IsIgnore() {
		sum.Ignored++
		return false, nil
	}
	kind := d.Action.Kind()
	allowed, err := s.ledger.AllowsAction(ctx, kind)
	if err != nil {
		rec.Reasoning = "per-type budget unavailable: " + d.Reasoning
		return false, fmt.Errorf("check %s budget: %w", kind, err)
	}
	if !allowed {
		rec.Reasoning = fmt.Sprintf("budget exhausted for %s: %s", kind, d.Reasoning)
		sum.Ignored++
		return false, nil
	}
	rec.ActionType = kind
	rec.ReplyText = d.ReplyText()

	res, attempts, err := s.executeWithRetry(ctx, target, d.Action)
	rec.Attempts = attempts
	rec.Method = res.Method
	rec.Success = res.Success
	if res.Err != nil {
		rec.ErrorMessage = res.Err.Error()
	}
	if res.Success {
		sum.Succeeded++
	} else {
		sum.Failed++
	}
	return true, err
}

// executeWithRetry runs the executor up to 1+Retries times with RetryDelay in
// between. Before each retry the session is re-verified; Init and Login
// return at once when the browser is alive and signed in.
func (s *Scheduler) executeWithRetry(ctx context.Context, target model.Target, action model.Action) (Result, int, error) {
	for attempt := 1; ; attempt++ {
		res := s.exec.Execute(ctx, target, action)
		if res.Success || attempt > s.cfg.Retries {
			return res, attempt, nil
		}
		logging.Warn("engage_retry", map[string]any{
			"tweet_id": target.TweetID, "attempt": attempt, "error": res.Err,
		})
		if err := s.Sleep(ctx, s.cfg.RetryDelay); err != nil {
			return res, attempt, err
		}
		if err := s.session.Init(ctx); err != nil {
			return res, attempt, fmt.Errorf("reinit session: %w", err)
		}
		if err := s.session.Login(ctx, s.creds); err != nil {
			return res, attempt, fmt.Errorf("re-login: %w", err)
		}
	}
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

func randomDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
