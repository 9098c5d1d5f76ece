package engage

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/browser"
	"herald/internal/config"
	"herald/internal/model"
	"herald/internal/store"
)

type fakeSession struct {
	posts    []model.CandidatePost
	initErr  error
	loginErr error
	inits    int
	logins   int
	closed   bool
}

func (f *fakeSession) Init(context.Context) error {
	f.inits++
	return f.initErr
}

func (f *fakeSession) Login(context.Context, browser.Credentials) error {
	f.logins++
	return f.loginErr
}

func (f *fakeSession) TimelinePosts(_ context.Context, count, _ int) iter.Seq2[model.CandidatePost, error] {
	return func(yield func(model.CandidatePost, error) bool) {
		for i, p := range f.posts {
			if i >= count || !yield(p, nil) {
				return
			}
		}
	}
}

func (f *fakeSession) Close() { f.closed = true }

type scriptedPolicy struct {
	decisions map[string]model.Decision
	seen      []string
	panicOn   string
}

func (p *scriptedPolicy) Decide(_ context.Context, text string, _ float64) model.Decision {
	p.seen = append(p.seen, text)
	if text == p.panicOn {
		panic("model exploded")
	}
	if d, ok := p.decisions[text]; ok {
		return d
	}
	return model.Decision{Action: model.Like{}, Confidence: 0.9, Reasoning: "fine"}
}

type scriptedExecutor struct {
	results map[string][]Result
	calls   map[string]int
}

func (e *scriptedExecutor) Execute(_ context.Context, t model.Target, _ model.Action) Result {
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	i := e.calls[t.TweetID]
	e.calls[t.TweetID]++
	rs := e.results[t.TweetID]
	if len(rs) == 0 {
		return Result{Success: true, Method: model.MethodAPI}
	}
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i]
}

type failingRecorder struct{ err error }

func (f failingRecorder) InsertAction(context.Context, model.ActionRecord) error { return f.err }

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testCfg() config.EngagementConfig {
	return config.EngagementConfig{
		MaxPerHour: 10, MaxPerDay: 40, Cooldown: 24 * time.Hour, DiscoverCount: 20,
		MaxPerRun: 5, MaxScrolls: 1, Retries: 0, RetryDelay: time.Second,
		MinDelay: time.Second, MaxDelay: 2 * time.Second,
	}
}

type harness struct {
	db     *store.DB
	sess   *fakeSession
	policy *scriptedPolicy
	exec   *scriptedExecutor
	sched  *Scheduler
	sleeps []time.Duration
}

func newHarness(t *testing.T, cfg config.EngagementConfig, posts ...model.CandidatePost) *harness {
	h := &harness{
		db:     openDB(t),
		sess:   &fakeSession{posts: posts},
		policy: &scriptedPolicy{decisions: map[string]model.Decision{}},
		exec:   &scriptedExecutor{},
	}
	ledger := newLedger(h.db, cfg, fixedNow)
	h.sched = NewScheduler(ledger, h.sess, h.policy, h.exec, h.db, cfg, browser.Credentials{Username: "Herald", Password: "pw"})
	h.sched.Now = func() time.Time { return fixedNow }
	h.sched.Delay = func() time.Duration { return 42 * time.Second }
	h.sched.Sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func (h *harness) records(t *testing.T) []model.ActionRecord {
	t.Helper()
	rs, err := h.db.ListActions(context.Background(), fixedNow.Add(-48*time.Hour), 0)
	require.NoError(t, err)
	return rs
}

func cand(id, author, likes string) model.CandidatePost {
	return model.CandidatePost{TweetID: id, AuthorHandle: author, Text: "post " + id, Likes: likes}
}

func TestRunSkipsCooldownAuthors(t *testing.T) {
	h := newHarness(t, testCfg(),
		cand("1", "a", "5"), cand("2", "b", "4"), cand("3", "c", "3"), cand("4", "d", "2"), cand("5", "e", "1"))
	put(t, h.db, "old-b", "b", model.KindLike, fixedNow.Add(-2*time.Hour))
	put(t, h.db, "old-d", "d", model.KindIgnore, fixedNow.Add(-3*time.Hour))

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Discovered)
	assert.Equal(t, 3, sum.Candidates)
	assert.Equal(t, 3, sum.Decisions)
	assert.Equal(t, []string{"post 1", "post 3", "post 5"}, h.policy.seen)
	assert.Len(t, h.records(t), 5)
	assert.True(t, h.sess.closed)
}

func TestRunRecordsEveryOutcome(t *testing.T) {
	h := newHarness(t, testCfg(),
		cand("api", "a", "40"), cand("browser", "b", "30"), cand("none", "c", "20"), cand("skip", "d", "10"))
	h.policy.decisions["post none"] = model.Decision{Action: model.Reply{Text: "gm"}, Confidence: 0.8}
	h.policy.decisions["post skip"] = model.Decision{Action: model.Ignore{}, Confidence: 0.9, Reasoning: "off topic"}
	h.exec.results = map[string][]Result{
		"browser": {{Success: true, Method: model.MethodBrowser}},
		"none":    {{Method: model.MethodNone, Err: &ChannelError{API: errors.New("a"), Browser: errors.New("b")}}},
	}

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Ignored)

	rs := h.records(t)
	require.Len(t, rs, 4)
	assert.Equal(t, model.MethodAPI, rs[0].Method)
	assert.True(t, rs[0].Success)
	assert.Equal(t, 40, rs[0].Likes)
	assert.Equal(t, model.MethodBrowser, rs[1].Method)
	assert.Equal(t, model.MethodNone, rs[2].Method)
	assert.False(t, rs[2].Success)
	assert.Equal(t, "api: a; browser: b", rs[2].ErrorMessage)
	assert.Equal(t, "gm", rs[2].ReplyText)
	assert.Equal(t, model.KindIgnore, rs[3].ActionType)
	assert.Equal(t, "off topic", rs[3].Reasoning)
	assert.Zero(t, rs[3].Attempts)
	for _, r := range rs {
		assert.Equal(t, sum.RunID, r.RunID)
	}
	// delays only follow executed candidates
	assert.Equal(t, []time.Duration{42 * time.Second, 42 * time.Second, 42 * time.Second}, h.sleeps)
}

func TestRunRetriesAndReverifiesSession(t *testing.T) {
	cfg := testCfg()
	cfg.Retries = 2
	h := newHarness(t, cfg, cand("1", "a", "1"))
	fail := Result{Method: model.MethodNone, Err: errors.New("boom")}
	h.exec.results = map[string][]Result{"1": {fail, {Success: true, Method: model.MethodBrowser}}}

	_, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.Equal(t, 2, rs[0].Attempts)
	assert.True(t, rs[0].Success)
	assert.Equal(t, 2, h.sess.inits)
	assert.Equal(t, 2, h.sess.logins)
	assert.Equal(t, []time.Duration{time.Second}, h.sleeps)
}

func TestRunGivesUpAfterRetries(t *testing.T) {
	cfg := testCfg()
	cfg.Retries = 1
	h := newHarness(t, cfg, cand("1", "a", "1"))
	h.exec.results = map[string][]Result{"1": {{Method: model.MethodNone, Err: errors.New("boom")}}}

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, h.exec.calls["1"])
	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.Equal(t, 2, rs[0].Attempts)
	assert.Equal(t, "boom", rs[0].ErrorMessage)
}

func TestRunSessionFailureClosesBeforeReturning(t *testing.T) {
	h := newHarness(t, testCfg(), cand("1", "a", "1"))
	h.sess.loginErr = errors.New("browser crashed")

	_, err := h.sched.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "browser crashed")
	assert.True(t, h.sess.closed)
	assert.Empty(t, h.records(t))
}

func TestRunSkipsWhenBudgetExhausted(t *testing.T) {
	cfg := testCfg()
	cfg.MaxPerHour = 1
	h := newHarness(t, cfg, cand("1", "a", "1"))
	put(t, h.db, "x", "z", model.KindLike, fixedNow.Add(-time.Minute))

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipRateLimit, sum.Skipped)
	assert.Zero(t, h.sess.inits)
	assert.False(t, h.sess.closed)
}

func TestRunSkipsQuietHours(t *testing.T) {
	cfg := testCfg()
	cfg.QuietHours = []int{12}
	h := newHarness(t, cfg, cand("1", "a", "1"))
	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipQuietHours, sum.Skipped)
	assert.Zero(t, h.sess.inits)
}

func TestRunStopsWhenCapReachedMidRun(t *testing.T) {
	cfg := testCfg()
	cfg.MaxPerHour = 2
	h := newHarness(t, cfg, cand("1", "a", "4"), cand("2", "b", "3"), cand("3", "c", "2"))

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipRateLimit, sum.Stopped)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Len(t, h.records(t), 2)
}

func TestRunPerTypeBudgetRecordsIgnore(t *testing.T) {
	cfg := testCfg()
	cfg.PerType = map[string]config.TypeBudget{"like": {MaxPerDay: 1}}
	h := newHarness(t, cfg, cand("1", "a", "1"))
	put(t, h.db, "x", "z", model.KindLike, fixedNow.Add(-3*time.Hour))

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Ignored)
	rs := h.records(t)
	require.Len(t, rs, 2)
	assert.Equal(t, model.KindIgnore, rs[1].ActionType)
	assert.Contains(t, rs[1].Reasoning, "budget exhausted for like")
	assert.Zero(t, h.exec.calls["1"])
}

func TestRunDropsOwnAndDuplicateAuthors(t *testing.T) {
	h := newHarness(t, testCfg(),
		cand("1", "@herald", "9"), cand("2", "a", "1"), cand("3", "A", "5"), cand("", "b", "1"), cand("5", "", "1"))
	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Candidates)
	assert.Equal(t, []string{"post 2"}, h.policy.seen)
}

func TestRunStoresNormalizedAuthor(t *testing.T) {
	h := newHarness(t, testCfg(), cand("1", "@Alice", "9"), cand("2", "Bob", "1"))
	put(t, h.db, "old-a", "alice", model.KindLike, fixedNow.Add(-2*time.Hour))

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Candidates)
	rs := h.records(t)
	require.Len(t, rs, 2)
	assert.Equal(t, "bob", rs[1].TargetUser)

	// the stored handle starts the cooldown for any spelling
	recent, err := h.sched.ledger.HasRecentlyEngaged(context.Background(), "@BOB", time.Hour)
	require.NoError(t, err)
	assert.True(t, recent)
}

func TestRunStampsRecordAfterRetries(t *testing.T) {
	cfg := testCfg()
	cfg.Retries = 2
	cfg.RetryDelay = 30 * time.Second
	h := newHarness(t, cfg, cand("1", "a", "1"))
	clock := fixedNow
	h.sched.Now = func() time.Time { return clock }
	h.sched.Sleep = func(_ context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return nil
	}
	fail := Result{Method: model.MethodNone, Err: errors.New("boom")}
	h.exec.results = map[string][]Result{"1": {fail, fail, {Success: true, Method: model.MethodAPI}}}

	sum, err := h.sched.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Started.Equal(fixedNow))
	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.Equal(t, 3, rs[0].Attempts)
	assert.True(t, rs[0].Timestamp.Equal(fixedNow.Add(time.Minute)), "got %s", rs[0].Timestamp)
}

func TestRunRecordsPanickingCandidate(t *testing.T) {
	h := newHarness(t, testCfg(), cand("1", "a", "2"), cand("2", "b", "1"))
	h.policy.panicOn = "post 1"

	_, err := h.sched.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "panicked")
	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.Contains(t, rs[0].ErrorMessage, "model exploded")
	assert.True(t, h.sess.closed)
}

func TestRunPropagatesRecordFailure(t *testing.T) {
	h := newHarness(t, testCfg(), cand("1", "a", "1"))
	h.sched.log = failingRecorder{err: errors.New("disk full")}
	_, err := h.sched.Run(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, h.sess.closed)
}

func TestRandomDelayBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := randomDelay(time.Second, 3*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
	assert.Equal(t, time.Second, randomDelay(time.Second, time.Second))
}
