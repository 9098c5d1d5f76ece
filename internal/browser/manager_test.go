package browser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/model"
)

type fakeDriver struct {
	mu         sync.Mutex
	alive      bool
	loggedIn   bool
	challenge  bool
	missing    map[string]bool
	scans      [][]scrapedPost
	scanIdx    int
	scrolls    int
	calls      []string
	cookies    []Cookie
	setCookies []Cookie
	closeErr   error
	closed     int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{alive: true, missing: map[string]bool{}, cookies: []Cookie{{Name: "auth_token", Value: "t", Domain: ".x.com", Path: "/"}}}
}

func (f *fakeDriver) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeDriver) Alive(context.Context) bool { return f.alive }

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	f.record("nav " + url)
	return nil
}

func (f *fakeDriver) WaitFor(_ context.Context, sel string) error {
	f.record("wait " + sel)
	if sel == selHomeLink && !f.loggedIn {
		return context.DeadlineExceeded
	}
	if f.missing[sel] {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeDriver) Click(_ context.Context, sel string) error {
	f.record("click " + sel)
	if f.missing[sel] {
		return context.DeadlineExceeded
	}
	if sel == selLoginButton {
		f.loggedIn = true
	}
	return nil
}

func (f *fakeDriver) ClickText(_ context.Context, sel, pattern string) error {
	f.record("clicktext " + pattern)
	return nil
}

func (f *fakeDriver) Type(_ context.Context, sel, text string) error {
	f.record("type " + sel + "=" + text)
	if f.missing[sel] {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeDriver) Evaluate(_ context.Context, js string) ([]byte, error) {
	switch {
	case js == scrapeJS:
		if f.scanIdx >= len(f.scans) {
			return []byte("[]"), nil
		}
		posts := f.scans[f.scanIdx]
		f.scanIdx++
		return json.Marshal(posts)
	case js == scrollJS:
		f.scrolls++
		return []byte("true"), nil
	case strings.Contains(js, "ocfEnterTextTextInput"):
		return json.Marshal(f.challenge)
	}
	return nil, errors.New("unexpected js")
}

func (f *fakeDriver) Cookies(context.Context) ([]Cookie, error) { return f.cookies, nil }

func (f *fakeDriver) SetCookies(_ context.Context, cs []Cookie) error {
	f.setCookies = cs
	return nil
}

func (f *fakeDriver) Close() error {
	f.closed++
	f.alive = false
	return f.closeErr
}

func (f *fakeDriver) typed() []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "type ") {
			out = append(out, c)
		}
	}
	return out
}

type fakeEngine struct {
	launches int
	drivers  []*fakeDriver
	err      error
}

func (e *fakeEngine) Launch(context.Context, LaunchOptions) (Driver, error) {
	if e.err != nil {
		return nil, e.err
	}
	d := newFakeDriver()
	if e.launches < len(e.drivers) {
		d = e.drivers[e.launches]
	}
	e.launches++
	return d, nil
}

type memCookies struct {
	m   map[string]string
	err error
}

func (c *memCookies) GetCookies(_ context.Context, key string) (string, bool, error) {
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCookies) SetCookies(_ context.Context, key, v string) error {
	c.m[key] = v
	return nil
}

func newManager(e Engine, cs CookieStore) *Manager {
	return NewManager(e, cs, Options{BaseURL: "https://x.test/"})
}

func TestInitIsIdempotent(t *testing.T) {
	e := &fakeEngine{}
	m := newManager(e, nil)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Init(ctx))
	assert.Equal(t, 1, e.launches)
	assert.Equal(t, StateReady, m.State())
}

func TestInitRelaunchesDeadBrowser(t *testing.T) {
	first, second := newFakeDriver(), newFakeDriver()
	e := &fakeEngine{drivers: []*fakeDriver{first, second}}
	m := newManager(e, nil)
	require.NoError(t, m.Init(context.Background()))
	first.alive = false
	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, 2, e.launches)
	assert.Equal(t, 1, first.closed)
}

func TestInitAfterCloseRelaunches(t *testing.T) {
	e := &fakeEngine{}
	m := newManager(e, nil)
	require.NoError(t, m.Init(context.Background()))
	m.Close()
	assert.Equal(t, StateClosed, m.State())
	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, 2, e.launches)
	assert.Equal(t, StateReady, m.State())
}

func TestInitLaunchFailure(t *testing.T) {
	m := newManager(&fakeEngine{err: errors.New("no chrome")}, nil)
	err := m.Init(context.Background())
	assert.ErrorContains(t, err, "no chrome")
	assert.Equal(t, StateClosed, m.State())
}

func TestInitRestoresCookies(t *testing.T) {
	d := newFakeDriver()
	store := &memCookies{m: map[string]string{"x-session": `[{"name":"ct0","value":"v","domain":".x.com","path":"/"}]`}}
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, store)
	require.NoError(t, m.Init(context.Background()))
	require.Len(t, d.setCookies, 1)
	assert.Equal(t, "ct0", d.setCookies[0].Name)
}

func TestInitCookieStoreErrorClosesBrowser(t *testing.T) {
	d := newFakeDriver()
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, &memCookies{err: errors.New("db down")})
	err := m.Init(context.Background())
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, 1, d.closed)
	assert.Equal(t, StateClosed, m.State())
}

func TestLoginShortCircuitsWhenAuthenticated(t *testing.T) {
	d := newFakeDriver()
	d.loggedIn = true
	store := &memCookies{m: map[string]string{}}
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, store)
	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Login(context.Background(), Credentials{Username: "u", Password: "p"}))
	assert.Empty(t, d.typed())
	assert.Contains(t, d.calls, "nav https://x.test/home")
	assert.Empty(t, store.m)
	assert.Equal(t, StateReady, m.State())
}

func TestLoginFlowWithChallengePersistsCookies(t *testing.T) {
	d := newFakeDriver()
	d.challenge = true
	store := &memCookies{m: map[string]string{}}
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, store)
	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Login(context.Background(), Credentials{Username: "u", Password: "p", Email: "u@example.com"}))

	assert.Equal(t, []string{
		"type " + selUsername + "=u",
		"type " + selChallenge + "=u@example.com",
		"type " + selPassword + "=p",
	}, d.typed())
	assert.Contains(t, store.m["x-session"], "auth_token")
}

func TestLoginNamesFailedStep(t *testing.T) {
	d := newFakeDriver()
	d.missing[selPassword] = true
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, &memCookies{m: map[string]string{}})
	require.NoError(t, m.Init(context.Background()))
	err := m.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	var se *StepError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "password", se.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOperationsNeedReadySession(t *testing.T) {
	m := newManager(&fakeEngine{}, nil)
	assert.ErrorIs(t, m.Login(context.Background(), Credentials{}), ErrNotReady)
	m.Close()
	assert.ErrorIs(t, m.LikePost(context.Background(), "https://x.test/a/status/1"), ErrClosed)
	for _, err := range m.TimelinePosts(context.Background(), 5, 1) {
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestCloseSwallowsErrors(t *testing.T) {
	d := newFakeDriver()
	d.closeErr = errors.New("already gone")
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, nil)
	require.NoError(t, m.Init(context.Background()))
	m.Close()
	m.Close()
	assert.Equal(t, 1, d.closed)
	assert.Equal(t, StateClosed, m.State())
}

func post(id string) scrapedPost {
	return scrapedPost{ID: id, Handle: "user" + id, URL: "https://x.test/user" + id + "/status/" + id, Likes: "1"}
}

func collect(t *testing.T, m *Manager, count, scrolls int) []model.CandidatePost {
	t.Helper()
	var out []model.CandidatePost
	for p, err := range m.TimelinePosts(context.Background(), count, scrolls) {
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestTimelinePostsDedupesAcrossScrolls(t *testing.T) {
	d := newFakeDriver()
	d.scans = [][]scrapedPost{{post("1"), post("2")}, {post("2"), post("3")}, {post("4")}}
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, nil)
	require.NoError(t, m.Init(context.Background()))

	got := collect(t, m, 3, 5)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{got[0].TweetID, got[1].TweetID, got[2].TweetID})
	assert.Equal(t, 1, d.scrolls)
}

func TestTimelinePostsStopsAfterMaxScrolls(t *testing.T) {
	d := newFakeDriver()
	d.scans = [][]scrapedPost{{post("1")}, {post("1")}, {post("2")}, {post("3")}}
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, nil)
	require.NoError(t, m.Init(context.Background()))

	got := collect(t, m, 10, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, d.scrolls)
}

func TestTimelinePostsEarlyBreak(t *testing.T) {
	d := newFakeDriver()
	d.scans = [][]scrapedPost{{post("1"), post("2"), post("3")}}
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, nil)
	require.NoError(t, m.Init(context.Background()))
	n := 0
	for range m.TimelinePosts(context.Background(), 10, 3) {
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, d.scrolls)
}

func TestReplyToPostSteps(t *testing.T) {
	d := newFakeDriver()
	m := newManager(&fakeEngine{drivers: []*fakeDriver{d}}, nil)
	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.ReplyToPost(context.Background(), "https://x.test/a/status/1", "gm"))
	assert.Equal(t, []string{
		"nav https://x.test/a/status/1",
		"click " + selReply,
		"type " + selReplyBox + "=gm",
		"click " + selReplySend,
	}, d.calls)

	d.missing[selRetweet] = true
	err := m.RetweetPost(context.Background(), "https://x.test/a/status/1")
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "retweet", se.Step)
}
