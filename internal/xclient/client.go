package xclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"herald/internal/metrics"
)

// Writer is the subset of the X API v2 the executor uses.
type Writer interface {
	Like(ctx context.Context, tweetID string) error
	Retweet(ctx context.Context, tweetID string) error
	PostReply(ctx context.Context, text, inReplyToID string) (string, error)
}

// Credentials are OAuth 1.0a user-context keys.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// APIError is a non-2xx answer from the API after retries.
type APIError struct {
	Method   string
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("x api %s %s: status %d", e.Method, e.Endpoint, e.Status)
	}
	return fmt.Sprintf("x api %s %s: status %d: %s", e.Method, e.Endpoint, e.Status, e.Body)
}

// HTTPClient signs every request with OAuth 1.0a and retries 5xx.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	// maxWait caps how long a single Retry-After is honored.
	maxWait time.Duration
	signer  *Signer

	mu     sync.Mutex
	userID string
}

var _ Writer = (*HTTPClient)(nil)

func NewHTTPClient(creds Credentials) *HTTPClient {
	l := loadLimits()
	return &HTTPClient{
		baseURL:     "https://api.twitter.com",
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(l.RPS), l.Burst),
		maxAttempts: l.MaxAttempts,
		baseBackoff: time.Duration(l.BaseBackoffMS) * time.Millisecond,
		maxWait:     30 * time.Second,
		signer:      NewSigner(creds),
	}
}

// Me returns the authenticated user's id. The first successful lookup is cached.
func (c *HTTPClient) Me(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.userID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}
	var raw struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := c.call(ctx, "users_me", http.MethodGet, "/2/users/me", nil, &raw); err != nil {
		return "", err
	}
	if raw.Data.ID == "" {
		return "", errors.New("x api users/me: empty id")
	}
	c.mu.Lock()
	c.userID = raw.Data.ID
	c.mu.Unlock()
	return raw.Data.ID, nil
}

// Like likes tweetID as the authenticated user.
func (c *HTTPClient) Like(ctx context.Context, tweetID string) error {
	if tweetID == "" {
		return errors.New("empty tweet id")
	}
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	var raw struct {
		Data struct {
			Liked bool `json:"liked"`
		} `json:"data"`
	}
	if err := c.call(ctx, "likes", http.MethodPost, "/2/users/"+me+"/likes", map[string]string{"tweet_id": tweetID}, &raw); err != nil {
		return err
	}
	if !raw.Data.Liked {
		return fmt.Errorf("like %s not applied", tweetID)
	}
	return nil
}

// Retweet reposts tweetID.
func (c *HTTPClient) Retweet(ctx context.Context, tweetID string) error {
	if tweetID == "" {
		return errors.New("empty tweet id")
	}
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	var raw struct {
		Data struct {
			Retweeted bool `json:"retweeted"`
		} `json:"data"`
	}
	if err := c.call(ctx, "retweets", http.MethodPost, "/2/users/"+me+"/retweets", map[string]string{"tweet_id": tweetID}, &raw); err != nil {
		return err
	}
	if !raw.Data.Retweeted {
		return fmt.Errorf("retweet %s not applied", tweetID)
	}
	return nil
}

// PostReply publishes text as a reply and returns the new post id.
func (c *HTTPClient) PostReply(ctx context.Context, text, inReplyToID string) (string, error) {
	if text == "" || inReplyToID == "" {
		return "", errors.New("reply needs text and a target id")
	}
	body := map[string]any{
		"text":  text,
		"reply": map[string]string{"in_reply_to_tweet_id": inReplyToID},
	}
	var raw struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.call(ctx, "tweets", http.MethodPost, "/2/tweets", body, &raw); err != nil {
		return "", err
	}
	return raw.Data.ID, nil
}

// call sends one JSON request and decodes the answer into out.
func (c *HTTPClient) call(ctx context.Context, endpoint, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, endpoint, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Method: method, Endpoint: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// doWithRetry re-signs and resends req on transport errors and 5xx, honoring
// Retry-After (capped at maxWait) with +/-20% jitter. A 429 is returned
// at once.
func (c *HTTPClient) doWithRetry(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		r := req.Clone(ctx)
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = b
		}
		if c.signer != nil {
			c.signer.Sign(r)
		}
		resp, err := c.httpClient.Do(r)
		if err == nil {
			if resp.StatusCode < 500 || resp.StatusCode > 599 || attempt == c.maxAttempts {
				return resp, nil
			}
			wait := min(retryAfter(resp.Header.Get("Retry-After"), backoff), c.maxWait)
			_ = resp.Body.Close()
			if err := sleep(ctx, jitter(wait)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func retryAfter(h string, def time.Duration) time.Duration {
	if h == "" {
		return def
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return def
}

func jitter(wait time.Duration) time.Duration {
	j := time.Duration(float64(wait) * 0.2)
	if j <= 0 {
		return wait
	}
	return wait - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
