package model

import "time"

// CandidatePost is a post scraped from the home timeline. Metric fields keep the
// raw strings the UI shows ("1.2K", "3M", "") so nothing is lost before parsing.
type CandidatePost struct {
	TweetID      string
	AuthorHandle string
	Text         string
	URL          string
	Likes        string
	Retweets     string
	Replies      string
	Views        string
}

// Target identifies the post an action is aimed at.
type Target struct {
	TweetID      string
	AuthorHandle string
	URL          string
}

// Target returns the action target for the post.
func (p CandidatePost) Target() Target {
	return Target{TweetID: p.TweetID, AuthorHandle: p.AuthorHandle, URL: p.CanonicalURL()}
}

// CanonicalURL returns the status URL, deriving it from handle and id when the
// scrape did not capture one.
func (p CandidatePost) CanonicalURL() string {
	if p.URL != "" {
		return p.URL
	}
	return StatusURL("https://x.com", p.AuthorHandle, p.TweetID)
}

// StatusURL builds the canonical post URL under base.
func StatusURL(base, handle, tweetID string) string {
	return base + "/" + handle + "/status/" + tweetID
}

// Method is the channel an engagement went through.
type Method string

const (
	MethodAPI     Method = "api"
	MethodBrowser Method = "browser"
	MethodNone    Method = "none"
)

// ActionRecord is one append-only audit entry per engagement attempt.
type ActionRecord struct {
	ID              string     `json:"id"`
	RunID           string     `json:"run_id"`
	Timestamp       time.Time  `json:"timestamp"`
	Method          Method     `json:"engagement_method"`
	ActionType      ActionKind `json:"action_type"`
	Reasoning       string     `json:"reasoning,omitempty"`
	Confidence      float64    `json:"confidence"`
	TargetUser      string     `json:"target_user"`
	TargetTweetID   string     `json:"target_tweet_id"`
	TargetURL       string     `json:"target_url,omitempty"`
	ReplyText       string     `json:"reply_text,omitempty"`
	EngagementScore float64    `json:"engagement_score"`
	Success         bool       `json:"success"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Attempts        int        `json:"attempts"`
	Likes           int        `json:"likes"`
	Replies         int        `json:"replies"`
	Retweets        int        `json:"retweets"`
	Views           int        `json:"views"`
}

// Executed reports whether the record stands for a real platform action
// (as opposed to an ignore decision).
func (r ActionRecord) Executed() bool {
	return r.ActionType != KindIgnore && r.ActionType != ""
}
