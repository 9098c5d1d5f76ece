package model

// ActionKind names an engagement action as stored in the action log.
type ActionKind string

const (
	KindIgnore  ActionKind = "ignore"
	KindLike    ActionKind = "like"
	KindReply   ActionKind = "reply"
	KindRetweet ActionKind = "retweet"
)

// Action is the closed set of things the policy can ask for:
// Ignore, Like, Reply and Retweet.
type Action interface {
	Kind() ActionKind
	isAction()
}

type Ignore struct{}

type Like struct{}

type Retweet struct{}

// Reply carries the drafted reply text.
type Reply struct {
	Text string
}

func (Ignore) Kind() ActionKind  { return KindIgnore }
func (Like) Kind() ActionKind    { return KindLike }
func (Retweet) Kind() ActionKind { return KindRetweet }
func (Reply) Kind() ActionKind   { return KindReply }

func (Ignore) isAction()  {}
func (Like) isAction()    {}
func (Retweet) isAction() {}
func (Reply) isAction()   {}

// Decision is the policy outcome for one candidate.
type Decision struct {
	Action     Action
	Confidence float64
	Reasoning  string
}

// IsIgnore reports whether the decision results in no platform action.
func (d Decision) IsIgnore() bool {
	if d.Action == nil {
		return true
	}
	_, ok := d.Action.(Ignore)
	return ok
}

// ReplyText returns the drafted reply, if the decision is a reply.
func (d Decision) ReplyText() string {
	if r, ok := d.Action.(Reply); ok {
		return r.Text
	}
	return ""
}

// IgnoreDecision builds an ignore decision with zero confidence.
func IgnoreDecision(reason string) Decision {
	return Decision{Action: Ignore{}, Confidence: 0, Reasoning: reason}
}
