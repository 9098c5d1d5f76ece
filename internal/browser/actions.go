package browser

import (
	"context"
	"errors"
)

// The focused post on a status page is the article with tabindex -1.
const focused = `article[data-testid="tweet"][tabindex="-1"] `

const (
	selLike           = focused + `[data-testid="like"]`
	selUnlike         = focused + `[data-testid="unlike"]`
	selRetweet        = focused + `[data-testid="retweet"]`
	selRetweetConfirm = `[data-testid="retweetConfirm"]`
	selReply          = focused + `[data-testid="reply"]`
	selReplyBox       = `[data-testid="tweetTextarea_0"]`
	selReplySend      = `[data-testid="tweetButton"]`
)

// LikePost opens url and likes the focused post.
func (m *Manager) LikePost(ctx context.Context, url string) error {
	return m.onPost(ctx, url,
		uiStep{"like", func(c context.Context, d Driver) error { return d.Click(c, selLike) }},
		uiStep{"confirm like", func(c context.Context, d Driver) error { return d.WaitFor(c, selUnlike) }},
	)
}

// RetweetPost opens url and reposts the focused post.
func (m *Manager) RetweetPost(ctx context.Context, url string) error {
	return m.onPost(ctx, url,
		uiStep{"retweet", func(c context.Context, d Driver) error { return d.Click(c, selRetweet) }},
		uiStep{"confirm retweet", func(c context.Context, d Driver) error { return d.Click(c, selRetweetConfirm) }},
	)
}

// ReplyToPost opens url and posts text as a reply.
func (m *Manager) ReplyToPost(ctx context.Context, url, text string) error {
	if text == "" {
		return errors.New("empty reply text")
	}
	return m.onPost(ctx, url,
		uiStep{"reply", func(c context.Context, d Driver) error { return d.Click(c, selReply) }},
		uiStep{"reply text", func(c context.Context, d Driver) error { return d.Type(c, selReplyBox, text) }},
		uiStep{"send reply", func(c context.Context, d Driver) error { return d.Click(c, selReplySend) }},
	)
}

type uiStep struct {
	name string
	run  func(context.Context, Driver) error
}

func (m *Manager) onPost(ctx context.Context, url string, steps ...uiStep) error {
	if url == "" {
		return errors.New("empty post url")
	}
	d, err := m.ready()
	if err != nil {
		return err
	}
	if err := m.navigate(ctx, d, url); err != nil {
		return stepErr("open post", err)
	}
	for _, s := range steps {
		if err := m.step(ctx, s.name, func(c context.Context) error { return s.run(c, d) }); err != nil {
			return err
		}
	}
	return nil
}
