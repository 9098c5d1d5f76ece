package browser

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"herald/internal/model"
)

// scrapeJS returns every post article currently in the DOM.
const scrapeJS = `() => {
  const metric = (root, id) => {
    const el = root.querySelector('[data-testid="' + id + '"]');
    return el ? el.innerText.trim() : '';
  };
  return Array.from(document.querySelectorAll('article[data-testid="tweet"]')).map(a => {
    const link = a.querySelector('a[href*="/status/"] time')?.closest('a');
    const href = link ? link.getAttribute('href') : '';
    const m = href.match(/^\/([^\/]+)\/status\/(\d+)/);
    const text = a.querySelector('[data-testid="tweetText"]');
    const views = a.querySelector('a[href$="/analytics"]');
    return {
      id: m ? m[2] : '',
      handle: m ? m[1] : '',
      url: href ? location.origin + href.split('?')[0] : '',
      text: text ? text.innerText : '',
      likes: metric(a, 'like') || metric(a, 'unlike'),
      retweets: metric(a, 'retweet') || metric(a, 'unretweet'),
      replies: metric(a, 'reply'),
      views: views ? views.innerText.trim() : ''
    };
  });
}`

const scrollJS = `() => { window.scrollBy(0, window.innerHeight * 2); return true; }`

type scrapedPost struct {
	ID       string `json:"id"`
	Handle   string `json:"handle"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	Likes    string `json:"likes"`
	Retweets string `json:"retweets"`
	Replies  string `json:"replies"`
	Views    string `json:"views"`
}

func (p scrapedPost) candidate() model.CandidatePost {
	return model.CandidatePost{
		TweetID:      p.ID,
		AuthorHandle: p.Handle,
		Text:         p.Text,
		URL:          p.URL,
		Likes:        p.Likes,
		Retweets:     p.Retweets,
		Replies:      p.Replies,
		Views:        p.Views,
	}
}

// TimelinePosts lazily yields up to count unique posts from the home timeline,
// scrolling at most maxScrolls times. The first error ends the sequence.
func (m *Manager) TimelinePosts(ctx context.Context, count, maxScrolls int) iter.Seq2[model.CandidatePost, error] {
	return func(yield func(model.CandidatePost, error) bool) {
		if count <= 0 {
			return
		}
		d, err := m.ready()
		if err != nil {
			yield(model.CandidatePost{}, err)
			return
		}
		if err := m.navigate(ctx, d, m.opts.BaseURL+"/home"); err != nil {
			yield(model.CandidatePost{}, stepErr("open timeline", err))
			return
		}
		seen := make(map[string]bool)
		yielded := 0
		for scroll := 0; ; scroll++ {
			posts, err := m.scan(ctx, d)
			if err != nil {
				yield(model.CandidatePost{}, err)
				return
			}
			for _, p := range posts {
				key := p.ID
				if key == "" {
					key = p.URL + "|" + p.Text
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				if !yield(p.candidate(), nil) {
					return
				}
				yielded++
				if yielded >= count {
					return
				}
			}
			if scroll >= maxScrolls {
				return
			}
			if err := m.step(ctx, "scroll", func(c context.Context) error {
				_, err := d.Evaluate(c, scrollJS)
				return err
			}); err != nil {
				yield(model.CandidatePost{}, err)
				return
			}
			if err := pause(ctx, m.opts.ScrollPause); err != nil {
				yield(model.CandidatePost{}, err)
				return
			}
		}
	}
}

func (m *Manager) scan(ctx context.Context, d Driver) ([]scrapedPost, error) {
	var posts []scrapedPost
	err := m.step(ctx, "scrape", func(c context.Context) error {
		raw, err := d.Evaluate(c, scrapeJS)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &posts)
	})
	return posts, err
}

func pause(ctx context.Context, d time.Duration) error {
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
