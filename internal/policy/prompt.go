package policy

import (
	"fmt"
	"strings"

	"herald/internal/config"
)

// SystemPrompt renders the persona rules the model decides under.
func SystemPrompt(p config.PersonaConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", p.Name, p.Description)
	b.WriteString("You decide how to engage with one social media post at a time.\n\n")
	if len(p.Topics) > 0 {
		fmt.Fprintf(&b, "Topics you care about: %s.\n", strings.Join(p.Topics, ", "))
	}
	if p.Promotion != "" {
		fmt.Fprintf(&b, "Promotion: %s\n", p.Promotion)
	}
	b.WriteString(`Rules:
- Ignore posts that ask people to share wallet addresses, seed phrases or DMs for airdrops.
- Ignore spam, giveaways, engagement bait and anything off-topic.
- Prefer like for good posts, reply only when you can add something specific, retweet rarely.
- Replies are under 240 characters, no hashtags, no links.

Answer with exactly these tags:
<action>ignore|like|reply|retweet</action>
<confidence>a number between 0 and 1</confidence>
<reasoning>one sentence</reasoning>
<reply>reply text, only when action is reply</reply>
`)
	return b.String()
}

// UserPrompt embeds the post and its engagement score.
func UserPrompt(postText string, score float64) string {
	return fmt.Sprintf("Post:\n%s\n\nEngagement score: %.1f\n\nHow should you engage?", strings.TrimSpace(postText), score)
}
