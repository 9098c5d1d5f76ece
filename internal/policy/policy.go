// Package policy turns a candidate post into an engagement decision using the
// language model and the persona rules.
package policy

import (
	"context"
	"fmt"

	"herald/internal/config"
	"herald/internal/llm"
	"herald/internal/logging"
	"herald/internal/model"
	"herald/internal/util"
)

// DefaultMinConfidence is the threshold at or below which decisions are ignored.
const DefaultMinConfidence = 0.5

// maxReplyRunes keeps replies inside the platform limit once the ellipsis is added.
const maxReplyRunes = 279

// Engine decides how to engage with a post.
type Engine struct {
	llm           llm.Client
	persona       config.PersonaConfig
	minConfidence float64
	system        string
}

func New(client llm.Client, persona config.PersonaConfig, minConfidence float64) *Engine {
	return &Engine{
		llm:           client,
		persona:       persona,
		minConfidence: minConfidence,
		system:        SystemPrompt(persona),
	}
}

// Decide never fails: model errors, parse errors and low confidence all come
// back as an ignore decision.
func (e *Engine) Decide(ctx context.Context, postText string, score float64) model.Decision {
	if util.ContainsAnyCaseInsensitive(postText, e.persona.BlockedPhrases) {
		return model.IgnoreDecision("blocked phrase in post")
	}
	resp, err := e.llm.Generate(ctx, e.system, UserPrompt(postText, score))
	if err != nil {
		logging.Warn("policy_llm_failed", map[string]any{"error": err})
		return model.IgnoreDecision(fmt.Sprintf("llm error: %v", err))
	}
	d, err := ParseDecision(resp.Text)
	if err != nil {
		logging.Warn("policy_parse_failed", map[string]any{"error": err, "raw": util.Truncate(resp.Text, 200)})
		return model.IgnoreDecision(err.Error())
	}
	return e.applyThreshold(d)
}

func (e *Engine) applyThreshold(d model.Decision) model.Decision {
	if d.IsIgnore() {
		return d
	}
	if d.Confidence <= e.minConfidence {
		return model.Decision{
			Action:     model.Ignore{},
			Confidence: d.Confidence,
			Reasoning:  fmt.Sprintf("confidence %.2f at or below %.2f: %s", d.Confidence, e.minConfidence, d.Reasoning),
		}
	}
	if r, ok := d.Action.(model.Reply); ok {
		d.Action = model.Reply{Text: util.Truncate(util.NormalizeWhitespace(r.Text), maxReplyRunes)}
	}
	return d
}
