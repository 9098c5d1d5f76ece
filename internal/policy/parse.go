package policy

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"herald/internal/model"
)

// ParseError describes model output that could not be turned into a decision.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse decision: %s: %s", e.Field, e.Reason)
}

var tagPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, tag := range []string{"action", "confidence", "reasoning", "reply"} {
		tagPatterns[tag] = regexp.MustCompile(`(?is)<` + tag + `>(.*?)</` + tag + `>`)
	}
}

// tag returns the trimmed content of the first <name>...</name> block.
func tag(text, name string) (string, bool) {
	m := tagPatterns[name].FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ParseDecision reads <action>, <confidence>, <reasoning> and <reply> tags.
// Action and confidence are required; a reply needs non-empty reply text.
func ParseDecision(text string) (model.Decision, error) {
	var d model.Decision
	action, ok := tag(text, "action")
	if !ok {
		return d, &ParseError{Field: "action", Reason: "missing"}
	}
	raw, ok := tag(text, "confidence")
	if !ok {
		return d, &ParseError{Field: "confidence", Reason: "missing"}
	}
	conf, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil || math.IsNaN(conf) {
		return d, &ParseError{Field: "confidence", Reason: fmt.Sprintf("not a number: %q", raw)}
	}
	if conf < 0 || conf > 1 {
		return d, &ParseError{Field: "confidence", Reason: fmt.Sprintf("out of range: %v", conf)}
	}
	d.Confidence = conf
	d.Reasoning, _ = tag(text, "reasoning")

	switch model.ActionKind(strings.ToLower(action)) {
	case model.KindIgnore:
		d.Action = model.Ignore{}
	case model.KindLike:
		d.Action = model.Like{}
	case model.KindRetweet:
		d.Action = model.Retweet{}
	case model.KindReply:
		reply, _ := tag(text, "reply")
		if reply == "" {
			return model.Decision{}, &ParseError{Field: "reply", Reason: "empty reply text"}
		}
		d.Action = model.Reply{Text: reply}
	default:
		return model.Decision{}, &ParseError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
	return d, nil
}
