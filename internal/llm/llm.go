// Package llm talks to the chat-completion model that drives engagement
// decisions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"herald/internal/config"
	"herald/internal/metrics"
	"herald/internal/util"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("llm provider disabled")

// Response is one completion plus its token accounting.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
}

// Client generates a completion for a system and a user prompt.
type Client interface {
	Generate(ctx context.Context, system, user string) (Response, error)
}

// New returns the client for cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAI(cfg)
	case "", "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Disabled always fails with ErrDisabled, so every decision becomes ignore.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, string) (Response, error) {
	return Response{}, ErrDisabled
}

// OpenAI calls an OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	client    *resty.Client
	model     string
	inPer1K   float64
	outPer1K  float64
	maxTokens int
}

func NewOpenAI(cfg config.LLMConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key (set OPENAI_API_KEY)")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &OpenAI{client: c, model: cfg.Model, inPer1K: cfg.InputCostPer1K, outPer1K: cfg.OutputCostPer1K, maxTokens: 400}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends one chat completion and records token usage.
func (o *OpenAI) Generate(ctx context.Context, system, user string) (Response, error) {
	req := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   o.maxTokens,
	}
	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(&req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return Response{}, fmt.Errorf("openai request: %w", err)
	}
	if resp.IsError() {
		return Response{}, fmt.Errorf("openai status %d: %s", resp.StatusCode(), util.Truncate(resp.String(), 300))
	}
	if len(out.Choices) == 0 {
		return Response{}, errors.New("openai: no choices in response")
	}
	r := Response{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}
	r.Cost = float64(r.PromptTokens)/1000*o.inPer1K + float64(r.CompletionTokens)/1000*o.outPer1K
	metrics.AddLLMUsage(r.PromptTokens, r.CompletionTokens, r.Cost)
	return r, nil
}
