// Package ai wraps the OpenAI-compatible chat completion API behind a single,
// read-only client handle with an explicit disabled state.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"restoassist/internal/metrics"
	"restoassist/internal/resource"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant

	DefaultModel = "gpt-4o-mini"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Reply struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// InvokeOptions bounds one call. Zero values mean "no bound" except MaxTokens,
// which defaults to 500.
type InvokeOptions struct {
	MaxTokens       int
	Temperature     float32
	HistoryTurns    int
	MaxMessageChars int
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout is the transport timeout for every call made by the client.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client is the process's single AI client. It is immutable after Initialize
// and safe for concurrent Invoke calls.
type Client struct {
	api   *openai.Client
	model string
	state resource.State
	cause error
	log   zerolog.Logger
}

// Initialize builds the client and verifies the key with one ListModels call.
// It always returns a non-nil *Client:
//   - empty key: StateUnconfigured, resource.ErrUnconfigured, no network call
//   - verification failed: StateUnavailable, resource.ErrUnavailable
func Initialize(ctx context.Context, opts Options) (*Client, error) {
	c := &Client{
		model: opts.Model,
		state: resource.StateUnconfigured,
		log:   opts.Logger,
	}
	if c.model == "" {
		c.model = DefaultModel
	}

	if strings.TrimSpace(opts.APIKey) == "" {
		c.log.Info().Msg("ai: no api key configured, assistant disabled")
		metrics.DependencyState("ai", c.state)
		return c, resource.E("ai.initialize", resource.KindUnconfigured, nil)
	}

	c.state = resource.StateInitializing
	metrics.DependencyState("ai", c.state)

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	cfg.HTTPClient = hc
	c.api = openai.NewClientWithConfig(cfg)

	models, err := c.api.ListModels(ctx)
	if err != nil {
		c.state = resource.StateUnavailable
		c.cause = err
		metrics.DependencyState("ai", c.state)
		c.log.Warn().
			Err(err).
			Int("status", statusCode(err)).
			Str("outcome", "unavailable").
			Msg("ai: verification failed, assistant disabled")
		return c, resource.E("ai.initialize", resource.KindUnavailable, err)
	}

	c.state = resource.StateReady
	metrics.DependencyState("ai", c.state)
	c.log.Info().
		Str("model", c.model).
		Int("models_visible", len(models.Models)).
		Str("outcome", "ready").
		Msg("ai: client ready")
	return c, nil
}

func (c *Client) State() resource.State { return c.state }

func (c *Client) Model() string { return c.model }

// Cause is the verification error for an Unavailable client.
func (c *Client) Cause() error { return c.cause }

// Invoke sends one bounded conversation and returns the first choice. There is
// no retry: a failed call returns resource.ErrUpstream, an empty answer
// returns resource.ErrMalformedReply.
func (c *Client) Invoke(ctx context.Context, messages []Message, opts InvokeOptions) (Reply, error) {
	if err := resource.ForState("ai.invoke", c.state, c.cause); err != nil {
		return Reply{}, err
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	bounded := BoundHistory(messages, opts.HistoryTurns, opts.MaxMessageChars)
	if len(bounded) == 0 {
		return Reply{}, resource.E("ai.invoke", resource.KindProgrammingError, errors.New("no messages"))
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(bounded)),
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	}
	for _, m := range bounded {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	took := time.Since(start)
	if err != nil {
		metrics.AIInvocation(metrics.OutcomeFailed, took)
		c.log.Warn().
			Err(err).
			Int("status", statusCode(err)).
			Dur("took", took).
			Msg("ai: completion failed")
		return Reply{}, resource.E("ai.invoke", resource.KindUpstreamFailure, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.AIInvocation(metrics.OutcomeMalformed, took)
		c.log.Warn().Int("choices", len(resp.Choices)).Msg("ai: completion returned no content")
		return Reply{}, resource.E("ai.invoke", resource.KindMalformedReply, fmt.Errorf("%d choices, empty content", len(resp.Choices)))
	}

	metrics.AIInvocation(metrics.OutcomeOK, took)
	metrics.AITokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	c.log.Debug().
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("took", took).
		Msg("ai: completion ok")

	return Reply{
		Content:      strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
