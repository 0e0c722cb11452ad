// Package openaicompat adapts an OpenAI-compatible chat-completions
// endpoint to the llm.Client port, grounded on the teacher's
// internal/agent/providers OpenAIProvider.
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/llm"
)

// Client wraps an openai.Client, retrying transient failures with a linear
// backoff: the wait before attempt n (counting from 0) is n × retryDelay.
type Client struct {
	raw        *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries overrides the default total number of attempts (3),
// counting the first one.
func WithMaxRetries(n int) Option { return func(c *Client) { c.maxRetries = n } }

// WithRetryDelay overrides the default backoff delay between retries.
func WithRetryDelay(d time.Duration) Option { return func(c *Client) { c.retryDelay = d } }

// New builds a Client against an OpenAI-compatible endpoint. baseURL may
// be empty to use the default OpenAI API.
func New(apiKey, baseURL, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openaicompat: API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &Client{
		raw:        openai.NewClientWithConfig(cfg),
		model:      model,
		maxRetries: 3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return llm.Response{}, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
		resp, err := c.raw.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			return fromOpenAIResponse(resp), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return llm.Response{}, ctx.Err()
		}
	}
	return llm.Response{}, fmt.Errorf("openaicompat: exhausted retries: %w", lastErr)
}

func toOpenAIMessages(msgs []domainmsg.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func toOpenAITools(tools []domainmsg.ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.InputSchema),
			},
		})
	}
	return out
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) llm.Response {
	if len(resp.Choices) == 0 {
		return llm.Response{}
	}
	choice := resp.Choices[0].Message
	out := llm.Response{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domainmsg.AssistantToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
