// Package llm defines the narrow port the Assistant actor needs from a
// language model backend. The spec treats the HTTP client internals as
// out of scope; only this interface and its wire contract matter to the
// rest of the system.
package llm

import (
	"context"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Request is one chat-completion turn, including the tool descriptors the
// model may call.
type Request struct {
	Messages []domainmsg.ChatMessage
	Tools    []domainmsg.ToolDescriptor
}

// Response is the model's reply: either assistant content, one or more
// tool calls, or both.
type Response struct {
	Content   string
	ToolCalls []domainmsg.AssistantToolCall
}

// Client is implemented by any backend capable of serving one chat
// completion. Implementations must respect ctx cancellation promptly. The
// Assistant's InterruptAndForceWait handling does not cancel a Complete
// call already in flight.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// TurnTracer starts a span around one Complete call. The returned end
// func must be called with the call's error (nil on success).
type TurnTracer interface {
	StartLLMTurn(ctx context.Context, provider, model string) (context.Context, func(err error))
}

// Traced wraps client so every Complete call is bracketed by a span from
// tracer, tagged with provider/model (internal/observability's otel
// wiring for C6's "span per LLM turn").
func Traced(client Client, tracer TurnTracer, provider, model string) Client {
	if tracer == nil {
		return client
	}
	return &tracedClient{client: client, tracer: tracer, provider: provider, model: model}
}

type tracedClient struct {
	client   Client
	tracer   TurnTracer
	provider string
	model    string
}

func (t *tracedClient) Complete(ctx context.Context, req Request) (Response, error) {
	spanCtx, end := t.tracer.StartLLMTurn(ctx, t.provider, t.model)
	resp, err := t.client.Complete(spanCtx, req)
	end(err)
	return resp, err
}
