// Package llmtest provides a deterministic llm.Client double for tests
// that exercise the Assistant actor without a real model backend.
package llmtest

import (
	"context"
	"sync"

	"github.com/agentgrid/agentgrid/internal/llm"
)

// FakeClient returns queued responses in order, one per Complete call. The
// last response repeats once the queue is exhausted, so tests that don't
// care about exact call counts don't need to over-provision the queue.
type FakeClient struct {
	mu        sync.Mutex
	responses []llm.Response
	calls     []llm.Request
}

// NewFakeClient returns a FakeClient that yields responses in order.
func NewFakeClient(responses ...llm.Response) *FakeClient {
	return &FakeClient{responses: responses}
}

func (f *FakeClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return llm.Response{}, nil
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

// Calls returns every request Complete has observed so far, for assertions.
func (f *FakeClient) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}
