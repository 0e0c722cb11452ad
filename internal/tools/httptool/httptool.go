// Package httptool implements the http tool (C11, spec.md §4/§9): a builder
// over net/http with spec.md's retry contract — exponential backoff via
// internal/backoff, retry on transport errors or a configured set of
// retryable status codes, fixed timeout per attempt. Grounded on the
// teacher's internal/tools/exec command-execution shape (parse args,
// validate, run, truncate/report) generalized from a shell command to an
// HTTP round trip, and internal/backoff.ComputeBackoff for the delay
// schedule spec.md names explicitly ("base_delay * 2^attempt").
package httptool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentgrid/agentgrid/internal/backoff"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

const maxBodyChars = 16384

// Tool is the http toolproto.Executor. Client defaults to http.DefaultClient
// when nil.
type Tool struct {
	Client *http.Client
}

func (t *Tool) Name() string        { return "http" }
func (t *Tool) Description() string { return "Make an HTTP request, with optional retry on failure." }

func (t *Tool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"method": {"type": "string", "description": "HTTP method, default GET."},
			"url": {"type": "string"},
			"headers": {"type": "object", "additionalProperties": {"type": "string"}},
			"body": {"type": "string"},
			"timeout_ms": {"type": "integer", "minimum": 1},
			"retry": {
				"type": "object",
				"properties": {
					"max_attempts": {"type": "integer", "minimum": 1},
					"base_delay_ms": {"type": "integer", "minimum": 1},
					"retry_on_status_codes": {"type": "array", "items": {"type": "integer"}}
				}
			}
		},
		"required": ["url"]
	}`)
}

func (t *Tool) RequiresApproval(json.RawMessage) bool { return false }

type requestArgs struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	TimeoutMs int               `json:"timeout_ms"`
	Retry     *retryArgs        `json:"retry"`
}

type retryArgs struct {
	MaxAttempts        int   `json:"max_attempts"`
	BaseDelayMs        int   `json:"base_delay_ms"`
	RetryOnStatusCodes []int `json:"retry_on_status_codes"`
}

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args requestArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	method := strings.ToUpper(strings.TrimSpace(args.Method))
	if method == "" {
		method = http.MethodGet
	}
	if _, err := url.ParseRequestURI(args.URL); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("InvalidUrl: %v", err)}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := time.Duration(args.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxAttempts := 1
	policy := backoff.DefaultPolicy()
	retryableStatus := map[int]bool{}
	if args.Retry != nil {
		if args.Retry.MaxAttempts > 0 {
			maxAttempts = args.Retry.MaxAttempts
		}
		if args.Retry.BaseDelayMs > 0 {
			policy.InitialMs = float64(args.Retry.BaseDelayMs)
			policy.Factor = 2
			policy.Jitter = 0
		}
		for _, code := range args.Retry.RetryOnStatusCodes {
			retryableStatus[code] = true
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, body, err := t.doOnce(ctx, client, timeout, method, args.URL, args.Headers, args.Body)
		if err == nil && !retryableStatus[status] {
			return fmt.Sprintf("%s %s", method, args.URL), domainmsg.ToolResult{Ok: fmt.Sprintf("HTTP %d\n%s", status, truncate(body))}
		}
		if err == nil {
			lastErr = fmt.Errorf("retryable status %d", status)
		} else {
			lastErr = err
		}
		if attempt == maxAttempts {
			break
		}
		delay := backoff.ComputeBackoff(policy, attempt)
		select {
		case <-ctx.Done():
			return "", domainmsg.ToolResult{Err: "Timeout"}
		case <-time.After(delay):
		}
	}

	if ctx.Err() != nil {
		return "", domainmsg.ToolResult{Err: "Timeout"}
	}
	return fmt.Sprintf("%s %s", method, args.URL), domainmsg.ToolResult{Err: fmt.Sprintf("NetworkError: %v", lastErr)}
}

func (t *Tool) doOnce(ctx context.Context, client *http.Client, timeout time.Duration, method, rawURL string, headers map[string]string, body string) (int, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != "" {
		reqBody = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reqBody)
	if err != nil {
		return 0, "", fmt.Errorf("BuilderError: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(respBody), nil
}

func truncate(s string) string {
	if len(s) <= maxBodyChars {
		return s
	}
	return s[:maxBodyChars] + "\n... truncated ..."
}
