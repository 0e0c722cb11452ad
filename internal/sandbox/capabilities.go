package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/backoff"
	"github.com/agentgrid/agentgrid/internal/scope"
	"github.com/agentgrid/agentgrid/internal/spawner"
)

// HostInfo is the host-info capability's observable contract: {os, arch, cwd}.
type HostInfo struct {
	OS  string `json:"os"`
	Arch string `json:"arch"`
	Cwd string `json:"cwd"`
}

// CommandStatus mirrors spec.md §4.3's command-builder run() result status
// enum: Exited(code) | Signaled(signal) | TimeoutExpired | FailedToStart(reason).
type CommandStatus struct {
	Kind   string `json:"kind"` // exited | signaled | timeout_expired | failed_to_start
	Code   int    `json:"code,omitempty"`
	Signal string `json:"signal,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CommandResult is the command builder's run() return value.
type CommandResult struct {
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	Status          CommandStatus `json:"status"`
	StdoutTruncated bool          `json:"stdout_truncated"`
	StderrTruncated bool          `json:"stderr_truncated"`
}

// CommandBuilder accumulates os/exec.Cmd parameters across consume-and-
// reproduce handle calls (spec.md §4.3): each method returns a new
// CommandBuilder value rather than mutating in place, so the ResourceTable
// can install it behind a fresh Handle.
type CommandBuilder struct {
	Program        string
	Args           []string
	Env            map[string]string
	Dir            string
	Timeout        time.Duration
	MaxOutputBytes int
}

func NewCommandBuilder(program string) CommandBuilder {
	return CommandBuilder{Program: program, Env: map[string]string{}}
}

func (c CommandBuilder) WithArgs(args []string) CommandBuilder {
	c.Args = args
	return c
}

func (c CommandBuilder) WithEnv(key, value string) CommandBuilder {
	env := make(map[string]string, len(c.Env)+1)
	for k, v := range c.Env {
		env[k] = v
	}
	env[key] = value
	c.Env = env
	return c
}

func (c CommandBuilder) WithCurrentDir(dir string) CommandBuilder {
	c.Dir = dir
	return c
}

func (c CommandBuilder) WithTimeout(d time.Duration) CommandBuilder {
	c.Timeout = d
	return c
}

func (c CommandBuilder) WithMaxOutputBytes(n int) CommandBuilder {
	c.MaxOutputBytes = n
	return c
}

// Run executes the accumulated command: it pipes stdout/stderr and kills
// the child and reports TimeoutExpired on timeout. Output past
// MaxOutputBytes is discarded and StdoutTruncated/StderrTruncated are set;
// the child is not killed when the limit is reached.
func (c CommandBuilder) Run(ctx context.Context) CommandResult {
	runCtx := ctx
	var cancel context.CancelFunc
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Program, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		env := os.Environ()
		for k, v := range c.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	maxBytes := c.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20 // 1 MiB default ceiling
	}
	var stdout, stderr limitedBuffer
	stdout.limit, stderr.limit = maxBytes, maxBytes
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	err := cmd.Run()

	result := CommandResult{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
	}

	switch {
	case runCtx.Err() != nil:
		result.Status = CommandStatus{Kind: "timeout_expired"}
	case err == nil:
		result.Status = CommandStatus{Kind: "exited", Code: 0}
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			if exitErr.ExitCode() < 0 {
				result.Status = CommandStatus{Kind: "signaled", Signal: exitErr.String()}
			} else {
				result.Status = CommandStatus{Kind: "exited", Code: exitErr.ExitCode()}
			}
		} else {
			result.Status = CommandStatus{Kind: "failed_to_start", Reason: err.Error()}
		}
	}
	return result
}

// limitedBuffer caps writes at limit bytes, discarding the remainder and
// recording that truncation happened, matching "kill the child once
// max_output_bytes is reached" without needing to actually kill mid-write
// (the caller enforces the kill by cancelling runCtx from outside if it
// wants a hard ceiling; this buffer bounds memory regardless).
type limitedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.Len() >= b.limit {
		b.truncated = true
		return len(p), nil
	}
	remaining := b.limit - b.Len()
	if len(p) > remaining {
		b.truncated = true
		p = p[:remaining]
	}
	return b.Buffer.Write(p)
}

// HTTPBuilder mirrors CommandBuilder's consume-and-reproduce shape for the
// http capability (spec.md §4.3).
type HTTPBuilder struct {
	Method             string
	URL                string
	Headers            map[string]string
	Body               string
	Timeout            time.Duration
	MaxAttempts        int
	BaseDelay          time.Duration
	RetryOnStatusCodes map[int]bool
}

func NewHTTPBuilder(method, url string) HTTPBuilder {
	return HTTPBuilder{Method: method, URL: url, Headers: map[string]string{}, MaxAttempts: 1}
}

func (h HTTPBuilder) WithHeader(key, value string) HTTPBuilder {
	headers := make(map[string]string, len(h.Headers)+1)
	for k, v := range h.Headers {
		headers[k] = v
	}
	headers[key] = value
	h.Headers = headers
	return h
}

func (h HTTPBuilder) WithBody(body string) HTTPBuilder {
	h.Body = body
	return h
}

func (h HTTPBuilder) WithTimeout(d time.Duration) HTTPBuilder {
	h.Timeout = d
	return h
}

func (h HTTPBuilder) WithRetry(maxAttempts int, baseDelay time.Duration) HTTPBuilder {
	h.MaxAttempts = maxAttempts
	h.BaseDelay = baseDelay
	return h
}

func (h HTTPBuilder) WithRetryOnStatusCodes(codes []int) HTTPBuilder {
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	h.RetryOnStatusCodes = set
	return h
}

// HTTPResponse is the http builder's send() return value.
type HTTPResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Send implements spec.md §4.3's send() contract: exponential backoff via
// internal/backoff, retrying on transport errors or a configured retryable
// status set, matching internal/tools/httptool's retry loop so sandboxed
// and native dispatch share the same policy.
func (h HTTPBuilder) Send(ctx context.Context) (HTTPResponse, error) {
	policy := backoff.DefaultPolicy()
	if h.BaseDelay > 0 {
		policy.InitialMs = float64(h.BaseDelay.Milliseconds())
		policy.Factor = 2
		policy.Jitter = 0
	}
	maxAttempts := h.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, body, err := h.doOnce(ctx)
		if err == nil && !h.RetryOnStatusCodes[status] {
			return HTTPResponse{Status: status, Body: body}, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("retryable status %d", status)
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return HTTPResponse{}, ctx.Err()
		case <-time.After(backoff.ComputeBackoff(policy, attempt)):
		}
	}
	return HTTPResponse{}, lastErr
}

func (h HTTPBuilder) doOnce(ctx context.Context) (int, string, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if h.Body != "" {
		body = bytes.NewBufferString(h.Body)
	}
	req, err := http.NewRequestWithContext(reqCtx, h.Method, h.URL, body)
	if err != nil {
		return 0, "", err
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
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

// Messaging is the messaging capability: broadcast(message_type, payload)
// publishes via the bus using the actor's own scope/id (spec.md §4.3).
type Messaging struct {
	cctx *actorhost.Context
}

func (m Messaging) Broadcast(id, messageType string, payload any) error {
	return m.cctx.Publish(id, messageType, payload)
}

// Agent is the agent capability: spawn_agent(actor_names) creates a child
// scope populated with those actors plus their dependency closure.
type Agent struct {
	spawner *spawner.Spawner
	cctx    *actorhost.Context
}

func (a Agent) SpawnAgent(ctx context.Context, actorNames []string) (scope.Scope, error) {
	parent := a.cctx.Scope
	result, err := a.spawner.Spawn(ctx, spawner.Request{
		RequestedActors: actorNames,
		Role:             "Worker",
		ParentScope:      &parent,
	})
	if err != nil {
		return scope.Scope{}, err
	}
	return result.Scope, nil
}

// Logger is the logger capability: takes (level, message) and emits to the
// host's structured log with the actor's correlation id attached.
type Logger struct {
	cctx *actorhost.Context
}

func (l Logger) Log(level, message string) {
	log := l.cctx.Log()
	switch level {
	case "debug":
		log.Debug(message)
	case "warn":
		log.Warn(message)
	case "error":
		log.Error(message)
	default:
		log.Info(message)
	}
}

// Capabilities bundles the host-side capability implementations exposed to
// one sandboxed guest instance.
type Capabilities struct {
	Logger    Logger
	HostInfo  HostInfo
	Messaging Messaging
	Agent     Agent
	Resources *ResourceTable
}

// NewCapabilities wires the capability ABI to one actor's Context, the
// process-wide Spawner, and a fresh per-actor resource table.
func NewCapabilities(cctx *actorhost.Context, sp *spawner.Spawner) *Capabilities {
	cwd, _ := os.Getwd()
	return &Capabilities{
		Logger:    Logger{cctx: cctx},
		HostInfo:  HostInfo{OS: runtime.GOOS, Arch: runtime.GOARCH, Cwd: cwd},
		Messaging: Messaging{cctx: cctx},
		Agent:     Agent{spawner: sp, cctx: cctx},
		Resources: NewResourceTable(),
	}
}
