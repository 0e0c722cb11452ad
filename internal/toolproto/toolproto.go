// Package toolproto implements the tool protocol (C7, spec.md §4.7): the
// multi-phase request/response contract every tool actor follows —
// advertise, Received, optional confirmation interlude, Finished — plus
// cancellation. Concrete tools (internal/tools/...) embed Base and supply
// only Name/Description/InputSchema/RequiresApproval/Execute.
package toolproto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Executor is the part of a tool specific to its domain: parse arguments,
// do the side effect, return a result. Approval gating, Received/Finished
// bookkeeping, and cancellation are handled by Base, not by Executor
// implementations.
type Executor interface {
	// Name must match the name carried in AssistantToolCall for dispatch.
	Name() string
	Description() string
	InputSchema() json.RawMessage
	// RequiresApproval reports whether this particular call needs user
	// confirmation before Execute runs. Tools that decide per-call (e.g.
	// execute_command's whitelist check) inspect rawArgs themselves.
	RequiresApproval(rawArgs json.RawMessage) bool
	// Execute performs the side effect. ctx is cancelled if the tool
	// protocol observes a Cancel addressed to this call.
	Execute(ctx context.Context, rawArgs json.RawMessage) (display string, result domainmsg.ToolResult)
}

// AutoApprove reports global auto-approval policy; Base consults it in
// addition to the per-call RequiresApproval check (spec.md §4.7(c):
// "the global configuration does not auto-approve").
type AutoApprove func(toolName string) bool

// LatencyObserver is notified with each call's end-to-end Execute
// duration, letting a metrics collector (internal/observability) build a
// tool-call latency histogram without toolproto importing it directly.
type LatencyObserver interface {
	ObserveToolCall(toolName string, seconds float64)
}

// Base drives the protocol in spec.md §4.7 around an Executor. It is
// embedded (by value, zero-initialized) in every concrete tool actor.
type Base struct {
	Exec        Executor
	AutoApprove AutoApprove
	Latency     LatencyObserver

	mu             sync.Mutex
	pendingConfirm map[string]pendingCall // call_id -> in-flight call awaiting confirmation
	cancels        map[string]context.CancelFunc
	schema         *jsonschema.Schema // compiled lazily from Exec.InputSchema()
	schemaErr      error
}

type pendingCall struct {
	rawArgs json.RawMessage
}

// Run implements Actor.Run: advertise, then dispatch AssistantToolCall /
// ToolCallUpdate(UserConfirmed) / Cancel envelopes addressed to this tool
// until Exit.
func (b *Base) Run(ctx context.Context, cctx *actorhost.Context) error {
	b.mu.Lock()
	b.pendingConfirm = make(map[string]pendingCall)
	b.cancels = make(map[string]context.CancelFunc)
	b.mu.Unlock()

	if err := b.advertise(cctx); err != nil {
		return fmt.Errorf("toolproto: advertise %s: %w", b.Exec.Name(), err)
	}

	return actorhost.DispatchLoop(ctx, cctx, func(env domainmsg.Envelope) (bool, error) {
		switch env.MessageType {
		case domainmsg.TypeExit:
			if env.FromScope == cctx.Scope {
				return true, nil
			}
		case domainmsg.TypeAssistantToolCall:
			var call domainmsg.AssistantToolCall
			if err := env.Unmarshal(&call); err != nil {
				return false, err
			}
			if call.Name != b.Exec.Name() {
				return false, nil
			}
			b.handleCall(ctx, cctx, call)
		case domainmsg.TypeToolCallUpdate:
			var upd domainmsg.ToolCallUpdate
			if err := env.Unmarshal(&upd); err != nil {
				return false, err
			}
			if upd.Status.Kind == domainmsg.ToolCallUserConfirmed {
				b.handleConfirmation(ctx, cctx, upd.CallID, upd.Status.Confirm)
			}
		case "tool.cancel":
			var cancel struct {
				CallID string `json:"call_id"`
			}
			if err := env.Unmarshal(&cancel); err == nil {
				b.cancelCall(cancel.CallID)
			}
		}
		return false, nil
	})
}

// validate checks rawArgs against Exec.InputSchema(), compiling the schema
// once and caching it for the Base's lifetime. A tool whose InputSchema
// itself fails to compile skips validation rather than failing every call —
// see DESIGN.md for why this is the stdlib/third-party boundary chosen.
func (b *Base) validate(rawArgs json.RawMessage) error {
	b.mu.Lock()
	if b.schema == nil && b.schemaErr == nil {
		compiler := jsonschema.NewCompiler()
		resourceName := b.Exec.Name() + "-input.json"
		if err := compiler.AddResource(resourceName, bytes.NewReader(b.Exec.InputSchema())); err != nil {
			b.schemaErr = err
		} else if schema, err := compiler.Compile(resourceName); err != nil {
			b.schemaErr = err
		} else {
			b.schema = schema
		}
	}
	schema, schemaErr := b.schema, b.schemaErr
	b.mu.Unlock()

	if schemaErr != nil || schema == nil {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(rawArgs, &decoded); err != nil {
		return err
	}
	return schema.Validate(decoded)
}

func (b *Base) advertise(cctx *actorhost.Context) error {
	return cctx.Publish(cctx.ActorID+"-advertise", domainmsg.TypeToolsAvailable, domainmsg.ToolsAvailable{
		Tools: []domainmsg.ToolDescriptor{{
			Name:        b.Exec.Name(),
			Description: b.Exec.Description(),
			InputSchema: b.Exec.InputSchema(),
		}},
	})
}

// handleCall implements spec.md §4.7 step 2: publish Received, parse
// arguments, gate on confirmation, execute, publish Finished.
func (b *Base) handleCall(ctx context.Context, cctx *actorhost.Context, call domainmsg.AssistantToolCall) {
	b.publishUpdate(cctx, call.ID, domainmsg.ToolCallStatus{Kind: domainmsg.ToolCallReceived})

	if !json.Valid(call.Arguments) {
		b.finish(cctx, call.ID, "", domainmsg.ToolResult{Err: b.Exec.Description() + ": invalid arguments"})
		return
	}
	if err := b.validate(call.Arguments); err != nil {
		b.finish(cctx, call.ID, "", domainmsg.ToolResult{Err: fmt.Sprintf("arguments failed schema validation: %v", err)})
		return
	}

	needsApproval := b.Exec.RequiresApproval(call.Arguments) && !(b.AutoApprove != nil && b.AutoApprove(b.Exec.Name()))
	if needsApproval {
		display := fmt.Sprintf("%s %s", b.Exec.Name(), string(call.Arguments))
		b.mu.Lock()
		b.pendingConfirm[call.ID] = pendingCall{rawArgs: call.Arguments}
		b.mu.Unlock()
		b.publishUpdate(cctx, call.ID, domainmsg.ToolCallStatus{
			Kind:    domainmsg.ToolCallAwaitingConfirmation,
			Display: display,
		})
		return // execution resumes from handleConfirmation
	}

	b.execute(ctx, cctx, call.ID, call.Arguments)
}

func (b *Base) handleConfirmation(ctx context.Context, cctx *actorhost.Context, callID string, confirmed bool) {
	b.mu.Lock()
	pending, ok := b.pendingConfirm[callID]
	if ok {
		delete(b.pendingConfirm, callID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	if !confirmed {
		b.finish(cctx, callID, "", domainmsg.ToolResult{Err: "denied"})
		return
	}
	b.execute(ctx, cctx, callID, pending.rawArgs)
}

// execute runs Exec.Execute in its own cancellable sub-task, matching
// spec.md §4.7: "Tools that block must spawn their work into an
// independent sub-task and record its join handle so that cancellation is
// precise."
func (b *Base) execute(ctx context.Context, cctx *actorhost.Context, callID string, rawArgs json.RawMessage) {
	execCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels[callID] = cancel
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.cancels, callID)
			b.mu.Unlock()
			cancel()
		}()
		start := time.Now()
		display, result := b.Exec.Execute(execCtx, rawArgs)
		if b.Latency != nil {
			b.Latency.ObserveToolCall(b.Exec.Name(), time.Since(start).Seconds())
		}
		if execCtx.Err() != nil && result.Err == "" && result.Ok == "" {
			result = domainmsg.ToolResult{Err: "cancelled"}
		}
		b.finish(cctx, callID, display, result)
	}()
}

func (b *Base) cancelCall(callID string) {
	b.mu.Lock()
	cancel, ok := b.cancels[callID]
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

func (b *Base) finish(cctx *actorhost.Context, callID, display string, result domainmsg.ToolResult) {
	b.publishUpdate(cctx, callID, domainmsg.ToolCallStatus{
		Kind:    domainmsg.ToolCallFinished,
		Display: display,
		Result:  &result,
	})
}

func (b *Base) publishUpdate(cctx *actorhost.Context, callID string, status domainmsg.ToolCallStatus) {
	_ = cctx.Publish(cctx.ActorID+"-"+callID, domainmsg.TypeToolCallUpdate, domainmsg.ToolCallUpdate{
		CallID: callID,
		Status: status,
	})
}
