// Package assistant implements the Assistant actor (C6, spec.md §4.6): the
// status state machine driving one scope's conversation with an LLM
// backend — Idle, Processing, AwaitingTools, Wait, and the terminal Done
// state — plus the tool-call aggregation and interrupt handling that move
// it between them.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/llm"
	"github.com/agentgrid/agentgrid/internal/scope"
)

// completeResult is the shape of the "complete" tool's ToolResult.Ok
// payload: the Assistant inspects it directly rather than treating
// "complete" as an ordinary tool, since it drives the terminal Done
// transition (spec.md §4.6(d)).
type completeResult struct {
	Summary string `json:"summary"`
	Success bool   `json:"success"`
}

// Assistant drives one scope's conversation turn by turn. Zero value is
// not usable; build with New.
type Assistant struct {
	llm          llm.Client
	systemPrompt string
	role         string
	renderVars   func() map[string]string
	parentMap    *scope.ParentMap

	mu           sync.Mutex
	status       domainmsg.AgentStatus
	history      []domainmsg.ChatMessage
	tools        []domainmsg.ToolDescriptor
	pendingIDs   map[string]struct{}
	pendingNames map[string]string
	turnSeq      uint64
	inFlight     bool
}

// Option configures an Assistant at construction.
type Option func(*Assistant)

// WithRole sets the agent's role label (e.g. "Manager", "Worker"),
// surfaced to prompt rendering as the "role" variable.
func WithRole(role string) Option { return func(a *Assistant) { a.role = role } }

// WithRenderVars supplies the prompt template variables (spec.md §4.6
// prompt context: tools, current_datetime, os, arch, cwd,
// whitelisted_commands, files, plan, agents, task, id, role). A key mapped
// to "" renders empty; a template reference to a key the map does not
// contain fails the render.
func WithRenderVars(f func() map[string]string) Option { return func(a *Assistant) { a.renderVars = f } }

// WithParentMap lets the Assistant resolve its parent scope for the Done
// transition's InterAgentMessage (spec.md §4.6(d)). A root-scope Assistant
// with no recorded parent simply skips that notification.
func WithParentMap(pm *scope.ParentMap) Option { return func(a *Assistant) { a.parentMap = pm } }

// New builds an Assistant around client, using systemPromptTemplate as the
// raw (unrendered) system prompt text.
func New(client llm.Client, systemPromptTemplate string, opts ...Option) *Assistant {
	a := &Assistant{
		llm:          client,
		systemPrompt: systemPromptTemplate,
		pendingIDs:   make(map[string]struct{}),
		pendingNames: make(map[string]string),
		status:       domainmsg.AgentStatus{Kind: domainmsg.StatusIdle},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run implements actorhost.Actor.
func (a *Assistant) Run(ctx context.Context, cctx *actorhost.Context) error {
	return actorhost.DispatchLoop(ctx, cctx, func(env domainmsg.Envelope) (bool, error) {
		switch env.MessageType {
		case domainmsg.TypeExit:
			if env.FromScope == cctx.Scope {
				return true, nil
			}
		case domainmsg.TypeUserInput:
			var in domainmsg.UserInput
			if err := env.Unmarshal(&in); err != nil {
				return false, err
			}
			a.onUserInput(ctx, cctx, in)
		case domainmsg.TypeToolsAvailable:
			var avail domainmsg.ToolsAvailable
			if err := env.Unmarshal(&avail); err != nil {
				return false, err
			}
			a.onToolsAvailable(avail)
		case domainmsg.TypeToolCallUpdate:
			var upd domainmsg.ToolCallUpdate
			if err := env.Unmarshal(&upd); err != nil {
				return false, err
			}
			if a.onToolCallUpdate(ctx, cctx, upd) {
				return true, nil
			}
		case domainmsg.TypeInterruptAndForceWait:
			var interrupt domainmsg.InterruptAndForceWait
			if err := env.Unmarshal(&interrupt); err != nil {
				return false, err
			}
			if interrupt.AddressedScope == cctx.Scope {
				a.onInterrupt(cctx, interrupt)
			}
		case domainmsg.TypeInterAgentMessage:
			var msg domainmsg.InterAgentMessage
			if err := env.Unmarshal(&msg); err != nil {
				return false, err
			}
			if msg.AddressedScope == cctx.Scope {
				a.onManagerReply(ctx, cctx, msg)
			}
		case domainmsg.TypeInterAgentStatusReq:
			var req domainmsg.InterAgentStatusRequest
			if err := env.Unmarshal(&req); err != nil {
				return false, err
			}
			if req.AddressedScope == cctx.Scope {
				a.setStatus(cctx, req.Status)
			}
		}
		return false, nil
	})
}

func (a *Assistant) onToolsAvailable(avail domainmsg.ToolsAvailable) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range avail.Tools {
		found := false
		for i, existing := range a.tools {
			if existing.Name == t.Name {
				a.tools[i] = t
				found = true
				break
			}
		}
		if !found {
			a.tools = append(a.tools, t)
		}
	}
}

// onUserInput begins a new turn, respecting the at-most-one-LLM-request-
// in-flight invariant: a second input while a request is in flight is
// appended to history only. No turn is started for it when that request
// completes; it reaches the LLM with the next turn some other event starts.
func (a *Assistant) onUserInput(ctx context.Context, cctx *actorhost.Context, in domainmsg.UserInput) {
	a.mu.Lock()
	a.history = append(a.history, domainmsg.ChatMessage{Role: "user", Content: in.Text})
	alreadyRunning := a.inFlight
	a.mu.Unlock()
	if !alreadyRunning {
		a.startTurn(ctx, cctx)
	}
}

func (a *Assistant) onManagerReply(ctx context.Context, cctx *actorhost.Context, msg domainmsg.InterAgentMessage) {
	a.mu.Lock()
	wasWaitingForManager := a.status.Kind == domainmsg.StatusWait && a.status.Reason == domainmsg.WaitingForManager
	a.history = append(a.history, domainmsg.ChatMessage{Role: "user", Content: msg.Body})
	a.mu.Unlock()
	if wasWaitingForManager {
		a.startTurn(ctx, cctx)
	}
}

// startTurn transitions to Processing and runs one LLM request
// asynchronously so Run's dispatch loop stays responsive to Cancel and
// InterruptAndForceWait while the request is in flight.
func (a *Assistant) startTurn(ctx context.Context, cctx *actorhost.Context) {
	system, err := a.render()
	if err != nil {
		cctx.Log().Error("assistant: system prompt render failed", "error", err)
		a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusWait, Reason: domainmsg.WaitingForSystem})
		return
	}

	a.mu.Lock()
	a.inFlight = true
	a.turnSeq++
	turnID := fmt.Sprintf("%s-%d", cctx.Scope.String(), a.turnSeq)
	messages := append([]domainmsg.ChatMessage{{Role: "system", Content: system}}, a.history...)
	req := llm.Request{Messages: messages, Tools: append([]domainmsg.ToolDescriptor(nil), a.tools...)}
	a.mu.Unlock()

	a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusProcessing, TurnID: turnID})

	go func() {
		resp, err := a.llm.Complete(ctx, req)
		a.mu.Lock()
		a.inFlight = false
		if err != nil {
			a.mu.Unlock()
			a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusWait, Reason: domainmsg.WaitingForSystem})
			cctx.Log().Error("assistant: llm request failed", "error", err)
			return
		}
		a.history = append(a.history, domainmsg.ChatMessage{Role: "assistant", Content: resp.Content})
		if len(resp.ToolCalls) == 0 {
			a.mu.Unlock()
			a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusIdle})
			return
		}
		for _, tc := range resp.ToolCalls {
			a.pendingIDs[tc.ID] = struct{}{}
			a.pendingNames[tc.ID] = tc.Name
		}
		pending := pendingIDList(a.pendingIDs)
		a.mu.Unlock()

		a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusAwaitingTools, PendingIDs: pending})
		for _, tc := range resp.ToolCalls {
			_ = cctx.Publish(domainmsg.Child(turnID, tc.ID), domainmsg.TypeAssistantToolCall, tc)
		}
	}()
}

// onToolCallUpdate removes a finished call from the pending set. Once the
// set empties, the Assistant folds results into history and re-enters
// Processing for a follow-up turn. It reports true when the finished call
// was the "complete" tool succeeding, in which case the caller's dispatch
// loop must stop (spec.md §4.6(d)).
func (a *Assistant) onToolCallUpdate(ctx context.Context, cctx *actorhost.Context, upd domainmsg.ToolCallUpdate) bool {
	if upd.Status.Kind != domainmsg.ToolCallFinished {
		return false
	}
	a.mu.Lock()
	if _, ok := a.pendingIDs[upd.CallID]; !ok {
		a.mu.Unlock()
		return false
	}
	name := a.pendingNames[upd.CallID]
	delete(a.pendingIDs, upd.CallID)
	delete(a.pendingNames, upd.CallID)

	if name == "complete" && upd.Status.Result != nil && upd.Status.Result.Err == "" {
		a.mu.Unlock()
		a.finishDone(cctx, upd.Status.Result.Ok)
		return true
	}

	content := ""
	if upd.Status.Result != nil {
		if upd.Status.Result.Err != "" {
			content = "error: " + upd.Status.Result.Err
		} else {
			content = upd.Status.Result.Ok
		}
	}
	a.history = append(a.history, domainmsg.ChatMessage{Role: "tool", ToolCallID: upd.CallID, Content: content})
	empty := len(a.pendingIDs) == 0
	a.mu.Unlock()

	if empty {
		a.startTurn(ctx, cctx)
	} else {
		a.mu.Lock()
		pending := pendingIDList(a.pendingIDs)
		a.mu.Unlock()
		a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusAwaitingTools, PendingIDs: pending})
	}
	return false
}

// finishDone implements spec.md §4.6(d): transition to Done, publish the
// status, and notify the parent scope with the completion summary.
func (a *Assistant) finishDone(cctx *actorhost.Context, okPayload string) {
	var result completeResult
	if err := json.Unmarshal([]byte(okPayload), &result); err != nil {
		result = completeResult{Summary: okPayload, Success: true}
	}
	a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusDone, Summary: result.Summary, Success: result.Success})

	if a.parentMap != nil {
		if parent, ok := a.parentMap.Lookup(cctx.Scope); ok {
			_ = cctx.Publish(cctx.ActorID+"-done", domainmsg.TypeInterAgentMessage, domainmsg.InterAgentMessage{
				AddressedScope: parent,
				Body:           result.Summary,
			})
		}
	}
}

// onInterrupt implements InterruptAndForceWait: every pending tool call is
// force-finished with a synthetic Err("interrupted") result and the
// Assistant enters Wait{WaitingForManager}, per spec.md §4.6(f). Each
// forced finish is published as a ToolCallUpdate so observers on the bus
// see the same Finished envelope a normal tool completion would produce,
// ordered before the Wait status update (spec.md §8 Property 7, S6).
// An LLM request already in flight is not cancelled; its reply is still
// processed when it arrives.
func (a *Assistant) onInterrupt(cctx *actorhost.Context, interrupt domainmsg.InterruptAndForceWait) {
	a.mu.Lock()
	ids := pendingIDList(a.pendingIDs)
	for _, id := range ids {
		a.history = append(a.history, domainmsg.ChatMessage{Role: "tool", ToolCallID: id, Content: "error: interrupted"})
	}
	a.pendingIDs = make(map[string]struct{})
	a.pendingNames = make(map[string]string)
	a.mu.Unlock()

	for _, id := range ids {
		result := domainmsg.ToolResult{Err: "interrupted"}
		_ = cctx.Publish(cctx.ActorID+"-"+id, domainmsg.TypeToolCallUpdate, domainmsg.ToolCallUpdate{
			CallID: id,
			Status: domainmsg.ToolCallStatus{
				Kind:   domainmsg.ToolCallFinished,
				Result: &result,
			},
		})
	}

	a.setStatus(cctx, domainmsg.AgentStatus{Kind: domainmsg.StatusWait, Reason: domainmsg.WaitingForManager, ToolCallID: interrupt.ToolCallID})
}

func (a *Assistant) setStatus(cctx *actorhost.Context, status domainmsg.AgentStatus) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
	_ = cctx.Publish("status-"+cctx.ActorID, domainmsg.TypeAgentStatusUpdate, domainmsg.AgentStatusUpdate{Status: status})
}

// Status returns a snapshot of the current status, for tests and the
// health watchdog's direct-introspection path.
func (a *Assistant) Status() domainmsg.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func pendingIDList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
