// Package planner implements the planner tool actor, the tool-protocol
// front end for internal/plan's Store. A Worker's plan.create requires
// Manager sign-off: the tool forces the Worker into Wait{WaitingForManager}
// and asks the parent scope for a textual reply, per spec.md §4.8 — there
// is no separate approval-message kind, the Manager's reply alone resumes
// the Worker (handled by internal/assistant's InterAgentMessage path).
package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/plan"
	"github.com/agentgrid/agentgrid/internal/scope"
	"github.com/agentgrid/agentgrid/internal/toolproto"
)

// Exec is the planner tool's toolproto.Executor.
type Exec struct {
	Store *plan.Store
	// IsWorker gates the Manager-approval handshake: Manager-role scopes
	// apply plan.create immediately, Worker-role scopes must seek approval.
	IsWorker bool
	// ParentMap resolves the scope to notify for approval.
	ParentMap *scope.ParentMap
	// cctx is set by Actor at Run time so Execute can publish side
	// messages beyond the plain ToolResult the protocol already sends.
	cctx *actorhost.Context
}

func (e *Exec) Name() string        { return "planner" }
func (e *Exec) Description() string { return "Create or update the shared task plan." }

func (e *Exec) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"kind": {"type": "string", "enum": ["create", "update_task"]},
			"title": {"type": "string"},
			"tasks": {"type": "array", "items": {"type": "string"}},
			"task_index": {"type": "integer"},
			"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "skipped"]}
		},
		"required": ["kind"]
	}`)
}

func (e *Exec) RequiresApproval(json.RawMessage) bool { return false }

func (e *Exec) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	action, err := plan.MarshalAction(raw)
	if err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}

	updated, err := plan.Apply(e.Store, action)
	if err != nil {
		return action.Kind, domainmsg.ToolResult{Err: err.Error()}
	}

	if e.cctx != nil {
		_ = e.cctx.Publish("plan-updated-"+e.cctx.ActorID, domainmsg.TypePlanUpdated, domainmsg.PlanUpdated{Plan: updated})

		if action.Kind == "create" && e.IsWorker && e.ParentMap != nil {
			if parent, ok := e.ParentMap.Lookup(e.cctx.Scope); ok {
				_ = e.cctx.Publish("plan-status-req-"+e.cctx.ActorID, domainmsg.TypeInterAgentStatusReq, domainmsg.InterAgentStatusRequest{
					AddressedScope: e.cctx.Scope,
					Status:         domainmsg.AgentStatus{Kind: domainmsg.StatusWait, Reason: domainmsg.WaitingForManager},
				})
				_ = e.cctx.Publish("plan-approval-"+e.cctx.ActorID, domainmsg.TypeInterAgentMessage, domainmsg.InterAgentMessage{
					AddressedScope: parent,
					Body:           fmt.Sprintf("Plan %q proposed with %d task(s); awaiting approval.", updated.Title, len(updated.Tasks)),
				})
			}
		}
	}

	return action.Kind, domainmsg.ToolResult{Ok: "plan updated"}
}

// Actor wraps Exec in a toolproto.Base, capturing cctx on Run so Execute
// can publish PlanUpdated and the approval handshake alongside the plain
// ToolCallUpdate the protocol already emits.
type Actor struct {
	toolproto.Base
	exec *Exec
}

// NewActor builds the planner tool actor.
func NewActor(exec *Exec) *Actor {
	a := &Actor{exec: exec}
	a.Base.Exec = exec
	return a
}

func (a *Actor) Run(ctx context.Context, cctx *actorhost.Context) error {
	a.exec.cctx = cctx
	return a.Base.Run(ctx, cctx)
}
