// Package message implements the send_message tool actor (C9, spec.md
// §4.9): a toolproto.Executor front end over internal/interagent.SendMessage,
// grounded on the teacher's internal/tools/message channel-adapter tool
// (same parse-validate-dispatch shape, swapped onto scope-addressed
// envelopes instead of external channel adapters).
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/interagent"
	"github.com/agentgrid/agentgrid/internal/scope"
	"github.com/agentgrid/agentgrid/internal/toolproto"
)

// Exec is the send_message tool's toolproto.Executor. "manager" is a
// shorthand for the caller's own parent scope; otherwise "to" must name a
// known scope's canonical string form.
type Exec struct {
	ParentMap  *scope.ParentMap
	Membership *scope.Membership

	// cctx is set by Actor at Run time so Execute can resolve "manager" and
	// publish the InterAgentMessage from the calling scope.
	cctx *actorhost.Context
}

func (e *Exec) Name() string { return "send_message" }
func (e *Exec) Description() string {
	return "Send free-form text to another agent's scope, or to \"manager\" for the caller's parent."
}

func (e *Exec) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"to": {"type": "string", "description": "Target scope id, or \"manager\"."},
			"body": {"type": "string"}
		},
		"required": ["to", "body"]
	}`)
}

func (e *Exec) RequiresApproval(json.RawMessage) bool { return false }

func (e *Exec) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	body := strings.TrimSpace(args.Body)
	if body == "" {
		return "", domainmsg.ToolResult{Err: "body is required"}
	}
	to := strings.TrimSpace(args.To)
	if to == "" {
		return "", domainmsg.ToolResult{Err: "to is required"}
	}
	if e.cctx == nil {
		return to, domainmsg.ToolResult{Err: "send_message: not wired to an actor context"}
	}

	target, err := e.resolve(to)
	if err != nil {
		return to, domainmsg.ToolResult{Err: err.Error()}
	}
	if e.Membership != nil && !interagent.KnownScope(e.Membership, target) {
		return to, domainmsg.ToolResult{Err: fmt.Sprintf("unknown scope %s", target.String())}
	}

	if err := interagent.SendMessage(e.cctx, e.cctx.ActorID+"-send-message", target, body); err != nil {
		return to, domainmsg.ToolResult{Err: err.Error()}
	}
	return to, domainmsg.ToolResult{Ok: fmt.Sprintf("message sent to %s", target.String())}
}

func (e *Exec) resolve(to string) (scope.Scope, error) {
	if to == "manager" {
		if e.ParentMap == nil {
			return scope.Scope{}, fmt.Errorf("send_message: no parent map configured")
		}
		parent, ok := e.ParentMap.Lookup(e.cctx.Scope)
		if !ok {
			return scope.Scope{}, fmt.Errorf("send_message: scope %s has no parent", e.cctx.Scope.String())
		}
		return parent, nil
	}
	return scope.Parse(to)
}

// Actor wraps Exec in a toolproto.Base, capturing cctx on Run.
type Actor struct {
	toolproto.Base
	exec *Exec
}

// NewActor builds the send_message tool actor.
func NewActor(exec *Exec) *Actor {
	a := &Actor{exec: exec}
	a.Base.Exec = exec
	return a
}

func (a *Actor) Run(ctx context.Context, cctx *actorhost.Context) error {
	a.exec.cctx = cctx
	return a.Base.Run(ctx, cctx)
}
