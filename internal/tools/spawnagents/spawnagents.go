// Package spawnagents implements the spawn_agents tool actor: a thin
// toolproto.Executor front end over internal/spawner, grounded on the
// teacher's internal/tools/subagent Manager.Spawn announce-then-launch
// shape. An optional wait argument blocks the call until the new scope's
// Assistant reaches Done.
package spawnagents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/scope"
	"github.com/agentgrid/agentgrid/internal/spawner"
	"github.com/agentgrid/agentgrid/internal/toolproto"
)

// Exec is the spawn_agents tool's toolproto.Executor.
type Exec struct {
	Spawner *spawner.Spawner
	Bus     *bus.Bus
	// Parent is the scope new agents should be spawned under; set by the
	// actor hosting this tool to its own scope.
	Parent scope.Scope
}

func (e *Exec) Name() string { return "spawn_agents" }
func (e *Exec) Description() string {
	return "Spawn one or more actors into a new child scope."
}

func (e *Exec) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"actors": {"type": "array", "items": {"type": "string"}},
			"role": {"type": "string"},
			"task_description": {"type": "string"},
			"wait": {"type": "boolean"}
		},
		"required": ["actors"]
	}`)
}

func (e *Exec) RequiresApproval(json.RawMessage) bool { return false }

func (e *Exec) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		Actors          []string `json:"actors"`
		Role            string   `json:"role"`
		TaskDescription string   `json:"task_description"`
		Wait            bool     `json:"wait"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if len(args.Actors) == 0 {
		return "", domainmsg.ToolResult{Err: "actors is required"}
	}

	parent := e.Parent
	result, err := e.Spawner.Spawn(ctx, spawner.Request{
		RequestedActors: args.Actors,
		Role:            args.Role,
		TaskDescription: args.TaskDescription,
		ParentScope:     &parent,
	})
	if err != nil {
		return args.Role, domainmsg.ToolResult{Err: err.Error()}
	}

	if !args.Wait {
		return args.Role, domainmsg.ToolResult{Ok: fmt.Sprintf("spawned scope %s with %d actor(s)", result.Scope.String(), len(result.Actors))}
	}

	if err := e.waitForDone(ctx, result.Scope); err != nil {
		return args.Role, domainmsg.ToolResult{Err: err.Error()}
	}
	return args.Role, domainmsg.ToolResult{Ok: fmt.Sprintf("scope %s reached Done", result.Scope.String())}
}

func (e *Exec) waitForDone(ctx context.Context, target scope.Scope) error {
	recv := e.Bus.Subscribe()
	defer e.Bus.Drop(recv)
	for {
		env, ok := recv.Recv(ctx)
		if !ok {
			return ctx.Err()
		}
		if env.MessageType != domainmsg.TypeAgentStatusUpdate || env.FromScope != target {
			continue
		}
		var upd domainmsg.AgentStatusUpdate
		if err := env.Unmarshal(&upd); err != nil {
			continue
		}
		if upd.Status.Kind == domainmsg.StatusDone {
			return nil
		}
	}
}

// Actor wraps Exec in a toolproto.Base, capturing cctx on Run so Execute
// can spawn new agents as children of this tool instance's own scope,
// matching the planner/wait/message tool actors' cctx-capture pattern.
type Actor struct {
	toolproto.Base
	exec *Exec
}

// NewActor builds the spawn_agents tool actor.
func NewActor(exec *Exec) *Actor {
	a := &Actor{exec: exec}
	a.Base.Exec = exec
	return a
}

func (a *Actor) Run(ctx context.Context, cctx *actorhost.Context) error {
	a.exec.Parent = cctx.Scope
	return a.Base.Run(ctx, cctx)
}
