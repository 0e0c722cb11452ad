// Package wait implements the wait tool actor (spec.md §4.8/§4.6(e)): a
// toolproto.Executor that enters the Assistant's Wait status for either an
// indefinite period (WaitingForSystem) or a fixed duration
// (WaitingForDuration), finishing on whichever comes first of its own timer
// or an addressed InterAgentMessage arriving early — grounded on the
// teacher's heartbeat monitor's interval/staleness bookkeeping, adapted from
// polling a Status table to racing a timer against a bus subscription.
package wait

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/toolproto"
	"github.com/agentgrid/agentgrid/internal/toolproto/schema"
)

// Exec is the wait tool's toolproto.Executor.
type Exec struct {
	Bus *bus.Bus

	// cctx is set by Actor at Run time so Execute can publish the
	// self-addressed Wait status and subscribe for an early-interrupt
	// InterAgentMessage.
	cctx *actorhost.Context
}

func (e *Exec) Name() string        { return "wait" }
func (e *Exec) Description() string { return "Pause the current turn until resumed or a duration elapses." }

// waitArgs is the reflected source of Exec's InputSchema.
type waitArgs struct {
	DurationSeconds int `json:"duration_seconds,omitempty" jsonschema:"description=Seconds to wait before resuming; omit to wait indefinitely."`
}

func (e *Exec) InputSchema() json.RawMessage {
	return schema.Generate[waitArgs]()
}

func (e *Exec) RequiresApproval(json.RawMessage) bool { return false }

func (e *Exec) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		DurationSeconds int `json:"duration_seconds"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
		}
	}
	if e.cctx == nil || e.Bus == nil {
		return "", domainmsg.ToolResult{Err: "wait: not wired to an actor context"}
	}

	reason := domainmsg.WaitingForSystem
	var timer *time.Timer
	if args.DurationSeconds > 0 {
		reason = domainmsg.WaitingForDuration
		timer = time.NewTimer(time.Duration(args.DurationSeconds) * time.Second)
		defer timer.Stop()
	}

	recv := e.Bus.Subscribe()
	defer e.Bus.Drop(recv)

	_ = e.cctx.Publish(e.cctx.ActorID+"-wait-status", domainmsg.TypeAgentStatusUpdate, domainmsg.AgentStatusUpdate{
		Status: domainmsg.AgentStatus{Kind: domainmsg.StatusWait, Reason: reason, WaitSeconds: args.DurationSeconds},
	})

	start := time.Now()
	var timerFired <-chan time.Time
	if timer != nil {
		timerFired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return "wait", domainmsg.ToolResult{Err: "cancelled"}
		case <-timerFired:
			return "wait", domainmsg.ToolResult{Ok: fmt.Sprintf("waited %d seconds", args.DurationSeconds)}
		case <-time.After(5 * time.Millisecond):
		}

		env, ok := recv.TryRecv()
		if !ok {
			continue
		}
		if env.MessageType != domainmsg.TypeInterAgentMessage {
			continue
		}
		var msg domainmsg.InterAgentMessage
		if err := env.Unmarshal(&msg); err != nil || msg.AddressedScope != e.cctx.Scope {
			continue
		}
		if reason == domainmsg.WaitingForDuration {
			elapsed := int(time.Since(start).Seconds())
			return "wait", domainmsg.ToolResult{Ok: fmt.Sprintf("Wait interrupted — waited for %d/%d seconds", elapsed, args.DurationSeconds)}
		}
		return "wait", domainmsg.ToolResult{Ok: "wait interrupted"}
	}
}

// Actor wraps Exec in a toolproto.Base, capturing cctx on Run.
type Actor struct {
	toolproto.Base
	exec *Exec
}

// NewActor builds the wait tool actor.
func NewActor(exec *Exec) *Actor {
	a := &Actor{exec: exec}
	a.Base.Exec = exec
	return a
}

func (a *Actor) Run(ctx context.Context, cctx *actorhost.Context) error {
	a.exec.cctx = cctx
	return a.Base.Run(ctx, cctx)
}
