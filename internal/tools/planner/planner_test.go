package planner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/plan"
	"github.com/agentgrid/agentgrid/internal/scope"
)

func waitFor(t *testing.T, recv *bus.Receiver, messageType string) domainmsg.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", messageType)
		default:
		}
		env, ok := recv.TryRecv()
		if !ok {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		if env.MessageType == messageType {
			return env
		}
	}
}

func TestManagerCreateAppliesImmediately(t *testing.T) {
	b := bus.New()
	driver := b.Subscribe()
	recv := b.Subscribe()
	cctx := &actorhost.Context{
		Deps:     actorhost.Deps{Bus: b, ParentMap: scope.NewParentMap(), Membership: scope.NewMembership()},
		Scope:    scope.ROOT,
		ActorID:  "planner",
		Receiver: recv,
	}
	store := plan.NewStore()
	a := NewActor(&Exec{Store: store, IsWorker: false})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx, cctx)

	call, _ := domainmsg.New("c1", "assistant", scope.ROOT, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "t1", Name: "planner", Arguments: json.RawMessage(`{"kind":"create","title":"Ship it","tasks":["a","b"]}`),
	})
	_ = b.Publish(call)

	env := waitFor(t, driver, domainmsg.TypePlanUpdated)
	var upd domainmsg.PlanUpdated
	_ = env.Unmarshal(&upd)
	if upd.Plan.Title != "Ship it" || len(upd.Plan.Tasks) != 2 {
		t.Fatalf("unexpected plan: %+v", upd.Plan)
	}
}

func TestWorkerCreateSeeksApproval(t *testing.T) {
	b := bus.New()
	driver := b.Subscribe()
	recv := b.Subscribe()
	workerScope := scope.New()
	pm := scope.NewParentMap()
	pm.Insert(workerScope, scope.ROOT, true)

	cctx := &actorhost.Context{
		Deps:     actorhost.Deps{Bus: b, ParentMap: pm, Membership: scope.NewMembership()},
		Scope:    workerScope,
		ActorID:  "planner",
		Receiver: recv,
	}
	store := plan.NewStore()
	a := NewActor(&Exec{Store: store, IsWorker: true, ParentMap: pm})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx, cctx)

	call, _ := domainmsg.New("c1", "assistant", workerScope, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "t1", Name: "planner", Arguments: json.RawMessage(`{"kind":"create","title":"Ship it","tasks":["a"]}`),
	})
	_ = b.Publish(call)

	waitFor(t, driver, domainmsg.TypePlanUpdated)

	statusReq := waitFor(t, driver, domainmsg.TypeInterAgentStatusReq)
	var req domainmsg.InterAgentStatusRequest
	_ = statusReq.Unmarshal(&req)
	if req.Status.Kind != domainmsg.StatusWait || req.Status.Reason != domainmsg.WaitingForManager {
		t.Fatalf("expected Wait{WaitingForManager}, got %+v", req.Status)
	}

	approvalMsg := waitFor(t, driver, domainmsg.TypeInterAgentMessage)
	var msg domainmsg.InterAgentMessage
	_ = approvalMsg.Unmarshal(&msg)
	if msg.AddressedScope != scope.ROOT {
		t.Fatalf("expected approval addressed to parent scope, got %v", msg.AddressedScope)
	}
}
