package message

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/scope"
)

func waitFor(t *testing.T, recv *bus.Receiver, messageType string) domainmsg.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		env, ok := recv.Recv(ctx)
		if !ok {
			t.Fatalf("timed out waiting for %s", messageType)
		}
		if env.MessageType == messageType {
			return env
		}
	}
}

func TestSendMessageToManagerResolvesParentScope(t *testing.T) {
	b := bus.New()
	driver := b.Subscribe()
	pm := scope.NewParentMap()
	mem := scope.NewMembership()
	parent := scope.ROOT
	child := scope.New()
	pm.Insert(child, parent, true)
	mem.Set(parent, []string{"assistant"})

	exec := &Exec{ParentMap: pm, Membership: mem}
	actor := NewActor(exec)
	cctx := &actorhost.Context{
		Deps:     actorhost.Deps{Bus: b, ParentMap: pm, Membership: mem},
		Scope:    child,
		ActorID:  "send_message",
		Receiver: b.Subscribe(),
	}
	go func() { _ = actor.Run(context.Background(), cctx) }()
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	call, err := domainmsg.New("c1", "assistant", child, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "call-1", Name: "send_message", Arguments: json.RawMessage(`{"to":"manager","body":"status?"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(call); err != nil {
		t.Fatal(err)
	}

	env := waitFor(t, driver, domainmsg.TypeInterAgentMessage)
	var msg domainmsg.InterAgentMessage
	if err := env.Unmarshal(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.AddressedScope != parent {
		t.Fatalf("expected message addressed to parent %v, got %v", parent, msg.AddressedScope)
	}
	if msg.Body != "status?" {
		t.Fatalf("unexpected body: %s", msg.Body)
	}
}

func TestSendMessageToUnknownScopeFails(t *testing.T) {
	b := bus.New()
	driver := b.Subscribe()
	pm := scope.NewParentMap()
	mem := scope.NewMembership()
	self := scope.New()
	mem.Set(self, []string{"assistant"})

	exec := &Exec{ParentMap: pm, Membership: mem}
	actor := NewActor(exec)
	cctx := &actorhost.Context{
		Deps:     actorhost.Deps{Bus: b, ParentMap: pm, Membership: mem},
		Scope:    self,
		ActorID:  "send_message",
		Receiver: b.Subscribe(),
	}
	go func() { _ = actor.Run(context.Background(), cctx) }()
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	unknown := scope.New()
	call, err := domainmsg.New("c2", "assistant", self, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "call-2", Name: "send_message", Arguments: json.RawMessage(`{"to":"` + unknown.String() + `","body":"hi"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(call); err != nil {
		t.Fatal(err)
	}

	env := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var upd domainmsg.ToolCallUpdate
	if err := env.Unmarshal(&upd); err != nil {
		t.Fatal(err)
	}
	for upd.Status.Kind != domainmsg.ToolCallFinished {
		env = waitFor(t, driver, domainmsg.TypeToolCallUpdate)
		_ = env.Unmarshal(&upd)
	}
	if upd.Status.Result == nil || upd.Status.Result.Err == "" {
		t.Fatalf("expected an error result for an unknown scope, got %+v", upd.Status.Result)
	}
}
