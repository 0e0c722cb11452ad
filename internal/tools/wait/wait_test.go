package wait

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

func newActor(t *testing.T, b *bus.Bus, self scope.Scope) *bus.Receiver {
	t.Helper()
	exec := &Exec{Bus: b}
	actor := NewActor(exec)
	cctx := &actorhost.Context{
		Deps:     actorhost.Deps{Bus: b},
		Scope:    self,
		ActorID:  "wait",
		Receiver: b.Subscribe(),
	}
	go func() { _ = actor.Run(context.Background(), cctx) }()
	return cctx.Receiver
}

func TestWaitFinishesAfterDuration(t *testing.T) {
	b := bus.New()
	driver := b.Subscribe()
	self := scope.New()
	newActor(t, b, self)
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	call, _ := domainmsg.New("c1", "assistant", self, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "w1", Name: "wait", Arguments: json.RawMessage(`{"duration_seconds":1}`),
	})
	_ = b.Publish(call)

	env := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var upd domainmsg.ToolCallUpdate
	_ = env.Unmarshal(&upd)
	for upd.Status.Kind != domainmsg.ToolCallFinished {
		env = waitFor(t, driver, domainmsg.TypeToolCallUpdate)
		_ = env.Unmarshal(&upd)
	}
	if upd.Status.Result == nil || upd.Status.Result.Err != "" {
		t.Fatalf("expected a success result, got %+v", upd.Status.Result)
	}
}

func TestWaitInterruptedByAddressedMessage(t *testing.T) {
	b := bus.New()
	driver := b.Subscribe()
	self := scope.New()
	newActor(t, b, self)
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	call, _ := domainmsg.New("c2", "assistant", self, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "w2", Name: "wait", Arguments: json.RawMessage(`{"duration_seconds":30}`),
	})
	_ = b.Publish(call)
	waitFor(t, driver, domainmsg.TypeAgentStatusUpdate)

	msg, _ := domainmsg.New("m1", "manager", scope.ROOT, domainmsg.TypeInterAgentMessage, domainmsg.InterAgentMessage{
		AddressedScope: self, Body: "resume",
	})
	_ = b.Publish(msg)

	env := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var upd domainmsg.ToolCallUpdate
	_ = env.Unmarshal(&upd)
	for upd.Status.Kind != domainmsg.ToolCallFinished {
		env = waitFor(t, driver, domainmsg.TypeToolCallUpdate)
		_ = env.Unmarshal(&upd)
	}
	if upd.Status.Result == nil || upd.Status.Result.Err != "" {
		t.Fatalf("expected a success result, got %+v", upd.Status.Result)
	}
}
