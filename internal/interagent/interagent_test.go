package interagent

import (
	"testing"
	"time"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/scope"
)

func TestSendMessagePublishesAddressedEnvelope(t *testing.T) {
	b := bus.New()
	driver := b.Subscribe()
	cctx := &actorhost.Context{
		Deps:     actorhost.Deps{Bus: b, ParentMap: scope.NewParentMap(), Membership: scope.NewMembership()},
		Scope:    scope.ROOT,
		ActorID:  "worker",
		Receiver: b.Subscribe(),
	}
	target := scope.New()
	if err := SendMessage(cctx, "m1", target, "hello"); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for message")
		default:
		}
		env, ok := driver.TryRecv()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if env.MessageType != domainmsg.TypeInterAgentMessage {
			continue
		}
		var msg domainmsg.InterAgentMessage
		if err := env.Unmarshal(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.AddressedScope != target || msg.Body != "hello" {
			t.Fatalf("unexpected message: %+v", msg)
		}
		return
	}
}

func TestKnownScopeReflectsMembership(t *testing.T) {
	mem := scope.NewMembership()
	s := scope.New()
	if KnownScope(mem, s) {
		t.Fatal("expected unknown scope before Set")
	}
	mem.Set(s, []string{"assistant"})
	if !KnownScope(mem, s) {
		t.Fatal("expected known scope after Set")
	}
}
