package bus

import (
	"context"
	"testing"
	"time"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/scope"
)

func mustEnvelope(t *testing.T, msgType string, payload any) domainmsg.Envelope {
	t.Helper()
	env, err := domainmsg.New("id-1", "actor-1", scope.ROOT, msgType, payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	return env
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	r1 := b.Subscribe()
	r2 := b.Subscribe()

	env := mustEnvelope(t, domainmsg.TypeExit, domainmsg.Exit{})
	if err := b.Publish(env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, r := range []*Receiver{r1, r2} {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		got, ok := r.Recv(ctx)
		cancel()
		if !ok {
			t.Fatal("expected an envelope")
		}
		if got.MessageType != domainmsg.TypeExit {
			t.Fatalf("unexpected message type %q", got.MessageType)
		}
	}
}

func TestSubscribeOnlySeesFutureEnvelopes(t *testing.T) {
	b := New()
	env := mustEnvelope(t, domainmsg.TypeExit, domainmsg.Exit{})
	_ = b.Publish(env)

	r := b.Subscribe()
	if r.Len() != 0 {
		t.Fatalf("new subscriber should not see past envelopes, got len=%d", r.Len())
	}
}

func TestDropStopsDelivery(t *testing.T) {
	b := New()
	r := b.Subscribe()
	b.Drop(r)

	env := mustEnvelope(t, domainmsg.TypeExit, domainmsg.Exit{})
	if err := b.Publish(env); err != nil {
		t.Fatalf("publish after drop should not fail: %v", err)
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after drop, got %d", b.SubscriberCount())
	}
}

func TestPublishAfterCloseReturnsErrClosed(t *testing.T) {
	b := New()
	b.Close()
	env := mustEnvelope(t, domainmsg.TypeExit, domainmsg.Exit{})
	if err := b.Publish(env); err == nil {
		t.Fatal("expected ErrClosed")
	}
}

func TestOverflowDropsOldestNotNewest(t *testing.T) {
	b := New(WithCapacity(2))
	r := b.Subscribe()

	for i := 0; i < 3; i++ {
		env := mustEnvelope(t, domainmsg.TypeUserInput, domainmsg.UserInput{Text: string(rune('a' + i))})
		_ = b.Publish(env)
	}

	if r.Len() != 2 {
		t.Fatalf("expected queue capped at 2, got %d", r.Len())
	}

	ctx := context.Background()
	first, _ := r.Recv(ctx)
	var ui domainmsg.UserInput
	_ = first.Unmarshal(&ui)
	if ui.Text != "b" {
		t.Fatalf("expected oldest surviving envelope to be 'b', got %q", ui.Text)
	}
}

func TestOrderingPreservedPerPublisher(t *testing.T) {
	b := New()
	r := b.Subscribe()

	for i := 0; i < 5; i++ {
		env := mustEnvelope(t, domainmsg.TypeUserInput, domainmsg.UserInput{Text: string(rune('a' + i))})
		_ = b.Publish(env)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		env, ok := r.Recv(ctx)
		if !ok {
			t.Fatal("expected envelope")
		}
		var ui domainmsg.UserInput
		_ = env.Unmarshal(&ui)
		if ui.Text != string(rune('a'+i)) {
			t.Fatalf("out of order: expected %c got %q", rune('a'+i), ui.Text)
		}
	}
}
