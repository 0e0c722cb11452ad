package toolproto

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

type echoExec struct {
	approval bool
	blockFor chan struct{} // if non-nil, Execute waits on ctx.Done() instead of returning immediately
}

func (e *echoExec) Name() string                   { return "echo" }
func (e *echoExec) Description() string             { return "echoes its argument" }
func (e *echoExec) InputSchema() json.RawMessage    { return json.RawMessage(`{}`) }
func (e *echoExec) RequiresApproval(_ json.RawMessage) bool { return e.approval }
func (e *echoExec) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	if e.blockFor != nil {
		<-ctx.Done()
		return "", domainmsg.ToolResult{Err: "cancelled"}
	}
	return string(raw), domainmsg.ToolResult{Ok: string(raw)}
}

func setup(t *testing.T, exec Executor) (*bus.Bus, *bus.Receiver, context.CancelFunc) {
	t.Helper()
	b := bus.New()
	recv := b.Subscribe() // the actor's own subscription (consumed inside Run)
	driver := b.Subscribe() // the test's subscription, observes everything published

	cctx := &actorhost.Context{
		Deps: actorhost.Deps{
			Bus:        b,
			ParentMap:  scope.NewParentMap(),
			Membership: scope.NewMembership(),
		},
		Scope:    scope.ROOT,
		ActorID:  "tool-echo",
		Receiver: recv,
	}
	base := &Base{Exec: exec}
	ctx, cancel := context.WithCancel(context.Background())
	go base.Run(ctx, cctx)

	return b, driver, cancel
}

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

func TestAdvertisesOnStart(t *testing.T) {
	_, driver, cancel := setup(t, &echoExec{})
	defer cancel()

	env := waitFor(t, driver, domainmsg.TypeToolsAvailable)
	var avail domainmsg.ToolsAvailable
	if err := env.Unmarshal(&avail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(avail.Tools) != 1 || avail.Tools[0].Name != "echo" {
		t.Fatalf("unexpected advertisement: %+v", avail)
	}
}

func TestCallWithoutApprovalGoesStraightToFinished(t *testing.T) {
	b, driver, cancel := setup(t, &echoExec{})
	defer cancel()
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	env, err := domainmsg.New("call-1", "assistant", scope.ROOT, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "c1", Name: "echo", Arguments: json.RawMessage(`"hi"`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(env); err != nil {
		t.Fatal(err)
	}

	received := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var upd domainmsg.ToolCallUpdate
	if err := received.Unmarshal(&upd); err != nil {
		t.Fatal(err)
	}
	if upd.Status.Kind != domainmsg.ToolCallReceived {
		t.Fatalf("expected Received first, got %v", upd.Status.Kind)
	}

	for {
		e := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
		var u domainmsg.ToolCallUpdate
		if err := e.Unmarshal(&u); err != nil {
			t.Fatal(err)
		}
		if u.Status.Kind == domainmsg.ToolCallFinished {
			if u.Status.Result == nil || u.Status.Result.Ok != `"hi"` {
				t.Fatalf("unexpected finished result: %+v", u.Status.Result)
			}
			return
		}
	}
}

func TestCallRequiringApprovalWaitsForUserConfirmed(t *testing.T) {
	b, driver, cancel := setup(t, &echoExec{approval: true})
	defer cancel()
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	env, _ := domainmsg.New("call-2", "assistant", scope.ROOT, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "c2", Name: "echo", Arguments: json.RawMessage(`"danger"`),
	})
	_ = b.Publish(env)
	waitFor(t, driver, domainmsg.TypeToolCallUpdate) // Received

	awaiting := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var upd domainmsg.ToolCallUpdate
	_ = awaiting.Unmarshal(&upd)
	if upd.Status.Kind != domainmsg.ToolCallAwaitingConfirmation {
		t.Fatalf("expected AwaitingUserConfirmation, got %v", upd.Status.Kind)
	}

	// Execution must not have started: publish a quick confirm and expect
	// Finished to follow, never arriving before confirmation.
	confirmEnv, _ := domainmsg.New("confirm-1", "user", scope.ROOT, domainmsg.TypeToolCallUpdate, domainmsg.ToolCallUpdate{
		CallID: "c2",
		Status: domainmsg.ToolCallStatus{Kind: domainmsg.ToolCallUserConfirmed, Confirm: true},
	})
	_ = b.Publish(confirmEnv)

	for {
		e := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
		var u domainmsg.ToolCallUpdate
		_ = e.Unmarshal(&u)
		if u.Status.Kind == domainmsg.ToolCallFinished {
			if u.Status.Result == nil || u.Status.Result.Ok != `"danger"` {
				t.Fatalf("unexpected result after confirmation: %+v", u.Status.Result)
			}
			return
		}
	}
}

func TestDeniedConfirmationFinishesWithError(t *testing.T) {
	b, driver, cancel := setup(t, &echoExec{approval: true})
	defer cancel()
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	env, _ := domainmsg.New("call-3", "assistant", scope.ROOT, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "c3", Name: "echo", Arguments: json.RawMessage(`"x"`),
	})
	_ = b.Publish(env)
	waitFor(t, driver, domainmsg.TypeToolCallUpdate) // Received
	waitFor(t, driver, domainmsg.TypeToolCallUpdate) // AwaitingUserConfirmation

	deny, _ := domainmsg.New("confirm-2", "user", scope.ROOT, domainmsg.TypeToolCallUpdate, domainmsg.ToolCallUpdate{
		CallID: "c3",
		Status: domainmsg.ToolCallStatus{Kind: domainmsg.ToolCallUserConfirmed, Confirm: false},
	})
	_ = b.Publish(deny)

	e := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var u domainmsg.ToolCallUpdate
	_ = e.Unmarshal(&u)
	if u.Status.Kind != domainmsg.ToolCallFinished || u.Status.Result == nil || u.Status.Result.Err != "denied" {
		t.Fatalf("expected Finished{Err:denied}, got %+v", u.Status)
	}
}

type strictExec struct{}

func (strictExec) Name() string        { return "strict" }
func (strictExec) Description() string { return "requires a name field" }
func (strictExec) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
}
func (strictExec) RequiresApproval(json.RawMessage) bool { return false }
func (strictExec) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	return string(raw), domainmsg.ToolResult{Ok: string(raw)}
}

func TestCallWithArgumentsFailingSchemaIsFinishedWithError(t *testing.T) {
	b, driver, cancel := setup(t, strictExec{})
	defer cancel()
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	env, _ := domainmsg.New("call-5", "assistant", scope.ROOT, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "c5", Name: "strict", Arguments: json.RawMessage(`{"wrong":"field"}`),
	})
	_ = b.Publish(env)
	waitFor(t, driver, domainmsg.TypeToolCallUpdate) // Received

	e := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var u domainmsg.ToolCallUpdate
	_ = e.Unmarshal(&u)
	if u.Status.Kind != domainmsg.ToolCallFinished || u.Status.Result == nil || u.Status.Result.Err == "" {
		t.Fatalf("expected a schema-validation error, got %+v", u.Status)
	}
}

func TestCancelAbortsInFlightCallWithCancelledError(t *testing.T) {
	exec := &echoExec{blockFor: make(chan struct{})}
	b, driver, cancel := setup(t, exec)
	defer cancel()
	waitFor(t, driver, domainmsg.TypeToolsAvailable)

	env, _ := domainmsg.New("call-4", "assistant", scope.ROOT, domainmsg.TypeAssistantToolCall, domainmsg.AssistantToolCall{
		ID: "c4", Name: "echo", Arguments: json.RawMessage(`"x"`),
	})
	_ = b.Publish(env)
	waitFor(t, driver, domainmsg.TypeToolCallUpdate) // Received

	cancelEnv, _ := domainmsg.New("cancel-1", "assistant", scope.ROOT, "tool.cancel", struct {
		CallID string `json:"call_id"`
	}{CallID: "c4"})
	_ = b.Publish(cancelEnv)

	e := waitFor(t, driver, domainmsg.TypeToolCallUpdate)
	var u domainmsg.ToolCallUpdate
	_ = e.Unmarshal(&u)
	if u.Status.Kind != domainmsg.ToolCallFinished || u.Status.Result == nil || u.Status.Result.Err != "cancelled" {
		t.Fatalf("expected Finished{Err:cancelled}, got %+v", u.Status)
	}
}
