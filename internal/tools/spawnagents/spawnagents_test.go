package spawnagents

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/registry"
	"github.com/agentgrid/agentgrid/internal/scope"
	"github.com/agentgrid/agentgrid/internal/spawner"
)

func TestSpawnWithoutWaitReturnsImmediately(t *testing.T) {
	b := bus.New()
	reg := registry.New()
	reg.Register(registry.Descriptor{Name: "assistant"})
	sp := spawner.New(b, reg, scope.NewParentMap(), scope.NewMembership(), nil, func(name string) (actorhost.Actor, error) {
		return actorhost.ActorFunc(func(ctx context.Context, c *actorhost.Context) error {
			<-ctx.Done()
			return nil
		}), nil
	})
	e := &Exec{Spawner: sp, Bus: b, Parent: scope.ROOT}

	_, result := e.Execute(context.Background(), json.RawMessage(`{"actors":["assistant"],"role":"Worker"}`))
	if result.Err != "" {
		t.Fatalf("unexpected error: %s", result.Err)
	}
}

func TestSpawnWithWaitBlocksUntilDone(t *testing.T) {
	b := bus.New()
	reg := registry.New()
	reg.Register(registry.Descriptor{Name: "assistant"})
	sp := spawner.New(b, reg, scope.NewParentMap(), scope.NewMembership(), nil, func(name string) (actorhost.Actor, error) {
		return actorhost.ActorFunc(func(ctx context.Context, c *actorhost.Context) error {
			<-ctx.Done()
			return nil
		}), nil
	})
	e := &Exec{Spawner: sp, Bus: b, Parent: scope.ROOT}

	var childScope scope.Scope
	done := make(chan struct{})
	go func() {
		recv := b.Subscribe()
		defer b.Drop(recv)
		for {
			env, ok := recv.Recv(context.Background())
			if !ok {
				return
			}
			if env.MessageType == domainmsg.TypeAgentSpawned {
				var spawned domainmsg.AgentSpawned
				_ = env.Unmarshal(&spawned)
				childScope = spawned.Scope
				close(done)
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resultCh := make(chan domainmsg.ToolResult, 1)
	go func() {
		_, result := e.Execute(ctx, json.RawMessage(`{"actors":["assistant"],"role":"Worker","wait":true}`))
		resultCh <- result
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for spawn")
	}

	doneEnv, _ := domainmsg.New("d1", "assistant", childScope, domainmsg.TypeAgentStatusUpdate, domainmsg.AgentStatusUpdate{
		Status: domainmsg.AgentStatus{Kind: domainmsg.StatusDone, Success: true},
	})
	if err := b.Publish(doneEnv); err != nil {
		t.Fatal(err)
	}

	select {
	case result := <-resultCh:
		if result.Err != "" {
			t.Fatalf("unexpected error: %s", result.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wait=true to return")
	}
}
