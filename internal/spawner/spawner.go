// Package spawner implements the Context/Spawner (C5, spec.md §4.5): it
// allocates a scope, resolves the actor registry's dependency closure,
// launches each actor as an independent task, and announces the new agent
// on the bus.
package spawner

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/registry"
	"github.com/agentgrid/agentgrid/internal/scope"
)

// Factory builds a runnable Actor instance for one closure member. The
// registry stores factories as `any` to avoid an import cycle; the
// spawner is the one place that knows the concrete shape.
type Factory func(name string) (actorhost.Actor, error)

// Spawner owns the process-wide collaborators needed to create agents.
type Spawner struct {
	Bus        *bus.Bus
	Registry   *registry.Registry
	ParentMap  *scope.ParentMap
	Membership *scope.Membership
	Logger     *slog.Logger
	Factory    Factory
	// Tracer, if set, brackets every launched actor's dispatch iterations
	// in a span (internal/observability's otel wiring). Optional.
	Tracer actorhost.DispatchTracer

	// running tracks launched actor handles per scope so callers (e.g. the
	// watchdog, or process shutdown) can join them.
	running map[scope.Scope][]*actorhost.Handle
}

// New builds a Spawner over the given shared collaborators.
func New(b *bus.Bus, reg *registry.Registry, pm *scope.ParentMap, mem *scope.Membership, logger *slog.Logger, factory Factory) *Spawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spawner{
		Bus:        b,
		Registry:   reg,
		ParentMap:  pm,
		Membership: mem,
		Logger:     logger,
		Factory:    factory,
		running:    make(map[scope.Scope][]*actorhost.Handle),
	}
}

// Request describes one spawn call.
type Request struct {
	RequestedActors []string
	Role            string
	TaskDescription string
	ParentScope     *scope.Scope
}

// Result is what Spawn returns: the new scope and the actors launched in it.
type Result struct {
	Scope  scope.Scope
	Actors []registry.ResolvedActor
}

// Spawn implements spec.md §4.5 steps 1–6. On a NonExistentActor error, no
// partial scope is left running — the closure is fully resolved before any
// actor task is launched.
func (s *Spawner) Spawn(ctx context.Context, req Request) (Result, error) {
	// 1. Allocate a fresh scope.
	newScope := scope.New()

	// 2. Write the parent mapping before launching any actor.
	if req.ParentScope != nil {
		s.ParentMap.Insert(newScope, *req.ParentScope, true)
	} else {
		s.ParentMap.Insert(newScope, scope.Scope{}, false)
	}

	// 3. Compute the dependency closure.
	resolved, err := s.Registry.Closure(req.RequestedActors, s.Logger)
	if err != nil {
		return Result{}, fmt.Errorf("spawner: resolve closure for scope %s: %w", newScope, err)
	}

	// 4a. Build every actor instance concurrently. Construction is the only
	// part of step 4 that can fail, so it runs under an errgroup: Spawn
	// waits for every Factory call (running calls are not cancelled) and
	// returns the first error before any actor is launched, preserving
	// "no partial scope left running."
	instances := make([]actorhost.Actor, len(resolved))
	group, _ := errgroup.WithContext(ctx)
	for i, ra := range resolved {
		i, ra := i, ra
		group.Go(func() error {
			inst, err := s.Factory(ra.Name)
			if err != nil {
				return fmt.Errorf("spawner: build actor %q: %w", ra.Name, err)
			}
			instances[i] = inst
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, err
	}

	// 4b. Launch each built actor as an independent, long-running task.
	// actorhost.Launch already isolates per-actor failures (panics recover
	// into the actor's own Handle), so this dispatch loop stays sequential
	// rather than joining the fail-fast semantics used for construction.
	handles := make([]*actorhost.Handle, 0, len(resolved))
	actorIDs := make([]string, 0, len(resolved))
	for i, ra := range resolved {
		recv := s.Bus.SubscribeLabeled(ra.Name)
		cctx := &actorhost.Context{
			Deps: actorhost.Deps{
				Bus:        s.Bus,
				ParentMap:  s.ParentMap,
				Membership: s.Membership,
				Logger:     s.Logger,
			},
			Scope:    newScope,
			ActorID:  ra.Name,
			Receiver: recv,
			Tracer:   s.Tracer,
		}
		handles = append(handles, actorhost.Launch(ctx, instances[i], cctx))
		actorIDs = append(actorIDs, ra.Name)
	}
	s.running[newScope] = handles

	// 5. Write the scope membership set.
	s.Membership.Set(newScope, actorIDs)

	// 6. Publish AgentSpawned as the last step, per spec.md §5 ordering note.
	spawned := domainmsg.AgentSpawned{
		Scope:           newScope,
		ParentScope:     req.ParentScope,
		Role:            req.Role,
		TaskDescription: req.TaskDescription,
	}
	for _, ra := range resolved {
		spawned.Actors = append(spawned.Actors, domainmsg.SpawnedActor{Name: ra.Name, Reason: ra.Reason})
	}
	if err := s.Bus.Publish(mustEnvelope(newScope, spawned)); err != nil {
		s.Logger.Warn("spawner: failed to publish AgentSpawned", "scope", newScope.String(), "error", err)
	}

	return Result{Scope: newScope, Actors: resolved}, nil
}

// Handles returns the launched actor handles for scope, or nil if unknown.
func (s *Spawner) Handles(sc scope.Scope) []*actorhost.Handle {
	return s.running[sc]
}

func mustEnvelope(s scope.Scope, payload domainmsg.AgentSpawned) domainmsg.Envelope {
	env, err := domainmsg.New("spawn-"+s.String(), "spawner", s, domainmsg.TypeAgentSpawned, payload)
	if err != nil {
		// payload is always a plain struct of JSON-safe fields; a marshal
		// failure here means a programming error, not a runtime condition.
		panic(err)
	}
	return env
}
