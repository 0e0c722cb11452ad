// Package actorhost runs the per-actor task loop (C3, spec.md §4.3):
// subscribe, dispatch by message_type, repeat until Exit. Two dispatch
// flavors exist — Native, a direct function call, and Sandboxed, which
// crosses into a guest sandbox through the capability ABI in
// internal/sandbox. Both implement the same Actor interface so the
// spawner never needs to know which kind it launched.
package actorhost

import (
	"context"
	"log/slog"

	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/scope"
)

// Deps bundles the shared, process-wide collaborators every actor needs
// at startup — the spawner hands an identical Deps value (wrapped in its
// own per-actor Context, see Context below) to each actor it launches.
type Deps struct {
	Bus         *bus.Bus
	ParentMap   *scope.ParentMap
	Membership  *scope.Membership
	Logger      *slog.Logger
}

// DispatchTracer starts a span around one DispatchLoop iteration. The
// returned end func must be called with the iteration's error (nil on
// success) when the span should close. Grounded on the teacher's
// internal/observability.Tracer.Start/span.End pairing, narrowed to the
// one shape actor dispatch needs so actorhost doesn't import otel
// directly.
type DispatchTracer interface {
	StartDispatch(ctx context.Context, actorID, messageType string) (context.Context, func(err error))
}

// Context is the per-actor view of the shared Deps: its own scope, a
// private receiver, and an identity used as from_actor_id on everything
// it publishes.
type Context struct {
	Deps
	Scope    scope.Scope
	ActorID  string
	Receiver *bus.Receiver
	Tracer   DispatchTracer // optional
}

// Publish wraps bus.Publish, stamping from_scope/from_actor_id and
// marshaling payload, so actor bodies never touch envelope plumbing.
func (c *Context) Publish(id, messageType string, payload any) error {
	env, err := domainmsg.New(id, c.ActorID, c.Scope, messageType, payload)
	if err != nil {
		return err
	}
	return c.Bus.Publish(env)
}

// Log returns a logger pre-tagged with this actor's identity, matching
// the teacher's convention of attaching correlation fields via With(...).
func (c *Context) Log() *slog.Logger {
	return c.Logger.With("actor_id", c.ActorID, "scope", c.Scope.String())
}

// Actor is anything the host can run as an independent cooperative task.
type Actor interface {
	// Run executes the actor's task loop until ctx is cancelled or the
	// actor observes an Exit addressed to its scope. Run owns cctx.Receiver
	// and must not retain it after returning.
	Run(ctx context.Context, cctx *Context) error
}

// ActorFunc adapts a plain function to the Actor interface, the native
// dispatch flavor of spec.md §4.3.
type ActorFunc func(ctx context.Context, cctx *Context) error

func (f ActorFunc) Run(ctx context.Context, cctx *Context) error { return f(ctx, cctx) }

// AddressedTo reports whether env is meaningfully addressed to scope s —
// either because it originated there, or because it carries an explicit
// addressed_scope field matching s. Individual domain message types are
// unmarshaled by the caller; this only short-circuits on from_scope so
// hot-path actors can skip full unmarshaling of envelopes from unrelated
// scopes (spec.md §4.2: filtering is a convention each actor implements).
func AddressedTo(env domainmsg.Envelope, s scope.Scope) bool {
	return env.FromScope == s
}
