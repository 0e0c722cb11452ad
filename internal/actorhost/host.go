package actorhost

import (
	"context"
	"runtime/debug"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Launch starts a as an independent goroutine, recovering panics into a
// log entry the way the teacher's Executor tracks TotalPanics rather than
// letting one actor's bug take down the process. It returns a handle whose
// Wait blocks until the actor's Run returns.
func Launch(ctx context.Context, a Actor, cctx *Context) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				cctx.Log().Error("actorhost: actor panicked", "panic", r, "stack", string(debug.Stack()))
				h.err = errPanic{recovered: r}
			}
		}()
		h.err = a.Run(ctx, cctx)
	}()
	return h
}

type errPanic struct{ recovered any }

func (e errPanic) Error() string { return "actorhost: actor panicked" }

// Handle is the join handle for one launched actor task.
type Handle struct {
	done chan struct{}
	err  error
}

// Wait blocks until the actor's task loop has exited and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Done returns a channel closed when the actor's task loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// DispatchLoop implements the common shape of spec.md §4.3 step 2: read one
// envelope, dispatch by message_type, repeat. handle returns (exit, err);
// when exit is true the loop stops (e.g. on an Exit addressed to this
// scope). The loop also stops on ctx cancellation.
func DispatchLoop(ctx context.Context, cctx *Context, handle func(env domainmsg.Envelope) (exit bool, err error)) error {
	for {
		env, ok := cctx.Receiver.Recv(ctx)
		if !ok {
			return ctx.Err()
		}

		// handle closures capture their own ctx from Run's outer scope rather
		// than taking one as a parameter, so the span here brackets the
		// dispatch without threading a child context into handle.
		var endSpan func(error)
		if cctx.Tracer != nil {
			_, endSpan = cctx.Tracer.StartDispatch(ctx, cctx.ActorID, env.MessageType)
		}

		exit, err := handle(env)
		if endSpan != nil {
			endSpan(err)
		}
		if err != nil {
			cctx.Log().Error("actorhost: dispatch error", "message_type", env.MessageType, "error", err)
		}
		if exit {
			return nil
		}
	}
}

// IsExitForMe reports whether env is an Exit and mine() reports true. The
// addressing decision (bus-wide from ROOT, or scoped to the actor's own
// scope, per spec.md §9 "Cooperative shutdown") is left entirely to mine;
// this function only checks the message type.
func IsExitForMe(env domainmsg.Envelope, mine func() bool) bool {
	if env.MessageType != domainmsg.TypeExit {
		return false
	}
	return mine()
}
