package sandbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/spawner"
)

// hostModuleName is the WASM import module name guest actors link their
// capability calls against, matching spec.md §4.3's "fixed host ABI".
const hostModuleName = "agentgrid_host"

// GuestActor is the sandboxed dispatch flavor of Actor (spec.md §4.3): each
// received envelope is marshaled to JSON, written into guest memory, and
// handed to the guest module's exported "dispatch" function, which may call
// back into the capability ABI exposed on hostModuleName before returning.
// Grounded on the teacher's internal/tools/sandbox.Pool instantiate/teardown
// lifecycle, replacing its Docker/Daytona process pool with an in-process
// wazero module instance per actor.
type GuestActor struct {
	Binary  []byte
	Spawner *spawner.Spawner

	runtime wazero.Runtime
}

// Run implements actorhost.Actor: instantiate the guest module once, then
// dispatch envelopes to it until Exit or ctx cancellation.
func (g *GuestActor) Run(ctx context.Context, cctx *actorhost.Context) error {
	g.runtime = wazero.NewRuntime(ctx)
	defer g.runtime.Close(ctx)

	caps := NewCapabilities(cctx, g.Spawner)
	if err := registerHostModule(ctx, g.runtime, caps); err != nil {
		return fmt.Errorf("sandbox: register host module: %w", err)
	}

	compiled, err := g.runtime.CompileModule(ctx, g.Binary)
	if err != nil {
		return fmt.Errorf("sandbox: compile guest module: %w", err)
	}

	mod, err := g.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(cctx.ActorID))
	if err != nil {
		return fmt.Errorf("sandbox: instantiate guest module: %w", err)
	}
	defer mod.Close(ctx)

	dispatch := mod.ExportedFunction("dispatch")
	if dispatch == nil {
		return fmt.Errorf("sandbox: guest module %q does not export dispatch", cctx.ActorID)
	}

	return actorhost.DispatchLoop(ctx, cctx, func(env domainmsg.Envelope) (bool, error) {
		if env.MessageType == domainmsg.TypeExit && env.FromScope == cctx.Scope {
			return true, nil
		}
		if err := g.invokeDispatch(ctx, mod, dispatch, env); err != nil {
			cctx.Log().Error("sandbox: guest dispatch failed", "error", err)
		}
		return false, nil
	})
}

// invokeDispatch writes env's JSON encoding into guest memory and calls
// dispatch(ptr, len), matching the conventional wazero "pass a byte slice
// by writing it into the guest's own linear memory" ABI pattern (the guest
// exports its own allocator; see original_source/ for the allocate/dispatch
// pairing this generalizes from a language-specific worker loop).
func (g *GuestActor) invokeDispatch(ctx context.Context, mod api.Module, dispatch api.Function, env domainmsg.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	alloc := mod.ExportedFunction("allocate")
	if alloc == nil {
		return fmt.Errorf("guest module does not export allocate")
	}
	results, err := alloc.Call(ctx, uint64(len(payload)))
	if err != nil {
		return fmt.Errorf("guest allocate: %w", err)
	}
	ptr := results[0]

	if !mod.Memory().Write(uint32(ptr), payload) {
		return fmt.Errorf("sandbox: failed writing %d bytes at guest offset %d", len(payload), ptr)
	}

	if _, err := dispatch.Call(ctx, ptr, uint64(len(payload))); err != nil {
		return fmt.Errorf("guest dispatch: %w", err)
	}
	return nil
}

// registerHostModule exposes the capability ABI (logger, host-info,
// messaging, agent, command, http) as host functions a guest imports under
// hostModuleName. Arguments/return values cross the boundary as a
// (ptr, len) pair into guest memory carrying a JSON payload — simple to
// reason about and sufficient for the call volumes an actor's tool
// dispatch produces; a binary wire format is not warranted here.
func registerHostModule(ctx context.Context, r wazero.Runtime, caps *Capabilities) error {
	builder := r.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, level, msgPtr, msgLen uint32) {
			msg, ok := mod.Memory().Read(msgPtr, msgLen)
			if !ok {
				return
			}
			caps.Logger.Log(logLevelName(level), string(msg))
		}).
		Export("log")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module) uint64 {
			out, _ := json.Marshal(caps.HostInfo)
			return writeResult(ctx, mod, out)
		}).
		Export("host_info")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, typePtr, typeLen, payloadPtr, payloadLen uint32) uint32 {
			messageType, ok1 := mod.Memory().Read(typePtr, typeLen)
			payload, ok2 := mod.Memory().Read(payloadPtr, payloadLen)
			if !ok1 || !ok2 {
				return 1
			}
			var decoded any
			if err := json.Unmarshal(payload, &decoded); err != nil {
				return 1
			}
			if err := caps.Messaging.Broadcast("guest-broadcast", string(messageType), decoded); err != nil {
				return 1
			}
			return 0
		}).
		Export("broadcast")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namesPtr, namesLen uint32) uint64 {
			namesJSON, ok := mod.Memory().Read(namesPtr, namesLen)
			if !ok {
				return 0
			}
			var names []string
			if err := json.Unmarshal(namesJSON, &names); err != nil {
				return 0
			}
			sc, err := caps.Agent.SpawnAgent(ctx, names)
			if err != nil {
				return 0
			}
			out, _ := json.Marshal(sc.String())
			return writeResult(ctx, mod, out)
		}).
		Export("spawn_agent")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, reqPtr, reqLen uint32) uint64 {
			req, ok := mod.Memory().Read(reqPtr, reqLen)
			if !ok {
				return 0
			}
			var builder CommandBuilder
			if err := json.Unmarshal(req, &builder); err != nil {
				return 0
			}
			result := builder.Run(ctx)
			out, _ := json.Marshal(result)
			return writeResult(ctx, mod, out)
		}).
		Export("command_run")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, reqPtr, reqLen uint32) uint64 {
			req, ok := mod.Memory().Read(reqPtr, reqLen)
			if !ok {
				return 0
			}
			var builder HTTPBuilder
			if err := json.Unmarshal(req, &builder); err != nil {
				return 0
			}
			resp, err := builder.Send(ctx)
			if err != nil {
				out, _ := json.Marshal(struct {
					Error string `json:"error"`
				}{Error: err.Error()})
				return writeResult(ctx, mod, out)
			}
			out, _ := json.Marshal(resp)
			return writeResult(ctx, mod, out)
		}).
		Export("http_send")

	_, err := builder.Instantiate(ctx)
	return err
}

// writeResult allocates space in the guest and writes out, returning a
// packed (ptr<<32 | len) the guest side unpacks — the same pattern used
// for every host function that returns a variable-length payload above.
func writeResult(ctx context.Context, mod api.Module, out []byte) uint64 {
	alloc := mod.ExportedFunction("allocate")
	if alloc == nil {
		return 0
	}
	results, err := alloc.Call(ctx, uint64(len(out)))
	if err != nil {
		return 0
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, out) {
		return 0
	}
	return uint64(ptr)<<32 | uint64(len(out))
}

func logLevelName(level uint32) string {
	switch level {
	case 0:
		return "debug"
	case 2:
		return "warn"
	case 3:
		return "error"
	default:
		return "info"
	}
}
