package sandbox

// Mode determines which agents in a scope run sandboxed vs native,
// grounded on the teacher's internal/tools/sandbox.SandboxMode/ResolveModeConfig,
// generalized from "which agents get a Docker/Daytona sandbox" to "which
// actors in a spawned scope get a GuestActor instead of a native Actor".
type Mode string

const (
	ModeOff     Mode = "off"
	ModeAll     Mode = "all"
	ModeNonMain Mode = "non-main"
)

// Backend selects which isolation technology backs a GuestActor.
type Backend string

const (
	BackendWazero      Backend = "wazero"
	BackendFirecracker Backend = "firecracker"
)

// ModeConfig is the resolved sandboxing policy for a registry.
type ModeConfig struct {
	Mode    Mode
	Backend Backend
}

// ShouldSandbox reports whether actorName in a scope where isMainActor
// tells whether it's the Assistant actor (spec.md's "main agent" analogue)
// should dispatch through a GuestActor rather than a native Actor.
func (mc ModeConfig) ShouldSandbox(isMainActor bool) bool {
	switch mc.Mode {
	case ModeAll:
		return true
	case ModeNonMain:
		return !isMainActor
	default:
		return false
	}
}
