// Package errs holds the core's error kinds (spec.md §7). The bus never
// carries typed errors itself — every failure becomes a domain envelope —
// but the packages that decide *how* to react to a failure need a shared
// vocabulary, which lives here.
package errs

import "fmt"

// Kind categorizes a CoreError for callers that need to branch on it.
type Kind string

const (
	KindConfig         Kind = "config"
	KindRegistry       Kind = "registry"
	KindBus            Kind = "bus"
	KindLLM            Kind = "llm"
	KindToolArgument   Kind = "tool_argument"
	KindToolExecution  Kind = "tool_execution"
	KindInterruption   Kind = "interruption"
	KindProtocolViolation Kind = "protocol_violation"
)

// CoreError wraps an underlying cause with a Kind for branching and a
// short Message intended for surfacing to an LLM or an operator.
type CoreError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// New constructs a CoreError of the given kind.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap constructs a CoreError of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// NonExistentActor is returned by the spawner when a requested or
// required_with actor name is not registered (spec.md §4.5).
type NonExistentActor struct {
	Name string
}

func (e *NonExistentActor) Error() string {
	return fmt.Sprintf("registry: no such actor %q", e.Name)
}
