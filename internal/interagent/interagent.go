// Package interagent implements the inter-agent messaging helpers (C9,
// spec.md §4.9): constructing and publishing the three scope-addressed
// envelope kinds agents use to talk across the spawn tree, and the rule
// that an envelope addressed to an unknown scope is silently ignored
// rather than treated as an error.
package interagent

import (
	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/scope"
)

// SendMessage publishes free-form text addressed to another agent's scope
// (the send_message / send_manager_message tool primitive).
func SendMessage(cctx *actorhost.Context, id string, to scope.Scope, body string) error {
	return cctx.Publish(id, domainmsg.TypeInterAgentMessage, domainmsg.InterAgentMessage{
		AddressedScope: to,
		Body:           body,
	})
}

// RequestStatus asks the addressee to adopt status directly, bypassing its
// own decision logic. It publishes the same envelope kind the planner
// tool's approval handshake sends.
func RequestStatus(cctx *actorhost.Context, id string, to scope.Scope, status domainmsg.AgentStatus) error {
	return cctx.Publish(id, domainmsg.TypeInterAgentStatusReq, domainmsg.InterAgentStatusRequest{
		AddressedScope: to,
		Status:         status,
	})
}

// Interrupt publishes a health-driven preemption addressed to target,
// forcing its in-flight tool calls to a synthetic Err("interrupted")
// result and putting it into Wait{WaitingForManager} (the watchdog's
// flag_issue_for_review primitive).
func Interrupt(cctx *actorhost.Context, id string, target scope.Scope, toolCallID string) error {
	return cctx.Publish(id, domainmsg.TypeInterruptAndForceWait, domainmsg.InterruptAndForceWait{
		AddressedScope: target,
		ToolCallID:     toolCallID,
	})
}

// KnownScope reports whether s has ever had a membership set recorded; a
// scope whose actors have exited stays known. Callers use
// this to implement the "unknown addressed scope is silently ignored"
// contract before acting on an inbound envelope.
func KnownScope(mem *scope.Membership, s scope.Scope) bool {
	return mem.Known(s)
}
