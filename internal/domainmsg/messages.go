package domainmsg

import (
	"encoding/json"

	"github.com/agentgrid/agentgrid/internal/scope"
)

// Message type strings used for bus dispatch (spec.md §3: "fully-qualified
// dotted string"). These are the values carried in Envelope.MessageType.
const (
	TypeUserInput             = "agent.user_input"
	TypeToolsAvailable        = "agent.tools_available"
	TypeAssistantRequest      = "agent.assistant_request"
	TypeAssistantResponse     = "agent.assistant_response"
	TypeAssistantToolCall     = "agent.assistant_tool_call"
	TypeToolCallUpdate        = "agent.tool_call_update"
	TypeAgentStatusUpdate     = "agent.status_update"
	TypeAgentSpawned          = "agent.spawned"
	TypeInterAgentMessage     = "agent.inter_agent_message"
	TypeInterAgentStatusReq   = "agent.inter_agent_status_request"
	TypeInterruptAndForceWait = "agent.interrupt_and_force_wait"
	TypePlanUpdated           = "agent.plan_updated"
	TypeExit                  = "agent.exit"
	TypeWatchdogReport        = "agent.watchdog_report"
)

// UserInput is human input targeted at a scope.
type UserInput struct {
	Text string `json:"text"`
}

// ToolDescriptor advertises one tool a tool actor can execute.
type ToolDescriptor struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	InputSchema      json.RawMessage `json:"input_schema"`
	RequiresApproval bool            `json:"requires_approval,omitempty"`
}

// ToolsAvailable is published by each tool actor at startup.
type ToolsAvailable struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ChatMessage is one turn in the materialized LLM prompt.
type ChatMessage struct {
	Role       string `json:"role"` // system|user|assistant|tool
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// AssistantRequest is the materialized LLM prompt for one turn.
type AssistantRequest struct {
	Messages []ChatMessage `json:"messages"`
	TurnID   string        `json:"turn_id"`
}

// AssistantToolCall is one tool invocation extracted from an LLM reply.
type AssistantToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// AssistantResponse is the LLM's reply for one turn.
type AssistantResponse struct {
	Content   string              `json:"content,omitempty"`
	ToolCalls []AssistantToolCall `json:"tool_calls,omitempty"`
	TurnID    string              `json:"turn_id"`
}

// ToolResult carries either a success payload or an error message,
// serialized uniformly regardless of which arm is populated.
type ToolResult struct {
	Ok  string `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`
}

// ToolCallStatusKind enumerates the ToolCallUpdate.Status variants.
type ToolCallStatusKind string

const (
	ToolCallReceived             ToolCallStatusKind = "received"
	ToolCallAwaitingConfirmation ToolCallStatusKind = "awaiting_user_confirmation"
	ToolCallUserConfirmed        ToolCallStatusKind = "user_confirmed"
	ToolCallFinished             ToolCallStatusKind = "finished"
)

// ToolCallStatus is the tagged-union payload of a ToolCallUpdate.
type ToolCallStatus struct {
	Kind    ToolCallStatusKind `json:"kind"`
	Display string             `json:"display,omitempty"` // AwaitingUserConfirmation
	Confirm bool               `json:"confirm,omitempty"` // UserConfirmed
	Result  *ToolResult        `json:"result,omitempty"`  // Finished
}

// ToolCallUpdate reports the state of one in-flight tool call.
type ToolCallUpdate struct {
	CallID string         `json:"call_id"`
	Status ToolCallStatus `json:"status"`
}

// AgentStatusKind enumerates the AgentStatusUpdate.Status variants
// (spec.md §3 / §4.6).
type AgentStatusKind string

const (
	StatusIdle          AgentStatusKind = "idle"
	StatusProcessing    AgentStatusKind = "processing"
	StatusAwaitingTools AgentStatusKind = "awaiting_tools"
	StatusWait          AgentStatusKind = "wait"
	StatusDone          AgentStatusKind = "done"
)

// WaitReason enumerates why an agent is in StatusWait.
type WaitReason string

const (
	WaitingForManager  WaitReason = "waiting_for_manager"
	WaitingForSystem   WaitReason = "waiting_for_system"
	WaitingForDuration WaitReason = "waiting_for_duration"
)

// AgentStatus is the tagged-union payload of an AgentStatusUpdate.
type AgentStatus struct {
	Kind AgentStatusKind `json:"kind"`

	// Processing
	TurnID string `json:"turn_id,omitempty"`

	// AwaitingTools
	PendingIDs []string `json:"pending_ids,omitempty"`

	// Wait
	Reason      WaitReason `json:"reason,omitempty"`
	ToolCallID  string     `json:"tool_call_id,omitempty"`
	WaitSeconds int        `json:"wait_seconds,omitempty"`

	// Done
	Summary string `json:"summary,omitempty"`
	Success bool   `json:"success,omitempty"`
}

// AgentStatusUpdate reports the current agent status state machine value.
type AgentStatusUpdate struct {
	Status AgentStatus `json:"status"`
}

// SpawnedActor records provenance for one actor launched during a spawn,
// supplemental to spec.md's AgentSpawned.actors[] (SPEC_FULL.md §3).
type SpawnedActor struct {
	Name   string `json:"name"`
	Reason string `json:"reason"` // requested | auto_spawn | required_with:<name>
}

// AgentSpawned announces a newly created scope and its actor set.
type AgentSpawned struct {
	Scope           scope.Scope    `json:"scope"`
	ParentScope     *scope.Scope   `json:"parent_scope,omitempty"`
	Role            string         `json:"role"`
	TaskDescription string         `json:"task_description"`
	Actors          []SpawnedActor `json:"actors"`
}

// InterAgentMessage is free-form text addressed to another agent's scope.
type InterAgentMessage struct {
	AddressedScope scope.Scope `json:"addressed_scope"`
	Body           string      `json:"body"`
}

// InterAgentStatusRequest asks the addressee to enter a specific status.
type InterAgentStatusRequest struct {
	AddressedScope scope.Scope `json:"addressed_scope"`
	Status         AgentStatus `json:"status"`
}

// InterruptAndForceWait is a health-driven preemption addressed to a scope.
type InterruptAndForceWait struct {
	AddressedScope scope.Scope `json:"addressed_scope"`
	ToolCallID     string      `json:"tool_call_id"`
}

// TaskStatus enumerates Plan.Tasks[i].Status values.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskSkipped    TaskStatus = "skipped"
)

// PlanTask is one item in a Plan's ordered task list.
type PlanTask struct {
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
}

// Plan is the shared task plan object for one scope (spec.md §3).
type Plan struct {
	Title string     `json:"title"`
	Tasks []PlanTask `json:"tasks"`
}

// PlanUpdated broadcasts the current plan for a scope.
type PlanUpdated struct {
	Plan Plan `json:"plan"`
}

// Exit is a cooperative shutdown signal.
type Exit struct{}

// WatchdogReport is the health watchdog's verdict for one snapshot round:
// either the target reached Done and is no longer tracked (Normal), or it
// has been flagged for review: an InterruptAndForceWait was sent to the
// target and, when it has a parent, an InterAgentMessage to that parent.
type WatchdogReport struct {
	Target scope.Scope `json:"target"`
	Normal bool        `json:"normal"`
	Reason string      `json:"reason,omitempty"`
}
