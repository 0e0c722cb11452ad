// Package complete implements the complete tool actor (spec.md §4.8): the
// Assistant's own hook for entering Done. It carries no side effects of its
// own beyond echoing its arguments back as a ToolResult — internal/assistant
// inspects a Finished update from a call named "complete" directly and
// drives the Done transition itself (spec.md §4.6(d)).
package complete

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Exec is the complete tool's toolproto.Executor.
type Exec struct{}

func (Exec) Name() string        { return "complete" }
func (Exec) Description() string { return "Mark this agent's task as finished." }

func (Exec) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"summary": {"type": "string"},
			"success": {"type": "boolean"}
		},
		"required": ["summary", "success"]
	}`)
}

func (Exec) RequiresApproval(json.RawMessage) bool { return false }

func (Exec) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		Summary string `json:"summary"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	ok, err := json.Marshal(args)
	if err != nil {
		return "", domainmsg.ToolResult{Err: err.Error()}
	}
	return "complete", domainmsg.ToolResult{Ok: string(ok)}
}
