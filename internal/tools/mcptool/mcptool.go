// Package mcptool implements the mcp_call tool (C11, spec.md §4.7/§6): a
// toolproto.Executor front end over internal/mcp.Manager's CallTool, letting
// an Assistant invoke any tool advertised by a configured MCP server.
// Grounded on the teacher's internal/mcp.Manager.CallTool dispatch and
// internal/mcp/tool_summaries.go's flattening of a ToolCallResult's content
// blocks into a single string for display.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/mcp"
)

// Tool is the mcp_call toolproto.Executor. It dispatches by the tool name
// carried in its arguments rather than by Name(), since one Tool fronts
// every server the Manager knows about.
type Tool struct {
	Manager *mcp.Manager
}

func (t *Tool) Name() string { return "mcp_call" }

func (t *Tool) Description() string {
	return "Call a tool exposed by a connected MCP server."
}

func (t *Tool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tool": {"type": "string", "description": "Name of the MCP tool to call."},
			"arguments": {"type": "object", "description": "Arguments to pass to the tool."}
		},
		"required": ["tool"]
	}`)
}

func (t *Tool) RequiresApproval(json.RawMessage) bool { return true }

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Tool == "" {
		return "", domainmsg.ToolResult{Err: "tool is required"}
	}

	serverID, tool := t.Manager.FindTool(args.Tool)
	if tool == nil {
		return args.Tool, domainmsg.ToolResult{Err: fmt.Sprintf("no connected MCP server advertises tool %q", args.Tool)}
	}

	result, err := t.Manager.CallTool(ctx, serverID, args.Tool, args.Arguments)
	if err != nil {
		return args.Tool, domainmsg.ToolResult{Err: err.Error()}
	}

	text := flatten(result)
	if result.IsError {
		return args.Tool, domainmsg.ToolResult{Err: text}
	}
	return args.Tool, domainmsg.ToolResult{Ok: text}
}

// flatten collapses a ToolCallResult's content blocks into one string,
// keeping only the text blocks — matching tool_summaries.go's convention of
// rendering MCP content for an LLM turn rather than exposing raw blocks.
func flatten(result *mcp.ToolCallResult) string {
	var b strings.Builder
	for i, c := range result.Content {
		if c.Text == "" {
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
