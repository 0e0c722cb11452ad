// Package files implements the write_file and apply_patch tools,
// grounded on the teacher's internal/tools/files package of the same
// name. read_file and edit_file live in internal/tools/fs instead, which
// adds the mtime-keyed read-before-edit safety check this package's
// originals lacked.
package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Config controls filesystem tool defaults.
type Config struct {
	Workspace string
}

// WriteTool implements file writes within the workspace.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool creates a write tool scoped to the workspace.
func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WriteTool) Name() string { return "write_file" }
func (t *WriteTool) Description() string {
	return "Write content to a file in the workspace (overwrites by default)."
}

func (t *WriteTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to write (relative to workspace)."},
			"content": {"type": "string", "description": "File contents to write."},
			"append": {"type": "boolean", "description": "Append instead of overwrite (default: false)."}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteTool) RequiresApproval(json.RawMessage) bool { return true }

func (t *WriteTool) Execute(ctx context.Context, params json.RawMessage) (string, domainmsg.ToolResult) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Append  bool   `json:"append"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid parameters: %v", err)}
	}
	if strings.TrimSpace(input.Path) == "" {
		return "", domainmsg.ToolResult{Err: "path is required"}
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return input.Path, domainmsg.ToolResult{Err: err.Error()}
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return input.Path, domainmsg.ToolResult{Err: fmt.Sprintf("create directory: %v", err)}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return input.Path, domainmsg.ToolResult{Err: fmt.Sprintf("open file: %v", err)}
	}
	defer file.Close()

	n, err := file.WriteString(input.Content)
	if err != nil {
		return input.Path, domainmsg.ToolResult{Err: fmt.Sprintf("write file: %v", err)}
	}

	result := map[string]any{
		"path":          input.Path,
		"bytes_written": n,
		"append":        input.Append,
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return input.Path, domainmsg.ToolResult{Err: fmt.Sprintf("encode result: %v", err)}
	}

	return input.Path, domainmsg.ToolResult{Ok: string(payload)}
}
