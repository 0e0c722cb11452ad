package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

var errTooLarge = errors.New("file exceeds 1MiB read limit")

// ReadTool is the read_file toolproto.Executor. It annotates each returned
// line with its 1-based number and records the snapshot in Cache so a
// following edit_file call can be checked against it.
type ReadTool struct {
	Resolver Resolver
	Cache    *Cache
}

func (t *ReadTool) Name() string { return "read_file" }
func (t *ReadTool) Description() string {
	return "Read a file, returning numbered lines; optionally limited to a line range."
}

func (t *ReadTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"start_line": {"type": "integer", "minimum": 1},
			"end_line": {"type": "integer", "minimum": 1}
		},
		"required": ["path"]
	}`)
}

func (t *ReadTool) RequiresApproval(json.RawMessage) bool { return false }

func (t *ReadTool) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	resolved, err := t.Resolver.Resolve(args.Path)
	if err != nil {
		return args.Path, domainmsg.ToolResult{Err: err.Error()}
	}

	content, info, err := readAndStat(resolved)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return args.Path, domainmsg.ToolResult{Err: errTooLarge.Error()}
		}
		return args.Path, domainmsg.ToolResult{Err: fmt.Sprintf("read file: %v", err)}
	}
	lines := splitLines(content)
	t.Cache.record(resolved, info.ModTime(), lines)

	start, end := 1, len(lines)
	if args.StartLine > 0 {
		start = args.StartLine
	}
	if args.EndLine > 0 {
		end = args.EndLine
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	if start > 1 {
		fmt.Fprintf(&b, "... lines 1-%d omitted ...\n", start-1)
	}
	for i := start; i <= end && i <= len(lines); i++ {
		fmt.Fprintf(&b, "%d\t%s\n", i, lines[i-1])
	}
	if end < len(lines) {
		fmt.Fprintf(&b, "... lines %d-%d omitted ...\n", end+1, len(lines))
	}
	return args.Path, domainmsg.ToolResult{Ok: b.String()}
}
