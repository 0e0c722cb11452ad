package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Edit replaces the inclusive line range [StartLine, EndLine] with
// NewText. EndLine == StartLine-1 means pure insertion before StartLine
// (no lines are removed).
type Edit struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	NewText   string `json:"new_text"`
}

// EditTool is the edit_file toolproto.Executor. It requires the file to
// have been read (via ReadTool, sharing the same Cache) and unmodified
// since, then applies all edits bottom-to-top so earlier line numbers
// stay valid across the batch.
type EditTool struct {
	Resolver Resolver
	Cache    *Cache
}

func (t *EditTool) Name() string { return "edit_file" }
func (t *EditTool) Description() string {
	return "Apply line-range replacements to a previously read file."
}

func (t *EditTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"edits": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"start_line": {"type": "integer"},
						"end_line": {"type": "integer"},
						"new_text": {"type": "string"}
					},
					"required": ["start_line", "end_line", "new_text"]
				}
			}
		},
		"required": ["path", "edits"]
	}`)
}

func (t *EditTool) RequiresApproval(json.RawMessage) bool { return true }

func (t *EditTool) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		Path  string `json:"path"`
		Edits []Edit `json:"edits"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if len(args.Edits) == 0 {
		return args.Path, domainmsg.ToolResult{Err: "edits are required"}
	}

	resolved, err := t.Resolver.Resolve(args.Path)
	if err != nil {
		return args.Path, domainmsg.ToolResult{Err: err.Error()}
	}

	entry, ok := t.Cache.lookup(resolved)

	// A single pure-insertion edit against a path never read before is the
	// one case allowed to create a new file.
	if !ok {
		if len(args.Edits) == 1 && args.Edits[0].EndLine == args.Edits[0].StartLine-1 && args.Edits[0].StartLine == 1 {
			if _, statErr := os.Stat(resolved); os.IsNotExist(statErr) {
				return t.create(resolved, args.Path, args.Edits[0].NewText)
			}
		}
		return args.Path, domainmsg.ToolResult{Err: "FileNotRead: read_file must be called before editing this path"}
	}

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		return args.Path, domainmsg.ToolResult{Err: fmt.Sprintf("stat file: %v", statErr)}
	}
	if !info.ModTime().Equal(entry.modTime) {
		return args.Path, domainmsg.ToolResult{Err: "FileModified: file changed on disk since it was last read"}
	}

	lines := append([]string(nil), entry.lines...)
	sorted := append([]Edit(nil), args.Edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartLine > sorted[j].StartLine })

	for _, e := range sorted {
		if e.StartLine < 1 || e.EndLine < e.StartLine-1 || e.EndLine > len(lines) {
			return args.Path, domainmsg.ToolResult{Err: fmt.Sprintf("InvalidLineNumbers: start_line=%d end_line=%d file has %d lines", e.StartLine, e.EndLine, len(lines))}
		}
		insertion := e.EndLine == e.StartLine-1
		newLines := splitLines(e.NewText)
		if insertion {
			head := append([]string(nil), lines[:e.StartLine-1]...)
			tail := append([]string(nil), lines[e.StartLine-1:]...)
			lines = append(append(head, newLines...), tail...)
		} else {
			head := append([]string(nil), lines[:e.StartLine-1]...)
			tail := append([]string(nil), lines[e.EndLine:]...)
			lines = append(append(head, newLines...), tail...)
		}
	}

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return args.Path, domainmsg.ToolResult{Err: fmt.Sprintf("write file: %v", err)}
	}
	newInfo, statErr := os.Stat(resolved)
	if statErr == nil {
		t.Cache.record(resolved, newInfo.ModTime(), lines)
	}
	return args.Path, domainmsg.ToolResult{Ok: fmt.Sprintf("applied %d edit(s)", len(args.Edits))}
}

func (t *EditTool) create(resolved, displayPath, text string) (string, domainmsg.ToolResult) {
	if err := os.WriteFile(resolved, []byte(text), 0o644); err != nil {
		return displayPath, domainmsg.ToolResult{Err: fmt.Sprintf("create file: %v", err)}
	}
	info, err := os.Stat(resolved)
	if err == nil {
		t.Cache.record(resolved, info.ModTime(), splitLines(text))
	}
	return displayPath, domainmsg.ToolResult{Ok: "created"}
}
