// Package execcommand implements the execute_command tool: runs a shell
// command through /bin/sh -c, enforcing a command whitelist and truncating
// oversized output, grounded on the teacher's internal/tools/exec Manager.
package execcommand

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/toolproto/schema"
)

// maxOutputChars bounds the combined stdout+stderr kept in a tool result;
// beyond this the middle is elided with a marker, keeping the first and
// last portions intact.
const maxOutputChars = 16384
const keepChars = 4000

// Whitelist reports whether the leading word of a shell command line is
// allowed to run. Tools construct one from configuration; the zero value
// allows nothing.
type Whitelist struct {
	allowed map[string]bool
}

// NewWhitelist builds a Whitelist from a set of allowed command names.
func NewWhitelist(names []string) Whitelist {
	w := Whitelist{allowed: make(map[string]bool, len(names))}
	for _, n := range names {
		w.allowed[n] = true
	}
	return w
}

// Allows reports whether command's leading word is in the whitelist.
func (w Whitelist) Allows(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	return w.allowed[fields[0]]
}

// Tool is the execute_command toolproto.Executor.
type Tool struct {
	Whitelist Whitelist
	Workdir   string
	Timeout   time.Duration // 0 = no timeout
}

func (t *Tool) Name() string        { return "execute_command" }
func (t *Tool) Description() string { return "Run a shell command and return its output." }

// execCommandArgs is the reflected source of Tool's InputSchema.
type execCommandArgs struct {
	Command string `json:"command" jsonschema:"required,description=Shell command line to run."`
}

func (t *Tool) InputSchema() json.RawMessage {
	return schema.Generate[execCommandArgs]()
}

// RequiresApproval asks for confirmation whenever the command's leading
// word is absent from the whitelist (spec.md: commands outside the
// configured whitelist require user confirmation before they run).
func (t *Tool) RequiresApproval(raw json.RawMessage) bool {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return true
	}
	return !t.Whitelist.Allows(args.Command)
}

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (string, domainmsg.ToolResult) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", domainmsg.ToolResult{Err: fmt.Sprintf("invalid arguments: %v", err)}
	}
	command := strings.TrimSpace(args.Command)
	if command == "" {
		return "", domainmsg.ToolResult{Err: "command is required"}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if t.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	if t.Workdir != "" {
		cmd.Dir = t.Workdir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	output := truncate(out.String())

	if runCtx.Err() != nil {
		return command, domainmsg.ToolResult{Err: "cancelled"}
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return command, domainmsg.ToolResult{Err: fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), output)}
		}
		return command, domainmsg.ToolResult{Err: runErr.Error()}
	}
	return command, domainmsg.ToolResult{Ok: output}
}

func truncate(s string) string {
	if len(s) <= maxOutputChars {
		return s
	}
	dropped := len(s) - 2*keepChars
	return fmt.Sprintf("%s\n... %d characters truncated ...\n%s", s[:keepChars], dropped, s[len(s)-keepChars:])
}
