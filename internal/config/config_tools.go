package config

// ToolsConfig governs which tool calls the toolproto.Base confirmation
// gate waves through without asking the user, matching
// internal/tools/execcommand.Whitelist and toolproto.AutoApprove.
type ToolsConfig struct {
	// WhitelistedCommands feeds execcommand.NewWhitelist: the leading word
	// of a shell command must appear here to skip confirmation.
	WhitelistedCommands []string `yaml:"whitelisted_commands"`

	// AutoApproveCommands, if true, waves execute_command through
	// regardless of the whitelist. Meant for trusted, non-interactive runs
	// only; off by default.
	AutoApproveCommands bool `yaml:"auto_approve_commands"`

	// AutoApproveTools names tools (by toolproto.Executor.Name) that never
	// require confirmation, independent of whitelists. Wired into
	// toolproto.AutoApprove.
	AutoApproveTools []string `yaml:"auto_approve_tools"`

	// Workspace roots the read_file/write_file/edit_file/apply_patch
	// tools; paths escaping it are rejected by internal/tools/fs.Resolver
	// (read_file, edit_file) and internal/tools/files.Resolver (write_file,
	// apply_patch).
	Workspace string `yaml:"workspace"`
}

// AutoApprove builds a toolproto.AutoApprove closure over
// AutoApproveTools, for wiring into toolproto.Base.AutoApprove.
func (t ToolsConfig) AutoApprove(toolName string) bool {
	for _, name := range t.AutoApproveTools {
		if name == toolName {
			return true
		}
	}
	return false
}
