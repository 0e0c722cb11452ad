package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentgrid.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadWithEmptyPathFailsValidationOnDefaults(t *testing.T) {
	cfg, err := Load("")
	if err == nil {
		t.Fatalf("expected validation error for missing llm.providers entry, got nil")
	}
	if cfg != nil {
		t.Fatalf("expected nil config on validation failure")
	}
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    openai:
      base_url: https://api.openai.com/v1
      default_model: gpt-4o-mini
bus:
  capacity: 256
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bus.Capacity != 256 {
		t.Fatalf("expected overlay capacity 256, got %d", cfg.Bus.Capacity)
	}
	// watchdog.stale_after was not set in the file, so the default survives
	// the overlay untouched.
	if cfg.Watchdog.StaleAfter != 5*time.Minute {
		t.Fatalf("expected default stale_after to survive overlay, got %s", cfg.Watchdog.StaleAfter)
	}
	if cfg.LLM.Providers["openai"].DefaultModel != "gpt-4o-mini" {
		t.Fatalf("expected default_model overlay, got %q", cfg.LLM.Providers["openai"].DefaultModel)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    openai: {}
tools:
  auto_approv_commands: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field auto_approv_commands")
	}
}

func TestLoadValidatesDefaultProviderHasEntry(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    openai: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidatesSandboxMode(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    openai: {}
sandbox:
  mode: everything
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "sandbox.mode") {
		t.Fatalf("expected sandbox.mode error, got %v", err)
	}
}

func TestEnvOverridesWinOverFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    openai:
      base_url: https://api.openai.com/v1
bus:
  capacity: 256
`)

	t.Setenv("AGENTGRID_BUS_CAPACITY", "64")
	t.Setenv("AGENTGRID_LLM_BASE_URL", "http://localhost:11434/v1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bus.Capacity != 64 {
		t.Fatalf("expected env override capacity 64, got %d", cfg.Bus.Capacity)
	}
	if cfg.LLM.Providers["openai"].BaseURL != "http://localhost:11434/v1" {
		t.Fatalf("expected env override base_url, got %q", cfg.LLM.Providers["openai"].BaseURL)
	}
}

func TestToolsAutoApproveChecksExactName(t *testing.T) {
	tc := ToolsConfig{AutoApproveTools: []string{"wait", "plan"}}
	if !tc.AutoApprove("wait") {
		t.Fatalf("expected wait to be auto-approved")
	}
	if tc.AutoApprove("execute_command") {
		t.Fatalf("expected execute_command to require confirmation")
	}
}
