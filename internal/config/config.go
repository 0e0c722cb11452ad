// Package config loads the runtime configuration for an agentgrid process:
// which LLM provider backs the Assistant, which shell commands the
// execute_command tool may run without confirmation, how deep the bus's
// per-receiver queues are, and how the health watchdog paces itself.
// Grounded on the teacher's internal/config/loader.go layering — defaults
// struct, then a YAML file overlay, then an environment overlay — with the
// $include/json5 machinery dropped: one file is enough for this module's
// scope.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentgrid/agentgrid/internal/errs"
)

// Config is the top-level configuration for an agentgrid process.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Tools    ToolsConfig    `yaml:"tools"`
	Bus      BusConfig      `yaml:"bus"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
}

// Defaults returns a Config with every field set to its built-in default,
// matching the teacher's applyDefaults pass over a freshly decoded Config.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "openai",
		},
		Tools: ToolsConfig{
			AutoApproveCommands: false,
			Workspace:           ".",
		},
		Bus: BusConfig{
			Capacity: 1024,
		},
		Watchdog: WatchdogConfig{
			TickSpec:   "@every 30s",
			StaleAfter: 5 * time.Minute,
		},
		Sandbox: SandboxConfig{
			Mode:    "off",
			Backend: "wazero",
		},
	}
}

// Load reads path as a YAML overlay on top of Defaults, then applies
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) != "" {
		raw, err := LoadRaw(path)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfig, "load "+path, err)
		}
		if err := decodeRawConfig(raw, cfg); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "decode "+path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides mirrors the teacher's applyEnvOverrides: a small,
// explicit list of environment variables that win over both defaults and
// the file overlay, matching AMBIENT STACK's "defaults -> file -> env"
// ordering.
func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("AGENTGRID_LLM_PROVIDER")); value != "" {
		cfg.LLM.DefaultProvider = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTGRID_LLM_BASE_URL")); value != "" {
		provider := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
		provider.BaseURL = value
		setProvider(cfg, cfg.LLM.DefaultProvider, provider)
	}
	if value := strings.TrimSpace(os.Getenv("AGENTGRID_LLM_API_KEY")); value != "" {
		provider := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
		provider.APIKey = value
		setProvider(cfg, cfg.LLM.DefaultProvider, provider)
	}
	if value := strings.TrimSpace(os.Getenv("AGENTGRID_BUS_CAPACITY")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Bus.Capacity = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTGRID_WATCHDOG_STALE_AFTER")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.Watchdog.StaleAfter = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTGRID_AUTO_APPROVE_COMMANDS")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.Tools.AutoApproveCommands = parsed
		}
	}
}

func setProvider(cfg *Config, name string, provider LLMProviderConfig) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMProviderConfig{}
	}
	cfg.LLM.Providers[name] = provider
}

// validate rejects a Config that would otherwise fail confusingly deep
// inside the runtime it configures, matching the teacher's
// ConfigValidationError shape (a small collected list, not fail-fast on
// the first issue).
func validate(cfg *Config) error {
	var issues []string

	if cfg.LLM.DefaultProvider == "" {
		issues = append(issues, "llm.default_provider is required")
	} else if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
		issues = append(issues, "llm.default_provider "+strconv.Quote(cfg.LLM.DefaultProvider)+" has no matching entry under llm.providers")
	}
	if cfg.Bus.Capacity <= 0 {
		issues = append(issues, "bus.capacity must be positive")
	}
	if cfg.Watchdog.StaleAfter <= 0 {
		issues = append(issues, "watchdog.stale_after must be positive")
	}
	switch SandboxMode(cfg.Sandbox.Mode) {
	case SandboxModeOff, SandboxModeAll, SandboxModeNonMain:
	default:
		issues = append(issues, "sandbox.mode must be one of off, all, non-main")
	}
	switch SandboxBackend(cfg.Sandbox.Backend) {
	case SandboxBackendWazero, SandboxBackendFirecracker:
	default:
		issues = append(issues, "sandbox.backend must be one of wazero, firecracker")
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

// ValidationError collects every configuration problem found, rather than
// stopping at the first one, so an operator fixes their file in one pass.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config: validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}
