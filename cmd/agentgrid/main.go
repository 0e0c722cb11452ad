// Package main provides the CLI entry point for agentgrid, a
// multi-agent orchestration runtime for LLM-backed workers.
//
// # Basic Usage
//
// Run one turn against the root scope:
//
//	agentgrid run --prompt "summarize this repository"
//
// Clear the on-disk sandboxed-actor-binary cache:
//
//	agentgrid clean
//
// # Environment Variables
//
//   - AGENTGRID_CONFIG: path to a YAML configuration file
//   - AGENTGRID_LLM_PROVIDER, AGENTGRID_LLM_BASE_URL, AGENTGRID_LLM_API_KEY
//   - AGENTGRID_BUS_CAPACITY
//   - AGENTGRID_WATCHDOG_STALE_AFTER
//   - AGENTGRID_AUTO_APPROVE_COMMANDS
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/assistant"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/cache"
	"github.com/agentgrid/agentgrid/internal/config"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/llm"
	"github.com/agentgrid/agentgrid/internal/llm/openaicompat"
	"github.com/agentgrid/agentgrid/internal/mcp"
	"github.com/agentgrid/agentgrid/internal/observability"
	"github.com/agentgrid/agentgrid/internal/plan"
	"github.com/agentgrid/agentgrid/internal/registry"
	"github.com/agentgrid/agentgrid/internal/scope"
	"github.com/agentgrid/agentgrid/internal/spawner"
	"github.com/agentgrid/agentgrid/internal/tools/complete"
	"github.com/agentgrid/agentgrid/internal/tools/execcommand"
	"github.com/agentgrid/agentgrid/internal/tools/files"
	"github.com/agentgrid/agentgrid/internal/tools/fs"
	"github.com/agentgrid/agentgrid/internal/tools/httptool"
	"github.com/agentgrid/agentgrid/internal/tools/mcptool"
	"github.com/agentgrid/agentgrid/internal/tools/message"
	"github.com/agentgrid/agentgrid/internal/tools/planner"
	"github.com/agentgrid/agentgrid/internal/tools/spawnagents"
	"github.com/agentgrid/agentgrid/internal/tools/wait"
	"github.com/agentgrid/agentgrid/internal/toolproto"
	"github.com/agentgrid/agentgrid/internal/watchdog"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

const defaultSystemPrompt = `You are agentgrid's {{.role}} agent.

Use the available tools to make progress on the task, then call complete
when finished. If you need another agent's help, use send_message or
spawn_agents.`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentgrid",
		Short:        "agentgrid - multi-agent orchestration runtime for LLM-backed workers",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildCleanCmd())
	return root
}

func buildCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the on-disk sandboxed-actor-binary cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cache.Dir()
			if err != nil {
				return err
			}
			if err := cache.Clean(dir); err != nil {
				return err
			}
			slog.Info("cache cleared", "dir", dir)
			return nil
		},
	}
}

func buildRunCmd() *cobra.Command {
	var (
		configPath  string
		prompt      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Spawn the root scope and seed it with a user prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd.Context(), configPath, prompt, metricsAddr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("AGENTGRID_CONFIG"), "Path to YAML configuration file")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "User input to seed the root scope with")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address to serve the Prometheus /metrics endpoint on")
	return cmd
}

// runRoot wires every collaborator from config/observability/bus/registry
// through to a spawned root scope, publishes prompt as a UserInput if
// given, and blocks until the root scope reaches Done or a shutdown
// signal arrives.
func runRoot(ctx context.Context, configPath, prompt, metricsAddr string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("configuration loaded", "llm_provider", cfg.LLM.DefaultProvider, "sandbox_mode", cfg.Sandbox.Mode)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	tracer := observability.NewTracer("agentgrid")
	defer tracer.Shutdown(ctx)

	srv := &http.Server{Addr: metricsAddr, Handler: observability.Handler(reg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	defer srv.Close()

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}
	llmClient = llm.Traced(llmClient, tracer, cfg.LLM.DefaultProvider, providerModel(cfg))

	b := bus.New(bus.WithCapacity(cfg.Bus.Capacity), bus.WithDropObserver(metrics), bus.WithLogger(slog.Default()))
	pm := scope.NewParentMap()
	mem := scope.NewMembership()
	reg2 := registry.New()

	planStore := plan.NewStore()
	mcpManager := mcp.NewManager(&mcp.Config{Enabled: false}, slog.Default())
	whitelist := execcommand.NewWhitelist(cfg.Tools.WhitelistedCommands)
	fsCache := fs.NewCache()

	sp := spawner.New(b, reg2, pm, mem, slog.Default(), nil)
	sp.Tracer = tracer
	// buildFactory closes over sp itself so the spawn_agents tool can
	// launch further scopes through the same Spawner it was launched
	// from; sp.Factory is only invoked once Spawn is called below, by
	// which point sp is fully constructed.
	sp.Factory = buildFactory(cfg, llmClient, metrics, b, pm, sp, planStore, mcpManager, whitelist, fsCache)

	registerDescriptors(reg2)

	wd := watchdog.New(b, pm, mem, watchdog.WithStaleAfter(cfg.Watchdog.StaleAfter), watchdog.WithAgentCountObserver(metrics))
	go func() {
		if err := wd.Run(ctx, cfg.Watchdog.TickSpec); err != nil && ctx.Err() == nil {
			slog.Error("watchdog exited", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.ObserveBusDepths(b)
			}
		}
	}()

	result, err := sp.Spawn(ctx, spawner.Request{Role: "Manager", TaskDescription: prompt})
	if err != nil {
		return fmt.Errorf("spawn root scope: %w", err)
	}
	slog.Info("root scope spawned", "scope", result.Scope.String(), "actors", len(result.Actors))

	if prompt != "" {
		env, err := domainmsg.New("run-prompt", "cli", result.Scope, domainmsg.TypeUserInput, domainmsg.UserInput{Text: prompt})
		if err != nil {
			return err
		}
		if err := b.Publish(env); err != nil {
			return fmt.Errorf("publish prompt: %w", err)
		}
	}

	return waitForDoneOrShutdown(ctx, b, result.Scope)
}

// waitForDoneOrShutdown blocks until the root scope's Assistant reaches
// Done or ctx is cancelled (shutdown signal), matching spec.md §9's
// cooperative-shutdown convention.
func waitForDoneOrShutdown(ctx context.Context, b *bus.Bus, target scope.Scope) error {
	recv := b.Subscribe()
	defer b.Drop(recv)
	for {
		env, ok := recv.Recv(ctx)
		if !ok {
			slog.Info("shutting down")
			return nil
		}
		if env.MessageType != domainmsg.TypeAgentStatusUpdate || env.FromScope != target {
			continue
		}
		var upd domainmsg.AgentStatusUpdate
		if err := env.Unmarshal(&upd); err != nil {
			continue
		}
		if upd.Status.Kind == domainmsg.StatusDone {
			slog.Info("root scope done", "summary", upd.Status.Summary, "success", upd.Status.Success)
			return nil
		}
	}
}

func providerModel(cfg *config.Config) string {
	p, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		return ""
	}
	return p.DefaultModel
}

func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	p, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("no provider configured for %q", cfg.LLM.DefaultProvider)
	}
	return openaicompat.New(p.APIKey, p.BaseURL, p.DefaultModel)
}

// registerDescriptors declares the actor catalog every spawned scope
// resolves its closure against (C4, spec.md §4.4): the assistant plus
// every tool actor auto-spawn into every scope.
func registerDescriptors(reg *registry.Registry) {
	names := []string{
		"assistant", "complete", "wait", "send_message", "spawn_agents",
		"planner", "execute_command", "mcp_call", "http",
		"read_file", "write_file", "edit_file", "apply_patch",
	}
	for _, name := range names {
		reg.Register(registry.Descriptor{Name: name, AutoSpawn: true})
	}
}

// buildFactory returns the spawner.Factory closure that builds a runnable
// actorhost.Actor for each name in the registry's resolved closure.
func buildFactory(
	cfg *config.Config,
	llmClient llm.Client,
	metrics *observability.Metrics,
	b *bus.Bus,
	pm *scope.ParentMap,
	sp *spawner.Spawner,
	planStore *plan.Store,
	mcpManager *mcp.Manager,
	whitelist execcommand.Whitelist,
	fsCache *fs.Cache,
) spawner.Factory {
	return func(name string) (actorhost.Actor, error) {
		switch name {
		case "assistant":
			a := assistant.New(llmClient, defaultSystemPrompt,
				assistant.WithRole("agent"),
				assistant.WithParentMap(pm),
				assistant.WithRenderVars(func() map[string]string { return map[string]string{} }),
			)
			return actorhost.ActorFunc(a.Run), nil
		case "complete":
			return &toolproto.Base{Exec: complete.Exec{}, AutoApprove: cfg.Tools.AutoApprove, Latency: metrics}, nil
		case "wait":
			return wait.NewActor(&wait.Exec{Bus: b}), nil
		case "send_message":
			return message.NewActor(&message.Exec{ParentMap: pm}), nil
		case "spawn_agents":
			return spawnagents.NewActor(&spawnagents.Exec{Spawner: sp, Bus: b}), nil
		case "planner":
			return planner.NewActor(&planner.Exec{Store: planStore, IsWorker: true, ParentMap: pm}), nil
		case "execute_command":
			autoApprove := toolproto.AutoApprove(cfg.Tools.AutoApprove)
			if cfg.Tools.AutoApproveCommands {
				autoApprove = func(string) bool { return true }
			}
			return &toolproto.Base{
				Exec:        &execcommand.Tool{Whitelist: whitelist, Timeout: 2 * time.Minute},
				AutoApprove: autoApprove,
				Latency:     metrics,
			}, nil
		case "mcp_call":
			return &toolproto.Base{Exec: &mcptool.Tool{Manager: mcpManager}, AutoApprove: cfg.Tools.AutoApprove, Latency: metrics}, nil
		case "http":
			return &toolproto.Base{Exec: &httptool.Tool{}, AutoApprove: cfg.Tools.AutoApprove, Latency: metrics}, nil
		case "read_file":
			return &toolproto.Base{
				Exec:        &fs.ReadTool{Resolver: fs.Resolver{Root: cfg.Tools.Workspace}, Cache: fsCache},
				AutoApprove: cfg.Tools.AutoApprove,
				Latency:     metrics,
			}, nil
		case "edit_file":
			return &toolproto.Base{
				Exec:        &fs.EditTool{Resolver: fs.Resolver{Root: cfg.Tools.Workspace}, Cache: fsCache},
				AutoApprove: cfg.Tools.AutoApprove,
				Latency:     metrics,
			}, nil
		case "write_file":
			return &toolproto.Base{
				Exec:        files.NewWriteTool(files.Config{Workspace: cfg.Tools.Workspace}),
				AutoApprove: cfg.Tools.AutoApprove,
				Latency:     metrics,
			}, nil
		case "apply_patch":
			return &toolproto.Base{
				Exec:        files.NewApplyPatchTool(files.Config{Workspace: cfg.Tools.Workspace}),
				AutoApprove: cfg.Tools.AutoApprove,
				Latency:     metrics,
			}, nil
		default:
			return nil, fmt.Errorf("no factory registered for actor %q", name)
		}
	}
}
