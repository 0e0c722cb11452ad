// Package watchdog implements the health watchdog (C10, spec.md §4.10):
// an out-of-band supervisor that snapshots each tracked agent's status
// history on a fixed tick and, when a target has shown no forward
// progress for too long, interrupts it and notifies its parent. Ticking
// is driven by robfig/cron the way the teacher's heartbeat runner drives
// its own interval loop, rather than a bare time.Ticker.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentgrid/agentgrid/internal/actorhost"
	"github.com/agentgrid/agentgrid/internal/bus"
	"github.com/agentgrid/agentgrid/internal/domainmsg"
	"github.com/agentgrid/agentgrid/internal/interagent"
	"github.com/agentgrid/agentgrid/internal/scope"
)

// snapshot is the last observed status for one tracked scope plus when it
// last changed, to detect a target stuck repeating the same status.
type snapshot struct {
	status    domainmsg.AgentStatus
	changedAt time.Time
	flagged   bool
}

// AgentCountObserver is given the number of tracked agents per status on
// every review tick, letting a metrics collector (internal/observability)
// build an "agent count by status" gauge without the watchdog importing
// it directly.
type AgentCountObserver interface {
	SetAgentCount(status string, n int)
}

// Watchdog tracks agent status history across the process and flags
// targets that appear stuck.
type Watchdog struct {
	b          *bus.Bus
	parentMap  *scope.ParentMap
	membership *scope.Membership
	logger     *slog.Logger
	staleAfter time.Duration
	counts     AgentCountObserver

	mu      sync.Mutex
	history map[scope.Scope]snapshot

	recv *bus.Receiver
	cr   *cron.Cron
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithStaleAfter overrides how long a target may hold the same status
// before being flagged. Default is 5 minutes.
func WithStaleAfter(d time.Duration) Option { return func(w *Watchdog) { w.staleAfter = d } }

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watchdog) { w.logger = l } }

// WithAgentCountObserver attaches a metrics collector notified with the
// per-status tracked-agent count on every review tick.
func WithAgentCountObserver(obs AgentCountObserver) Option {
	return func(w *Watchdog) { w.counts = obs }
}

// New builds a Watchdog over the process-wide bus and scope bookkeeping.
func New(b *bus.Bus, pm *scope.ParentMap, mem *scope.Membership, opts ...Option) *Watchdog {
	w := &Watchdog{
		b:          b,
		parentMap:  pm,
		membership: mem,
		logger:     slog.Default(),
		staleAfter: 5 * time.Minute,
		history:    make(map[scope.Scope]snapshot),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run subscribes to status updates and ticks a review pass every interval
// until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context, tickSpec string) error {
	w.recv = w.b.Subscribe()
	w.cr = cron.New()
	if _, err := w.cr.AddFunc(tickSpec, func() { w.review() }); err != nil {
		return err
	}
	w.cr.Start()
	defer w.cr.Stop()

	for {
		env, ok := w.recv.Recv(ctx)
		if !ok {
			return ctx.Err()
		}
		if env.MessageType == domainmsg.TypeAgentStatusUpdate {
			w.observe(env)
		}
	}
}

func (w *Watchdog) observe(env domainmsg.Envelope) {
	var upd domainmsg.AgentStatusUpdate
	if err := env.Unmarshal(&upd); err != nil {
		return
	}
	target := env.FromScope

	w.mu.Lock()
	defer w.mu.Unlock()
	prev, seen := w.history[target]
	if !seen || prev.status.Kind != upd.Status.Kind || prev.status.Reason != upd.Status.Reason {
		w.history[target] = snapshot{status: upd.Status, changedAt: time.Now()}
		return
	}
	// Same status as before: leave changedAt untouched so review() can
	// measure how long it has been stuck.
	prev.status = upd.Status
	w.history[target] = prev
}

// review is the cron tick body: any tracked target sitting past
// staleAfter without a Done status gets flagged for review exactly once
// per stuck episode; a target that reaches Done is considered healthy and
// is dropped from tracking.
func (w *Watchdog) review() {
	now := time.Now()
	w.mu.Lock()
	due := make([]scope.Scope, 0)
	counts := make(map[domainmsg.AgentStatusKind]int)
	for target, snap := range w.history {
		if snap.status.Kind == domainmsg.StatusDone {
			delete(w.history, target)
			_ = w.b.Publish(mustReport(target, true, "reached Done"))
			continue
		}
		counts[snap.status.Kind]++
		if !snap.flagged && now.Sub(snap.changedAt) >= w.staleAfter {
			snap.flagged = true
			w.history[target] = snap
			due = append(due, target)
		}
	}
	w.mu.Unlock()

	if w.counts != nil {
		for status, n := range counts {
			w.counts.SetAgentCount(string(status), n)
		}
	}

	for _, target := range due {
		w.flag(target)
	}
}

func (w *Watchdog) flag(target scope.Scope) {
	if !w.membership.Known(target) {
		return // no membership ever recorded for this scope: silently ignore
	}
	parent, hasParent := w.parentMap.Lookup(target)

	w.logger.Warn("watchdog: flagging stuck agent", "scope", target.String())
	cctx := &actorhost.Context{
		Deps:    actorhost.Deps{Bus: w.b, ParentMap: w.parentMap, Membership: w.membership, Logger: w.logger},
		Scope:   scope.ROOT,
		ActorID: "watchdog",
	}
	_ = interagent.Interrupt(cctx, "watchdog-interrupt-"+target.String(), target, "")
	if hasParent {
		_ = interagent.SendMessage(cctx, "watchdog-notify-"+target.String(), parent,
			"health watchdog: no forward progress observed, interrupted for review")
	}
	_ = w.b.Publish(mustReport(target, false, "stale status beyond threshold"))
}

func mustReport(target scope.Scope, normal bool, reason string) domainmsg.Envelope {
	env, err := domainmsg.New("watchdog-report-"+target.String(), "watchdog", target, domainmsg.TypeWatchdogReport, domainmsg.WatchdogReport{
		Target: target, Normal: normal, Reason: reason,
	})
	if err != nil {
		panic(err)
	}
	return env
}
