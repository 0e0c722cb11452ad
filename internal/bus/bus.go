// Package bus implements the process-wide publish/subscribe message bus
// (C2): cooperative, single-process, lossy-under-pressure fan-out with no
// scope enforcement — filtering is left to subscribers, per spec.md §4.2.
package bus

import (
	"log/slog"
	"sync"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// DefaultCapacity is the bounded FIFO depth per receiver (spec.md §4.2:
// "approximately 1024 envelopes").
const DefaultCapacity = 1024

// DropObserver is notified whenever Publish has to discard a receiver's
// oldest undelivered envelope to make room for a new one, so a metrics
// collector (internal/observability) can count overflow without the bus
// importing it directly.
type DropObserver interface {
	BusDrop(messageType string)
}

// Bus fans out published envelopes to every current subscriber. Publish
// never blocks: a receiver whose queue is full has its oldest undelivered
// envelope dropped to make room, and the drop is logged.
type Bus struct {
	mu        sync.RWMutex
	receivers map[*Receiver]struct{}
	capacity  int
	closed    bool
	logger    *slog.Logger
	drops     DropObserver
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithCapacity overrides the default per-receiver queue depth.
func WithCapacity(n int) Option {
	return func(b *Bus) { b.capacity = n }
}

// WithLogger attaches a structured logger for overflow/teardown events.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithDropObserver attaches a metrics collector notified on every
// receiver-queue overflow.
func WithDropObserver(obs DropObserver) Option {
	return func(b *Bus) { b.drops = obs }
}

// New creates a bus ready to accept subscribers and publications.
func New(opts ...Option) *Bus {
	b := &Bus{
		receivers: make(map[*Receiver]struct{}),
		capacity:  DefaultCapacity,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ErrClosed is returned by Publish once the bus has been torn down.
type ErrClosed struct{}

func (ErrClosed) Error() string { return "bus: closed" }

// Publish fans envelope out to every current subscriber. It is
// non-blocking: overflowing receivers drop their oldest undelivered
// envelope, and each drop is logged and reported to the DropObserver. Returns ErrClosed if the bus has been shut down
// (spec.md §7 BusError — "treated as process exiting").
func (b *Bus) Publish(env domainmsg.Envelope) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed{}
	}
	// Snapshot receivers under the read lock, then deliver outside it so a
	// slow subscriber's internal lock contention never blocks Subscribe.
	targets := make([]*Receiver, 0, len(b.receivers))
	for r := range b.receivers {
		targets = append(targets, r)
	}
	b.mu.RUnlock()

	for _, r := range targets {
		if dropped := r.deliver(env); dropped {
			b.logger.Warn("bus: receiver queue overflow, oldest envelope dropped",
				"message_type", env.MessageType, "from_scope", env.FromScope.String())
			if b.drops != nil {
				b.drops.BusDrop(env.MessageType)
			}
		}
	}
	return nil
}

// Subscribe returns a new bounded FIFO receiver that begins seeing
// envelopes published after this call.
func (b *Bus) Subscribe() *Receiver {
	return b.SubscribeLabeled("")
}

// SubscribeLabeled is Subscribe plus a label used only for the
// bus-queue-depth gauge (internal/observability): spawner.Spawn labels an
// actor's receiver with its actor name so depth can be attributed to the
// actor that owns it.
func (b *Bus) SubscribeLabeled(label string) *Receiver {
	r := newReceiver(b.capacity, label)
	b.mu.Lock()
	b.receivers[r] = struct{}{}
	b.mu.Unlock()
	return r
}

// QueueDepths reports the current buffered length of every live receiver,
// keyed by its subscribe-time label (receivers sharing a label, or
// unlabeled, are summed together). Meant to be polled on an interval by a
// metrics collector, not on the envelope-delivery hot path.
func (b *Bus) QueueDepths() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	depths := make(map[string]int, len(b.receivers))
	for r := range b.receivers {
		depths[r.label] += r.Len()
	}
	return depths
}

// Drop removes r from the subscriber set. Publishers never fail because a
// receiver was dropped.
func (b *Bus) Drop(r *Receiver) {
	b.mu.Lock()
	delete(b.receivers, r)
	b.mu.Unlock()
	r.close()
}

// Close tears the bus down; subsequent Publish calls return ErrClosed.
// Existing receivers keep whatever they have already buffered and can
// still be drained and dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// SubscriberCount reports the number of live receivers, for diagnostics
// and tests.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.receivers)
}
