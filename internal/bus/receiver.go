package bus

import (
	"context"
	"sync"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Receiver is a private, bounded FIFO view onto the bus for one
// subscriber. It preserves publish order from any single publisher (FIFO
// per spec.md §5) but drops its oldest buffered envelope when full rather
// than blocking the publisher.
type Receiver struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []domainmsg.Envelope
	cap    int
	closed bool
	label  string
}

func newReceiver(capacity int, label string) *Receiver {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Receiver{cap: capacity, label: label}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// deliver appends env to the queue, dropping the oldest entry and
// reporting true if the queue was already at capacity.
func (r *Receiver) deliver(env domainmsg.Envelope) (dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if len(r.queue) >= r.cap {
		r.queue = r.queue[1:]
		dropped = true
	}
	r.queue = append(r.queue, env)
	r.cond.Signal()
	return dropped
}

func (r *Receiver) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
}

// Recv blocks until an envelope is available, ctx is cancelled, or the
// receiver has been dropped. ok is false when ctx is cancelled while the
// queue is empty, or when the receiver is empty and closed.
func (r *Receiver) Recv(ctx context.Context) (domainmsg.Envelope, bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.cond.Broadcast()
		case <-done:
		}
	}()
	defer close(done)

	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.queue) == 0 {
		if r.closed {
			return domainmsg.Envelope{}, false
		}
		if ctx.Err() != nil {
			return domainmsg.Envelope{}, false
		}
		r.cond.Wait()
	}
	env := r.queue[0]
	r.queue = r.queue[1:]
	return env, true
}

// TryRecv returns immediately with ok=false if nothing is queued.
func (r *Receiver) TryRecv() (domainmsg.Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return domainmsg.Envelope{}, false
	}
	env := r.queue[0]
	r.queue = r.queue[1:]
	return env, true
}

// Len reports the number of buffered envelopes, for diagnostics.
func (r *Receiver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
