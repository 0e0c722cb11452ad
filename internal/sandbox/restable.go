// Package sandbox implements the sandboxed half of the Actor Host (C3,
// spec.md §4.3): the fixed host-capability ABI a WebAssembly-component
// guest actor sees (logger, host-info, messaging, agent, command, http),
// and the generational resource table (spec.md §9, "Resource handles
// inside a sandbox") that defends against a guest aliasing a mutable
// object through two handles. Grounded on the teacher's
// internal/tools/sandbox executor/pool split: a resolved "mode" decides
// whether an actor sandboxes at all (modes.go here), and a pooled runtime
// backend actually executes the guest (daytona.go/firecracker/*).
package sandbox

import (
	"errors"
	"sync"
)

// ErrProtocolViolation is returned when a guest presents a stale or
// already-consumed Handle to a builder call — spec.md §9: "returning the
// same handle is a protocol violation that the host rejects."
var ErrProtocolViolation = errors.New("sandbox: protocol violation: stale resource handle")

// Handle identifies one live entry in a ResourceTable. Index addresses a
// slot; Gen must match the slot's current generation for the handle to be
// valid. Every builder call that "consumes and reproduces" a handle bumps
// the slot's generation, so the handle the guest held before the call can
// never be presented again.
type Handle struct {
	Index uint32
	Gen   uint32
}

type slot struct {
	gen    uint32
	object any
	live   bool
}

// ResourceTable is a per-actor map from Handle to host-owned object (a
// command builder, an http builder, their in-flight results). Not safe
// for use across actors — one table per sandboxed actor instance.
type ResourceTable struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
}

// NewResourceTable returns an empty table.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{}
}

// Insert allocates a fresh handle for object, reusing a freed slot's index
// with a bumped generation when one is available.
func (t *ResourceTable) Insert(object any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[idx].object = object
		t.slots[idx].live = true
		return Handle{Index: idx, Gen: t.slots[idx].gen}
	}

	t.slots = append(t.slots, slot{gen: 0, object: object, live: true})
	return Handle{Index: uint32(len(t.slots) - 1), Gen: 0}
}

// Get resolves h to its owned object. Returns ErrProtocolViolation if h is
// out of range, stale (wrong generation), or already consumed.
func (t *ResourceTable) Get(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(h)
}

func (t *ResourceTable) get(h Handle) (any, error) {
	if int(h.Index) >= len(t.slots) {
		return nil, ErrProtocolViolation
	}
	s := &t.slots[h.Index]
	if !s.live || s.gen != h.Gen {
		return nil, ErrProtocolViolation
	}
	return s.object, nil
}

// Replace consumes h (invalidating it) and installs newObject as a fresh
// handle at the same index with an incremented generation — the
// "builder calls consume their input handle and yield a fresh handle"
// rule from spec.md §4.3/§9.
func (t *ResourceTable) Replace(h Handle, newObject any) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.get(h); err != nil {
		return Handle{}, err
	}
	s := &t.slots[h.Index]
	s.gen++
	s.object = newObject
	return Handle{Index: h.Index, Gen: s.gen}, nil
}

// Consume invalidates h without installing a replacement (e.g. after a
// terminal builder call like run()/send() that returns a plain result,
// not a new handle).
func (t *ResourceTable) Consume(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.get(h); err != nil {
		return err
	}
	s := &t.slots[h.Index]
	s.gen++
	s.object = nil
	s.live = false
	t.free = append(t.free, h.Index)
	return nil
}
