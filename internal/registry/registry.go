// Package registry implements the declarative actor catalog and the
// dependency-closure algorithm the spawner runs over it (C4, spec.md §4.4).
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/agentgrid/agentgrid/internal/errs"
)

// Descriptor declares one actor type: its uniqueness name, whether every
// new scope receives it automatically, and which other actors must be
// present alongside it in any scope.
type Descriptor struct {
	Name         string
	AutoSpawn    bool
	RequiredWith []string
	// Factory is opaque to the registry and is not read by the registry or
	// the spawner; spawner.Spawner.Factory builds actor instances. Kept as
	// `any` so registry has no dependency on actorhost.
	Factory any
}

// Registry is the process-wide catalog of known actor types.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

// Register adds or replaces a descriptor. Registering the same name twice
// is allowed (later registration wins) so tests and plugins can override
// the default catalog.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.Name] = d
}

// Lookup returns the descriptor for name, if registered.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[name]
	return d, ok
}

// autoSpawnNames returns every registered actor whose AutoSpawn is true,
// in a deterministic (sorted) order.
func (r *Registry) autoSpawnNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, d := range r.byID {
		if d.AutoSpawn {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ResolvedActor is one entry in a computed closure, carrying why it ended
// up in the set (SPEC_FULL.md §3 supplemental provenance).
type ResolvedActor struct {
	Name   string
	Reason string // requested | auto_spawn | required_with:<parent>
}

// Closure computes the transitive closure of requested ∪ auto_spawn under
// required_with, deduplicated, per spec.md §4.4:
//  1. U = auto_spawn actors ∪ requested
//  2. repeatedly add required_with of every member of U until fixpoint
//  3. deduplicate; warn (but continue) on a requested name not found, and
//     when a name is added again for a different reason (say, auto_spawn
//     and requested). A name repeated for the same reason, or required by
//     several members, is dropped without a warning.
//
// Returns an error only if a name in the closure is not registered at all
// (NonExistentActor), matching the spawner's abort-with-no-partial-scope
// contract (spec.md §4.5).
func (r *Registry) Closure(requested []string, logger *slog.Logger) ([]ResolvedActor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	order := []string{}
	reason := map[string]string{}
	seen := map[string]bool{}

	add := func(name, why string) {
		if seen[name] {
			if reason[name] != why {
				logger.Warn("registry: actor requested via multiple paths", "actor", name, "first_reason", reason[name], "also", why)
			}
			return
		}
		seen[name] = true
		reason[name] = why
		order = append(order, name)
	}

	for _, name := range r.autoSpawnNames() {
		add(name, "auto_spawn")
	}
	for _, name := range requested {
		if _, ok := r.Lookup(name); !ok {
			logger.Warn("registry: requested actor not found", "actor", name)
		}
		add(name, "requested")
	}

	// Fixpoint over required_with. Re-scan the accumulating `order` slice;
	// since add() is idempotent on `seen`, this terminates once a full pass
	// adds nothing new.
	for {
		added := false
		for _, name := range append([]string(nil), order...) {
			d, ok := r.Lookup(name)
			if !ok {
				continue
			}
			for _, req := range d.RequiredWith {
				if !seen[req] {
					add(req, "required_with:"+name)
					added = true
				}
			}
		}
		if !added {
			break
		}
	}

	result := make([]ResolvedActor, 0, len(order))
	for _, name := range order {
		if _, ok := r.Lookup(name); !ok {
			return nil, &errs.NonExistentActor{Name: name}
		}
		result = append(result, ResolvedActor{Name: name, Reason: reason[name]})
	}
	return result, nil
}
