// Package scope implements the hierarchical agent identifier model (C1):
// a process-wide scope space, parent linkage, and expected-membership
// bookkeeping that the spawner and bus consult to address envelopes.
package scope

import (
	"sync"

	"github.com/google/uuid"
)

// Scope is an opaque 128-bit identifier naming one agent instance. It is
// comparable for equality and usable as a map key.
type Scope uuid.UUID

// String renders the scope in its canonical UUID form.
func (s Scope) String() string {
	return uuid.UUID(s).String()
}

// IsZero reports whether s is the zero-value scope (never a valid agent).
func (s Scope) IsZero() bool {
	return s == Scope{}
}

// ROOT identifies the top-level agent. It is a fixed, well-known value so
// every process in the fleet agrees on what "root" means without needing
// a handshake.
var ROOT = Scope(uuid.MustParse("00000000-0000-0000-0000-000000000001"))

// New allocates a fresh random scope.
func New() Scope {
	return Scope(uuid.New())
}

// Parse decodes a scope's canonical UUID string form, as produced by
// String. Tools that accept a target scope as a string argument (e.g.
// send_message) use this to validate and convert caller input.
func Parse(s string) (Scope, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Scope{}, err
	}
	return Scope(id), nil
}

// ParentMap is a process-wide mapping from a scope to its optional parent.
// Entries are written once at spawn time and never mutated thereafter;
// concurrent reads are frequent, writes are rare, so a single mutex
// suffices (see spec.md §4.1).
type ParentMap struct {
	mu      sync.RWMutex
	parents map[Scope]Scope
	hasOne  map[Scope]bool
}

// NewParentMap creates an empty parent map.
func NewParentMap() *ParentMap {
	return &ParentMap{
		parents: make(map[Scope]Scope),
		hasOne:  make(map[Scope]bool),
	}
}

// Insert records child's parent. It must be called at most once per child;
// calling it again for the same child is a programmer error and panics,
// since the contract guarantees parent linkage never changes after spawn.
func (m *ParentMap) Insert(child Scope, parent Scope, hasParent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.parents[child]; exists {
		panic("scope: parent already recorded for " + child.String())
	}
	m.parents[child] = parent
	m.hasOne[child] = hasParent
}

// Lookup returns child's parent and whether one is recorded. A zero-or-one
// hop; callers walk the chain manually for full ancestry.
func (m *ParentMap) Lookup(child Scope) (parent Scope, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasOne[child] {
		return Scope{}, false
	}
	return m.parents[child], true
}

// Ancestors returns the chain of ancestors from immediate parent to root,
// stopping at the first scope with no recorded parent.
func (m *ParentMap) Ancestors(child Scope) []Scope {
	var chain []Scope
	cur := child
	for {
		p, ok := m.Lookup(cur)
		if !ok {
			return chain
		}
		chain = append(chain, p)
		cur = p
	}
}

// Membership tracks, per scope, the set of actor-instance ids expected to
// be alive there. It is written once at spawn and never updated by
// individual actor death — it records *expected* membership, not live
// membership (spec.md §3).
type Membership struct {
	mu      sync.RWMutex
	members map[Scope]map[string]struct{}
}

// NewMembership creates an empty membership table.
func NewMembership() *Membership {
	return &Membership{members: make(map[Scope]map[string]struct{})}
}

// Set records the actor-instance ids expected to live in scope.
func (m *Membership) Set(s Scope, actorIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{}, len(actorIDs))
	for _, id := range actorIDs {
		set[id] = struct{}{}
	}
	m.members[s] = set
}

// Members returns the expected actor-instance ids for scope, if any.
func (m *Membership) Members(s Scope) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.members[s]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Has reports whether actorID is an expected member of scope.
func (m *Membership) Has(s Scope, actorID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[s][actorID]
	return ok
}

// Known reports whether scope has ever had membership recorded — used to
// silently ignore envelopes addressed to a scope that never existed
// (spec.md §4.9). Membership is never removed, so a scope whose actors
// have exited stays known.
func (m *Membership) Known(s Scope) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[s]
	return ok
}
