// Package domainmsg defines the bus-level envelope and the domain message
// payloads carried inside it (spec.md §3). The bus itself never inspects
// payload contents; everything here is plain data, JSON-serializable, and
// immutable once published.
package domainmsg

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/agentgrid/agentgrid/internal/scope"
)

// Envelope is the only value type carried on the bus.
type Envelope struct {
	ID          string
	FromActorID string
	FromScope   scope.Scope
	MessageType string
	Payload     []byte
}

// New builds an envelope, marshaling payload to JSON. The returned
// envelope is immutable; callers must not mutate Payload afterwards.
func New(id, fromActorID string, fromScope scope.Scope, messageType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("domainmsg: marshal %s: %w", messageType, err)
	}
	return Envelope{
		ID:          id,
		FromActorID: fromActorID,
		FromScope:   fromScope,
		MessageType: messageType,
		Payload:     data,
	}, nil
}

// Unmarshal decodes the envelope payload into v.
func (e Envelope) Unmarshal(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// IDGenerator produces correlation ids encoding a parent→child chain as
// "outer:inner" tokens, per spec.md §3. A fresh root token is minted from
// a monotonic per-generator counter combined with the scope it originates
// in, so ids from one generator are unique without a central allocator.
type IDGenerator struct {
	counter uint64
	scope   scope.Scope
}

// NewIDGenerator returns a generator that mints root-level ids scoped to s.
func NewIDGenerator(s scope.Scope) *IDGenerator {
	return &IDGenerator{scope: s}
}

// Root mints a new top-level correlation id.
func (g *IDGenerator) Root() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%d", g.scope.String(), n)
}

// Child derives a child id from a parent id, appending an ":inner" token.
func Child(parentID string, inner string) string {
	return parentID + ":" + inner
}
