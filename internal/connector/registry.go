package connector

import (
	"fmt"
	"time"
)

// Entry is the static declaration of one connector: what a call costs,
// how much its data is trusted, which phase it runs in, and its limits.
// The planner consults entries; the orchestrator enforces them.
type Entry struct {
	ID          string
	CostPerCall float64
	TrustLevel  float64
	Phase       int
	Timeout     time.Duration
	// RatePerSec and Burst configure the per-connector rate window.
	RatePerSec float64
	Burst      int
}

// Registry holds registered connectors in a fixed registration order.
// The order is the deterministic tie-breaker everywhere iteration order
// would otherwise leak in.
type Registry struct {
	order      []string
	entries    map[string]Entry
	connectors map[string]Connector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:    make(map[string]Entry),
		connectors: make(map[string]Connector),
	}
}

// Register adds a connector with its static entry. Registering the same
// ID twice is a programming error.
func (r *Registry) Register(entry Entry, c Connector) error {
	if entry.ID == "" || entry.ID != c.ID() {
		return fmt.Errorf("registry: entry ID %q does not match connector %q", entry.ID, c.ID())
	}
	if _, ok := r.entries[entry.ID]; ok {
		return fmt.Errorf("registry: duplicate connector %q", entry.ID)
	}
	r.order = append(r.order, entry.ID)
	r.entries[entry.ID] = entry
	r.connectors[entry.ID] = c
	return nil
}

// IDs returns connector IDs in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Entry returns the static entry for a connector ID.
func (r *Registry) Entry(id string) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Connector returns the connector for an ID.
func (r *Registry) Connector(id string) (Connector, bool) {
	c, ok := r.connectors[id]
	return c, ok
}

// RegistryOrder returns the position of id in registration order, used as
// the fixed tie-breaker when priorities are equal.
func (r *Registry) RegistryOrder(id string) int {
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return len(r.order)
}
