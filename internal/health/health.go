// Package health runs named subsystem probes for readiness reporting.
package health

import (
	"context"
	"sync"
)

// Status is one subsystem's probe result.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes a single subsystem.
type Checker func(ctx context.Context) Status

type entry struct {
	name  string
	check Checker
}

// Registry holds named checkers and runs them on demand, in registration
// order.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.entries = append(r.entries, entry{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every checker and reports the aggregate result alongside
// the per-subsystem statuses. The aggregate is healthy only when every
// subsystem is.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	entries := make([]entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(entries))
	for i, e := range entries {
		statuses[i] = e.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}
