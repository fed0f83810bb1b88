package venue

import (
	"fmt"
	"sync"
)

// Registration pairs an adapter with its declared capability bundle.
type Registration struct {
	Adapter      Adapter
	Capabilities CapabilitySet
}

// Registry is the read-mostly set of registered venue adapters. The
// Ticker Registry (§4.2) and the Fetcher pool (§4.3) both consult it by
// venue_id; it does not itself hold ticker or quote state.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Registration
	order []string
}

// NewRegistry creates an empty venue registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Registration)}
}

// Register adds or replaces a venue's adapter and capability bundle.
func (r *Registry) Register(a Adapter, caps CapabilitySet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.Name()]; !exists {
		r.order = append(r.order, a.Name())
	}
	r.byID[a.Name()] = Registration{Adapter: a, Capabilities: caps}
}

// Get returns the registration for venueID.
func (r *Registry) Get(venueID string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[venueID]
	return reg, ok
}

// All returns every registration in registration order.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Shortable reports whether venueID is registered and declares CapShortable.
func (r *Registry) Shortable(venueID string) bool {
	reg, ok := r.Get(venueID)
	return ok && reg.Capabilities.Has(CapShortable)
}

// RequireCapability returns ErrCapabilityUnsupported wrapped with the venue
// id if venueID lacks cap, nil otherwise. Adapter method implementations
// call this first so every unsupported-operation error carries the same
// shape regardless of which adapter raised it.
func RequireCapability(venueID string, caps CapabilitySet, cap Capability) error {
	if !caps.Has(cap) {
		return fmt.Errorf("%s: %w (%s)", venueID, ErrCapabilityUnsupported, cap)
	}
	return nil
}
