package llm

import (
	"fmt"
	"sync"
)

// ProviderInfo describes one registered provider for catalog listings.
type ProviderInfo struct {
	ID     ProviderID `json:"id"`
	Models []string   `json:"models"`
}

// Registry maps provider ids to adapters.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderID]Provider
	order     []ProviderID
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[ProviderID]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the adapter for p.ID().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
}

// Resolve returns the adapter serving (id, model). Unknown providers and
// unsupported models both yield ErrUnsupportedModel.
func (r *Registry) Resolve(id ProviderID, model string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[id]
	r.mu.RUnlock()

	if !ok {
		return nil, &ProviderError{Provider: id, Kind: ErrUnsupportedModel, Err: fmt.Errorf("provider %q is not configured", id)}
	}
	if !p.SupportsModel(model) {
		return nil, UnsupportedModel(id, model)
	}
	return p, nil
}

// Catalog lists registered providers in registration order.
func (r *Registry) Catalog() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderInfo, 0, len(r.order))
	for _, id := range r.order {
		models := r.providers[id].Models()
		if models == nil {
			models = []string{}
		}
		out = append(out, ProviderInfo{ID: id, Models: models})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
