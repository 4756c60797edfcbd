package keeper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sketchlab/streamsketch/pkg/sketches"
)

// Registry maps names to live keepers. Membership changes are rare and go
// through a mutex; per-sketch traffic stays on each keeper's channel.
type Registry struct {
	mu      sync.RWMutex
	keepers map[string]*Keeper
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keepers: make(map[string]*Keeper)}
}

// Create starts a keeper for initial under name. Names are unique.
func (r *Registry) Create(name string, initial sketches.Sketch) (*Keeper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keepers[name]; exists {
		return nil, fmt.Errorf("sketch %q already exists", name)
	}
	k := New(name, initial)
	r.keepers[name] = k
	return k, nil
}

// Get returns the keeper registered under name, if any.
func (r *Registry) Get(name string) (*Keeper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keepers[name]
	return k, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.keepers))
	for name := range r.keepers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop closes and removes the keeper under name.
func (r *Registry) Drop(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keepers[name]
	if !ok {
		return false
	}
	k.Close()
	delete(r.keepers, name)
	return true
}

// CloseAll closes every keeper, leaving the registry empty.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, k := range r.keepers {
		k.Close()
		delete(r.keepers, name)
	}
}
