package client

import (
	"maps"
	"sort"
	"sync"
)

// Container is a named piece of client state that directives may mutate.
type Container interface {
	// Merge shallow-merges patch; keys in patch overwrite existing keys.
	Merge(patch map[string]any)
	// Clear resets the container to its defaults.
	Clear()
	// Snapshot returns a copy of the current state.
	Snapshot() map[string]any
}

// MapContainer is a map-backed Container with fixed defaults.
type MapContainer struct {
	mu       sync.RWMutex
	defaults map[string]any
	state    map[string]any
}

// NewMapContainer returns a container whose state starts as, and clears to,
// a copy of defaults.
func NewMapContainer(defaults map[string]any) *MapContainer {
	c := &MapContainer{defaults: maps.Clone(defaults)}
	if c.defaults == nil {
		c.defaults = map[string]any{}
	}
	c.state = maps.Clone(c.defaults)
	return c
}

// Merge copies patch over the current state.
func (c *MapContainer) Merge(patch map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.state, patch)
}

// Clear restores the defaults.
func (c *MapContainer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = maps.Clone(c.defaults)
}

// Snapshot returns a copy of the current state.
func (c *MapContainer) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.state)
}

// Registry maps store names to containers. Containers are injected
// explicitly; the interpreter never reaches for ambient state.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]Container
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{containers: map[string]Container{}}
}

// Register binds name to c, replacing any previous binding.
func (r *Registry) Register(name string, c Container) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[name] = c
}

// Get returns the container bound to name.
func (r *Registry) Get(name string) (Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[name]
	return c, ok
}

// Names returns registered store names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.containers))
	for name := range r.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
