package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/tagforge/internal/types"
)

// ComponentRegistry manages all discovered template units
type ComponentRegistry struct {
	components map[string]*types.ComponentInfo
	mutex      sync.RWMutex
	watchers   []chan types.ComponentEvent
}

// NewComponentRegistry creates a new component registry
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]*types.ComponentInfo),
		watchers:   make([]chan types.ComponentEvent, 0),
	}
}

// Register adds or updates a component in the registry. Re-registering an
// unchanged component (same hash) does not notify watchers.
func (r *ComponentRegistry) Register(component *types.ComponentInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := types.EventTypeAdded
	if existing, exists := r.components[component.Name]; exists {
		if existing.Hash == component.Hash && existing.Hash != "" {
			r.components[component.Name] = component

			return
		}
		eventType = types.EventTypeUpdated
	}

	r.components[component.Name] = component
	r.notify(eventType, component)
}

// Get retrieves a component by name
func (r *ComponentRegistry) Get(name string) (*types.ComponentInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	component, exists := r.components[name]

	return component, exists
}

// GetAll returns all registered components sorted by name
func (r *ComponentRegistry) GetAll() []*types.ComponentInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*types.ComponentInfo, 0, len(r.components))
	for _, component := range r.components {
		result = append(result, component)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result
}

// Names returns the sorted names of every registered component.
func (r *ComponentRegistry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Remove removes a component from the registry
func (r *ComponentRegistry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	component, exists := r.components[name]
	if !exists {
		return
	}

	delete(r.components, name)
	r.notify(types.EventTypeRemoved, component)
}

// Retain removes every component whose name is not in keep.
func (r *ComponentRegistry) Retain(keep map[string]bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for name, component := range r.components {
		if !keep[name] {
			delete(r.components, name)
			r.notify(types.EventTypeRemoved, component)
		}
	}
}

// notify must be called with the mutex held.
func (r *ComponentRegistry) notify(eventType types.EventType, component *types.ComponentInfo) {
	event := types.ComponentEvent{
		Type:      eventType,
		Component: component,
		Timestamp: time.Now(),
	}

	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Watch returns a channel that receives component events
func (r *ComponentRegistry) Watch() <-chan types.ComponentEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan types.ComponentEvent, 100)
	r.watchers = append(r.watchers, ch)

	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *ComponentRegistry) UnWatch(ch <-chan types.ComponentEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)

			break
		}
	}
}

// Count returns the number of registered components
func (r *ComponentRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.components)
}
