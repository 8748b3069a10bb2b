// Package registry maps stable plugin names to adapter and formatter
// factories. It is populated once at process start by explicit registration
// and read-only thereafter; the orchestrator's Resolve calls are the only
// lookup path, so plugins never reference each other directly.
package registry

import (
	"sort"
	"sync"

	"github.com/43ravens/ECget/internal/domain"
)

// Registry is the process-wide plugin table.
type Registry struct {
	mu         sync.RWMutex
	adapters   map[string]domain.AdapterFactory
	formatters map[string]domain.FormatterFactory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		adapters:   make(map[string]domain.AdapterFactory),
		formatters: make(map[string]domain.FormatterFactory),
	}
}

// RegisterAdapter adds a source adapter factory under name. Registering a
// name twice fails with *DuplicateNameError; there is no overwrite path, so
// a plugin can never be silently shadowed.
func (r *Registry) RegisterAdapter(name string, factory domain.AdapterFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; exists {
		return &domain.DuplicateNameError{Kind: domain.KindAdapter, Name: name}
	}
	r.adapters[name] = factory
	return nil
}

// RegisterFormatter adds a formatter factory under name.
func (r *Registry) RegisterFormatter(name string, factory domain.FormatterFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.formatters[name]; exists {
		return &domain.DuplicateNameError{Kind: domain.KindFormatter, Name: name}
	}
	r.formatters[name] = factory
	return nil
}

// Adapter resolves a source adapter factory by name.
func (r *Registry) Adapter(name string) (domain.AdapterFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.adapters[name]
	if !ok {
		return nil, &domain.UnknownPluginError{Kind: domain.KindAdapter, Name: name}
	}
	return factory, nil
}

// Formatter resolves a formatter factory by name.
func (r *Registry) Formatter(name string) (domain.FormatterFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.formatters[name]
	if !ok {
		return nil, &domain.UnknownPluginError{Kind: domain.KindFormatter, Name: name}
	}
	return factory, nil
}

// AdapterNames returns the registered source adapter names, for CLI help.
func (r *Registry) AdapterNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.adapters)
}

// FormatterNames returns the registered formatter names, for CLI help.
func (r *Registry) FormatterNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.formatters)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
