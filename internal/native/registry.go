package native

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// BackendAuto selects a backend from the source path.
const BackendAuto = "auto"

// Registry maps backend names to factories.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	extensions map[string]string
	fallback   string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:  make(map[string]Factory),
		extensions: make(map[string]string),
	}
}

var defaultRegistry = NewRegistry()

// Register adds a backend to the process-wide registry. Backends call it from
// their init function.
func Register(name string, factory Factory, exts ...string) {
	defaultRegistry.Register(name, factory, exts...)
}

// Backends lists the process-wide registry.
func Backends() []string {
	return defaultRegistry.Backends()
}

// Lookup finds a backend in the process-wide registry.
func Lookup(name string) (Factory, bool) {
	return defaultRegistry.Lookup(name)
}

// Select resolves a backend from the process-wide registry.
func Select(path, name string) (string, Factory, error) {
	return defaultRegistry.Select(path, name)
}

// Register makes a backend available under name. exts lists file extensions
// (with leading dot) the backend claims in auto mode. The first backend
// registered with no extensions becomes the auto-mode fallback.
//
// Register panics on a duplicate name, like database/sql.Register.
func (r *Registry) Register(name string, factory Factory, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if factory == nil {
		panic("native: Register factory is nil")
	}
	if _, dup := r.factories[name]; dup {
		panic("native: Register called twice for backend " + name)
	}

	r.factories[name] = factory
	for _, ext := range exts {
		r.extensions[strings.ToLower(ext)] = name
	}
	if len(exts) == 0 && r.fallback == "" {
		r.fallback = name
	}
}

// Backends returns the registered backend names, sorted.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Select resolves the factory for path. name is a registered backend or
// BackendAuto (empty also means auto).
func (r *Registry) Select(path, name string) (string, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" || name == BackendAuto {
		ext := strings.ToLower(filepath.Ext(path))
		if byExt, ok := r.extensions[ext]; ok {
			name = byExt
		} else if r.fallback != "" {
			name = r.fallback
		} else {
			return "", nil, fmt.Errorf("native: no backend claims %q and no fallback is registered", ext)
		}
	}

	factory, ok := r.factories[name]
	if !ok {
		return "", nil, fmt.Errorf("native: unknown backend %q (registered: %s)",
			name, strings.Join(r.namesLocked(), ", "))
	}
	return name, factory, nil
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
