package marketplace

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry resolves marketplace names to compiled pattern sets. Configured
// overrides are layered over the built-in definitions; an override for an
// unknown name defines a new marketplace.
type Registry struct {
	mu        sync.Mutex
	overrides map[string]Definition
	compiled  map[string]*PatternSet
}

// NewRegistry creates a registry with optional overrides keyed by name.
func NewRegistry(overrides map[string]Definition) *Registry {
	r := &Registry{
		overrides: make(map[string]Definition, len(overrides)),
		compiled:  make(map[string]*PatternSet),
	}
	for name, def := range overrides {
		r.overrides[strings.ToLower(name)] = def
	}
	return r
}

// Definition returns the effective definition for name.
func (r *Registry) Definition(name string) (Definition, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	base, builtin := Builtin(name)
	over, overridden := r.overrides[name]

	switch {
	case builtin && overridden:
		return Merge(base, over), nil
	case builtin:
		return base, nil
	case overridden:
		if over.Name == "" {
			over.Name = name
		}
		return over, nil
	default:
		return Definition{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknown, name, strings.Join(r.Names(), ", "))
	}
}

// Get returns the compiled pattern set for name.
func (r *Registry) Get(name string) (*PatternSet, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.Lock()
	defer r.mu.Unlock()
	if ps, ok := r.compiled[key]; ok {
		return ps, nil
	}

	def, err := r.Definition(key)
	if err != nil {
		return nil, err
	}
	ps, err := Compile(def)
	if err != nil {
		return nil, err
	}
	r.compiled[key] = ps
	return ps, nil
}

// Names returns every resolvable marketplace name, sorted.
func (r *Registry) Names() []string {
	seen := make(map[string]struct{})
	for _, n := range BuiltinNames() {
		seen[n] = struct{}{}
	}
	for n := range r.overrides {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
