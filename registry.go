package vmcaps

import "fmt"

// ApplyFunc configures the virtual hardware for one capability level.
// Implementations are supplied by the accelerator/backend layer.
//
// Requesting [LevelOff] must always succeed: live-disable is not required to
// take real effect, only to be accepted. Requesting any level above off must
// verify the active backend actually supports it and return a *[ConfigError]
// if not. ApplyFunc must be idempotent: applying the same level twice has no
// observable effect beyond the first call.
type ApplyFunc func(l Level) error

// Descriptor describes one capability. Descriptors are defined once, at
// process start, and never change afterwards.
type Descriptor struct {
	// Cap is the capability's registry ordinal.
	Cap Capability
	// Name is the stable external name, used for the configuration
	// property ("cap-<name>") and on the migration wire.
	Name string
	// Description is the human-readable property description.
	Description string
	// Threshold is the minimum CPU compatibility ceiling required to
	// offer the capability at all. Below it the default is forced off.
	Threshold CompatLevel
	// Apply configures the emulated hardware with a level.
	Apply ApplyFunc
}

// Registry is the immutable capability table. Once built it is never
// mutated, so it may be read concurrently from any goroutine without
// synchronization.
type Registry struct {
	descs  []Descriptor
	byName map[string]Capability
}

// NewRegistry builds a registry from descriptors. Ordinals must cover
// exactly [0, len(descs)) with no duplicates, names must be unique and
// non-empty, and every descriptor needs an Apply callback.
func NewRegistry(descs []Descriptor) (*Registry, error) {
	r := &Registry{
		descs:  make([]Descriptor, len(descs)),
		byName: make(map[string]Capability, len(descs)),
	}

	seen := make([]bool, len(descs))
	for _, d := range descs {
		if d.Cap < 0 || int(d.Cap) >= len(descs) {
			return nil, fmt.Errorf("capability %q: ordinal %d out of range [0,%d)", d.Name, d.Cap, len(descs))
		}
		if seen[d.Cap] {
			return nil, fmt.Errorf("capability %q: duplicate ordinal %d", d.Name, d.Cap)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("capability ordinal %d: empty name", d.Cap)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("capability %q: duplicate name", d.Name)
		}
		if d.Apply == nil {
			return nil, fmt.Errorf("capability %q: nil apply callback", d.Name)
		}
		seen[d.Cap] = true
		r.descs[d.Cap] = d
		r.byName[d.Name] = d.Cap
	}

	return r, nil
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.descs)
}

// Lookup returns the descriptor for an ordinal. It panics on an ordinal
// outside [0, Len()); valid ordinals never fail.
func (r *Registry) Lookup(c Capability) Descriptor {
	return r.descs[c]
}

// LookupName returns the descriptor carrying the given external name.
func (r *Registry) LookupName(name string) (Descriptor, bool) {
	c, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.descs[c], true
}

// Descriptors returns the capability table in registry order. The order is
// deterministic and stable across runs. The returned slice is a copy.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// Names returns the external capability names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.descs))
	for i, d := range r.descs {
		names[i] = d.Name
	}
	return names
}
