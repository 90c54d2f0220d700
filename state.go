package vmcaps

// Set maps capability ordinals to levels. Its length always equals the
// registry size of the machine owning it.
type Set []Level

// NewSet returns a set of n capabilities, all off.
func NewSet(n int) Set {
	return make(Set, n)
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Equal reports whether two sets hold identical levels.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// State holds the per-machine capability data. A State is owned exclusively
// by its machine instance and is mutated only on the thread driving machine
// construction or migration control.
type State struct {
	// Defaults is recomputed by every reset from the machine-class
	// baseline and the CPU compatibility ceiling.
	Defaults Set
	// Effective is what the emulated hardware is actually configured
	// with. For any capability without an explicit override it equals
	// Defaults after a reset.
	Effective Set
	// Migration is transient: snapshot of Effective on the save side,
	// reconstruction target on the load side. It carries no meaning
	// outside an in-flight migration.
	Migration Set
	// Overridden marks capabilities the operator requested explicitly.
	// Flags persist for the machine's lifetime and are never cleared.
	Overridden []bool
}

// NewState returns a zeroed state sized for the registry.
func NewState(reg *Registry) *State {
	n := reg.Len()
	return &State{
		Defaults:   NewSet(n),
		Effective:  NewSet(n),
		Migration:  NewSet(n),
		Overridden: make([]bool, n),
	}
}

// Needed reports whether a capability must travel on the migration wire:
// only explicitly overridden capabilities whose effective level differs
// from the default are transmitted. Everything else stays off the wire and
// is reconstructed from the destination's own defaults.
func (st *State) Needed(c Capability) bool {
	return st.Overridden[c] && st.Effective[c] != st.Defaults[c]
}
