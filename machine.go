package vmcaps

import "go.uber.org/zap"

// Machine ties a capability registry to one virtual machine instance: its
// state, its machine-class baseline, and the compatibility ceiling of its
// guest CPU. All methods run synchronously on the thread driving machine
// construction or migration control; no internal locking is performed.
type Machine struct {
	reg      *Registry
	st       *State
	baseline Set
	compat   CompatLevel
	log      *zap.Logger

	constructed bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithBaseline sets the machine-class baseline defaults. Without it every
// capability defaults to off.
func WithBaseline(baseline Set) Option {
	return func(m *Machine) {
		m.baseline = baseline.Clone()
	}
}

// WithCompat sets the guest CPU compatibility ceiling, as negotiated by the
// CPU layer. Defaults to [CompatNone].
func WithCompat(c CompatLevel) Option {
	return func(m *Machine) {
		m.compat = c
	}
}

// WithLogger sets the logger used for non-blocking diagnostics such as
// migration downgrade warnings. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// NewMachine creates a machine around the given registry.
func NewMachine(reg *Registry, opts ...Option) *Machine {
	m := &Machine{
		reg:      reg,
		st:       NewState(reg),
		baseline: NewSet(reg.Len()),
		compat:   CompatNone,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if len(m.baseline) != reg.Len() {
		panic("vmcaps: baseline size does not match registry")
	}
	return m
}

// Registry returns the machine's capability table.
func (m *Machine) Registry() *Registry {
	return m.reg
}

// State exposes the machine's capability state. The caller must not mutate
// it; it is exported for the embedding serialization layer and for tests.
func (m *Machine) State() *State {
	return m.st
}

// SetCapability records an explicit operator override for a capability,
// identified by its external name. It corresponds to setting the machine's
// "cap-<name>" property and is only valid before the first reset; later
// calls are rejected since the applied hardware state would silently
// diverge. Errors are *[PropertyError] and recoverable for the caller.
func (m *Machine) SetCapability(name string, l Level) error {
	d, ok := m.reg.LookupName(name)
	if !ok {
		return &PropertyError{Capability: name, Reason: "unknown capability"}
	}
	if m.constructed {
		return &PropertyError{Capability: name, Reason: "machine already constructed"}
	}
	m.st.Overridden[d.Cap] = true
	m.st.Effective[d.Cap] = l
	return nil
}

// Capability returns the effective level of a capability by name.
func (m *Machine) Capability(name string) (Level, error) {
	d, ok := m.reg.LookupName(name)
	if !ok {
		return 0, &PropertyError{Capability: name, Reason: "unknown capability"}
	}
	return m.st.Effective[d.Cap], nil
}

// Reset computes the actual capability set the machine runs with and applies
// it to the virtual hardware. It recomputes the defaults, copies them into
// the effective set for every capability without an explicit override, then
// invokes every apply callback in registry order.
//
// A non-nil return is a *[ConfigError] from an apply callback and is fatal:
// the embedding machine construction must abort. Given unchanged overrides
// and CPU compatibility, Reset is idempotent.
func (m *Machine) Reset() error {
	defaults := ComputeDefaults(m.reg, m.baseline, m.compat)

	for i := range defaults {
		m.st.Defaults[i] = defaults[i]
		if !m.st.Overridden[i] {
			m.st.Effective[i] = defaults[i]
		}
	}

	for i := 0; i < m.reg.Len(); i++ {
		d := m.reg.Lookup(Capability(i))
		if err := d.Apply(m.st.Effective[i]); err != nil {
			return err
		}
		m.log.Debug("capability applied",
			zap.String("capability", d.Name),
			zap.Stringer("level", m.st.Effective[i]))
	}

	m.constructed = true
	return nil
}
