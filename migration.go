package vmcaps

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// migrationVersion is the capability stream format version.
const migrationVersion = 1

// PreSave snapshots the effective set into the migration set. The migration
// controller calls it on the source right before serializing machine state.
// What actually travels is decided by the needed predicate (see
// [State.Needed] and [Machine.EncodeMigration]), not by this snapshot.
func (m *Machine) PreSave() {
	m.st.Migration = m.st.Effective.Clone()
}

// PreLoad primes the migration set with the destination's own defaults, so
// that capabilities the source never sent end up equal to those defaults
// rather than stale data. The migration controller calls it on the
// destination before deserializing the incoming stream.
func (m *Machine) PreLoad() {
	m.st.Migration = m.st.Defaults.Clone()
}

// EncodeMigration serializes the capability records for the wire. Call it
// after [Machine.PreSave]. Per transmitted capability the stream carries one
// record: the external name and a single byte holding the level ordinal.
// Only capabilities satisfying the needed predicate are included, keeping
// unmodified capabilities off the wire entirely.
func (m *Machine) EncodeMigration() []byte {
	buf := []byte{migrationVersion}
	for i := 0; i < m.reg.Len(); i++ {
		c := Capability(i)
		if !m.st.Needed(c) {
			continue
		}
		name := m.reg.Lookup(c).Name
		buf = append(buf, byte(len(name)))
		buf = append(buf, name...)
		buf = append(buf, byte(m.st.Migration[c]))
	}
	return buf
}

// DecodeMigration parses an incoming capability stream into the migration
// set. Call it after [Machine.PreLoad]. Absent capabilities are not errors;
// a capability name the destination does not know is fatal, since an
// unknown capability can never be honored.
func (m *Machine) DecodeMigration(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty capability stream")
	}
	if data[0] != migrationVersion {
		return fmt.Errorf("unsupported capability stream version %d", data[0])
	}

	rest := data[1:]
	for len(rest) > 0 {
		n := int(rest[0])
		if len(rest) < 2+n {
			return fmt.Errorf("truncated capability record")
		}
		name := string(rest[1 : 1+n])
		level := Level(rest[1+n])
		rest = rest[2+n:]

		d, ok := m.reg.LookupName(name)
		if !ok {
			return fmt.Errorf("unknown capability %q in incoming stream", name)
		}
		m.st.Migration[d.Cap] = level
	}
	return nil
}

// PostMigration validates the incoming capability levels against what the
// destination is configured with. It must run from the top-level machine
// post-load, not per-capability: even when the source sent nothing, its
// default-derived levels can still conflict with overridden capabilities on
// the destination.
//
// The source's effective set is reconstructed by computing the defaults the
// source must have had (same baseline, same CPU ceiling) and overlaying
// every capability that actually arrived, detectable because the migration
// set diverged from the destination defaults. Then, per capability:
//
//   - source above destination: fatal, the migration is rejected;
//   - source below destination: a downgrade warning is logged, the
//     migration proceeds and no level change is attempted;
//   - equal: nothing.
//
// The returned error aggregates every *[IncompatError]; warnings never
// affect the result.
func (m *Machine) PostMigration() error {
	dst := m.st.Effective

	src := ComputeDefaults(m.reg, m.baseline, m.compat)
	for i := range src {
		// Not the default value: assume it came in with the migration.
		if m.st.Migration[i] != m.st.Defaults[i] {
			src[i] = m.st.Migration[i]
		}
	}

	var err error
	for i := 0; i < m.reg.Len(); i++ {
		d := m.reg.Lookup(Capability(i))

		if src[i] > dst[i] {
			err = multierr.Append(err, &IncompatError{
				Capability: d.Name,
				Source:     src[i],
				Dest:       dst[i],
			})
		}

		if src[i] < dst[i] {
			m.log.Warn("capability level lower in incoming stream than on destination",
				zap.String("capability", d.Name),
				zap.Uint8("source", uint8(src[i])),
				zap.Uint8("destination", uint8(dst[i])))
		}
	}
	return err
}
