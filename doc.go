// Package vmcaps manages optional hardware capabilities of a virtual
// machine and keeps them consistent across live migration.
//
// A capability is an optional feature the virtual machine may expose to its
// guest (transactional memory, vector units, ...). Each one is declared in
// an immutable [Registry] with a stable external name, a minimum CPU
// compatibility threshold, and an apply callback supplied by the
// accelerator layer. A [Machine] owns the per-instance [State]: the default
// set derived from the machine-class baseline and the guest CPU
// compatibility ceiling, the effective set actually configured on the
// emulated hardware, and a transient migration set.
//
// # Boot-time configuration
//
// Operators override individual capabilities before the machine is
// constructed; [Machine.Reset] then computes the running set and applies it:
//
//	reg, err := vmcaps.NewBuiltinRegistry(vmcaps.EmulationBackend{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	baseline, _ := vmcaps.DefaultProfile().Baseline(reg)
//	m := vmcaps.NewMachine(reg,
//	    vmcaps.WithBaseline(baseline),
//	    vmcaps.WithCompat(vmcaps.Compat207),
//	)
//	if err := m.SetCapability("htm", vmcaps.LevelOn); err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Reset(); err != nil {
//	    log.Fatal(err) // *ConfigError: backend cannot provide a level
//	}
//
// # Migration
//
// The embedding migration controller drives three hooks. On the source,
// [Machine.PreSave] then [Machine.EncodeMigration]; on the destination,
// [Machine.PreLoad], [Machine.DecodeMigration], and finally
// [Machine.PostMigration], which reconstructs what the source must have
// been running with and decides per capability:
//
//   - source stronger than destination: fatal *[IncompatError], the
//     migration is rejected — silently granting the guest more than the
//     destination backend supports is a correctness hazard;
//   - source weaker: a downgrade warning is logged and the migration
//     proceeds;
//   - equal: no action.
//
// Only capabilities the operator overrode away from their default travel on
// the wire; everything else is reconstructed from the destination's own
// freshly computed defaults.
//
// # Concurrency
//
// The registry is immutable after construction and safe for concurrent
// reads. Everything else runs on the single thread driving machine
// construction or migration control and needs no locking.
package vmcaps
