package vmcaps

// ComputeDefaults derives the default capability set from a machine-class
// baseline and the guest CPU compatibility ceiling. A capability whose
// declared threshold exceeds the ceiling is forced off; everything else
// keeps its baseline level. The result only ever narrows the baseline.
//
// ComputeDefaults is deterministic and has no side effects. The baseline
// length must match the registry size.
func ComputeDefaults(reg *Registry, baseline Set, compat CompatLevel) Set {
	if len(baseline) != reg.Len() {
		panic("vmcaps: baseline size does not match registry")
	}

	out := baseline.Clone()
	for i := 0; i < reg.Len(); i++ {
		if compat < reg.Lookup(Capability(i)).Threshold {
			out[i] = LevelOff
		}
	}
	return out
}
