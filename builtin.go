package vmcaps

import "fmt"

// Builtin capability ordinals.
const (
	// CapHTM is hardware transactional memory.
	CapHTM Capability = iota
	// CapVSX is the vector-scalar extension unit.
	CapVSX
	// CapDFP is the decimal floating point unit.
	CapDFP

	numBuiltinCaps
)

var capabilityNames = map[Capability]string{
	CapHTM: "htm",
	CapVSX: "vsx",
	CapDFP: "dfp",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

// BuiltinDescriptors returns the builtin capability table with apply
// callbacks wired to the given accelerator backend.
//
// Thresholds are declared per capability: transactional memory entered the
// architecture with ISA v2.07, the vector-scalar and decimal units with
// ISA v2.06. Below those ceilings the capability is never offered by
// default.
func BuiltinDescriptors(b Backend) []Descriptor {
	return []Descriptor{
		{
			Cap:         CapHTM,
			Name:        "htm",
			Description: "Allow Hardware Transactional Memory (HTM)",
			Threshold:   Compat207,
			Apply:       applyViaBackend(b, CapHTM, "htm"),
		},
		{
			Cap:         CapVSX,
			Name:        "vsx",
			Description: "Allow Vector Scalar Extensions (VSX)",
			Threshold:   Compat206,
			Apply:       applyViaBackend(b, CapVSX, "vsx"),
		},
		{
			Cap:         CapDFP,
			Name:        "dfp",
			Description: "Allow Decimal Floating Point (DFP)",
			Threshold:   Compat206,
			Apply:       applyViaBackend(b, CapDFP, "dfp"),
		},
	}
}

// NewBuiltinRegistry builds a registry holding the builtin capability table
// wired to the given backend.
func NewBuiltinRegistry(b Backend) (*Registry, error) {
	return NewRegistry(BuiltinDescriptors(b))
}

// applyViaBackend builds an apply callback that accepts off unconditionally
// and verifies backend support for anything stronger. The callback is a
// pure query, so it is trivially idempotent.
func applyViaBackend(b Backend, c Capability, name string) ApplyFunc {
	return func(l Level) error {
		if l == LevelOff {
			// Live-disable is not implemented yet; accepting the
			// request is all that is required here.
			return nil
		}
		ok, reason := b.Supports(c)
		if !ok {
			return &ConfigError{
				Capability: name,
				Level:      l,
				Reason:     fmt.Sprintf("%s, try cap-%s=off", reason, name),
			}
		}
		return nil
	}
}
