package vmcaps

import "errors"

// ErrKVMUnavailable is returned when the KVM accelerator cannot be used on
// this platform or host.
var ErrKVMUnavailable = errors.New("KVM accelerator not available")

// Backend answers whether the active accelerator can provide a capability.
// Apply callbacks consult it before accepting any level above off. Queries
// are cheap synchronous checks; none of them block.
type Backend interface {
	// Name identifies the accelerator ("emu", "kvm").
	Name() string
	// Supports reports whether the accelerator can provide the
	// capability at any level above off. When it cannot, the returned
	// reason is a human-readable explanation for the configuration
	// error shown to the operator.
	Supports(c Capability) (bool, string)
}

// EmulationBackend is the pure-emulation accelerator. Transactional memory
// is not implemented by the instruction emulator; the vector and decimal
// units are.
type EmulationBackend struct{}

func (EmulationBackend) Name() string { return "emu" }

func (EmulationBackend) Supports(c Capability) (bool, string) {
	switch c {
	case CapHTM:
		return false, "no transactional memory support under emulation"
	case CapVSX, CapDFP:
		return true, ""
	}
	return false, "unknown capability"
}
