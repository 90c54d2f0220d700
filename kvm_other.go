//go:build !linux

package vmcaps

// KVMBackend answers capability support queries against the running KVM
// hypervisor. KVM only exists on Linux; on other platforms the backend can
// never be constructed.
type KVMBackend struct{}

// NewKVMBackend always returns [ErrKVMUnavailable] on non-Linux platforms.
func NewKVMBackend() (*KVMBackend, error) {
	return nil, ErrKVMUnavailable
}

// Close releases nothing; the backend cannot exist here.
func (b *KVMBackend) Close() error { return nil }

func (b *KVMBackend) Name() string { return "kvm" }

func (b *KVMBackend) Supports(_ Capability) (bool, string) {
	return false, "KVM accelerator requires Linux"
}
