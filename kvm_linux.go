//go:build linux

package vmcaps

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// KVM ioctl and capability numbers, from <linux/kvm.h>.
const (
	// KVM_CHECK_EXTENSION, _IO(KVMIO, 0x03).
	kvmCheckExtension = 0xae03
	// KVM_CAP_PPC_HTM.
	kvmCapPPCHTM = 84
)

// KVMBackend answers capability support queries against the running KVM
// hypervisor via /dev/kvm.
type KVMBackend struct {
	fd int
}

// NewKVMBackend opens /dev/kvm. It returns [ErrKVMUnavailable] when the
// device does not exist or cannot be opened.
func NewKVMBackend() (*KVMBackend, error) {
	fd, err := unix.Open("/dev/kvm", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open /dev/kvm: %v", ErrKVMUnavailable, err)
	}
	return &KVMBackend{fd: fd}, nil
}

// Close releases the /dev/kvm handle.
func (b *KVMBackend) Close() error {
	return unix.Close(b.fd)
}

func (b *KVMBackend) Name() string { return "kvm" }

func (b *KVMBackend) Supports(c Capability) (bool, string) {
	switch c {
	case CapHTM:
		ok, err := b.checkExtension(kvmCapPPCHTM)
		if err != nil {
			return false, fmt.Sprintf("cannot query KVM for transactional memory support (%v)", err)
		}
		if !ok {
			return false, "KVM implementation does not support transactional memory"
		}
		return true, ""
	case CapVSX, CapDFP:
		// CPU models admitted by the core layer already imply the
		// vector and decimal units on the KVM host.
		return true, ""
	}
	return false, "unknown capability"
}

// checkExtension asks the hypervisor whether it implements an extension.
// A positive return from the ioctl means supported.
func (b *KVMBackend) checkExtension(ext uintptr) (bool, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), kvmCheckExtension, ext)
	if errno != 0 {
		return false, errno
	}
	return int(r) > 0, nil
}
