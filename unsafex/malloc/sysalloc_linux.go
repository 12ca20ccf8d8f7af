//go:build linux

package malloc

import (
	"syscall"
	"unsafe"
)

// sysSbrk extends the process break by delta bytes and returns a pointer
// to the start of the newly added region - the classical libc sbrk(3)
// contract, built on the raw brk(2) syscall the way original_source's C
// implementation calls sbrk directly. syscall.SYS_BRK is a numeric
// constant the stdlib syscall package exposes but doesn't wrap in a
// helper (unlike Mmap/Munmap below), so it goes through syscall.Syscall
// directly - the same pattern internal/iouring/syscall_linux_mips.go uses
// for io_uring_setup/enter/register.
func sysSbrk(delta uintptr) (unsafe.Pointer, error) {
	cur, _, errno := syscall.Syscall(syscall.SYS_BRK, 0, 0, 0)
	if errno != 0 {
		return nil, errno
	}

	want := cur + delta
	got, _, errno := syscall.Syscall(syscall.SYS_BRK, want, 0, 0)
	if errno != 0 {
		return nil, errno
	}
	if got < want {
		return nil, syscall.ENOMEM
	}
	return unsafe.Pointer(cur), nil
}

// sysMmap requests an anonymous private mapping of size bytes.
func sysMmap(size uintptr) (unsafe.Pointer, error) {
	data, err := syscall.Mmap(-1, 0, int(size),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_PRIVATE|syscall.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(&data[0]), nil
}

// sysMunmap releases a mapping previously obtained from sysMmap. Go's
// syscall.Munmap looks active mappings up by the address of their last
// byte and then checks the base address, so a slice rebuilt from the saved
// pointer with the original mapping length (rather than keeping the
// original []byte around) is enough for it to match.
func sysMunmap(ptr unsafe.Pointer, size uintptr) error {
	return syscall.Munmap(unsafe.Slice((*byte)(ptr), int(size)))
}

// pageSize returns the system's base page size, used by AllocZeroed to
// temporarily lower the brk/mmap threshold.
func pageSize() int {
	return syscall.Getpagesize()
}
