//go:build !linux

package malloc

import (
	"syscall"
	"unsafe"
)

// sysSbrk is a stub for non-Linux platforms: the brk(2) syscall this
// allocator's brk path depends on has no stable equivalent outside Linux
// (notably absent on modern Darwin). Mirrors
// internal/iouring/syscall_other.go's ENOSYS stub shape.
func sysSbrk(delta uintptr) (unsafe.Pointer, error) {
	return nil, syscall.ENOSYS
}

func sysMmap(size uintptr) (unsafe.Pointer, error) {
	return nil, syscall.ENOSYS
}

func sysMunmap(ptr unsafe.Pointer, size uintptr) error {
	return syscall.ENOSYS
}

func pageSize() int {
	return syscall.Getpagesize()
}
