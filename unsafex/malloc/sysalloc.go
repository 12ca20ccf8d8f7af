package malloc

import (
	"fmt"
	"unsafe"
)

// blockStatus tags the variant a block header currently represents.
type blockStatus uint8

const (
	statusFree blockStatus = iota
	statusAllocated
	statusMapped
)

func (s blockStatus) String() string {
	switch s {
	case statusFree:
		return "free"
	case statusAllocated:
		return "allocated"
	case statusMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// sysBlockHeader prefixes every region handed out by SysAllocator. It lives
// directly in the brk arena or in a mapped region, never on the Go heap, and
// is manipulated purely through unsafe pointer arithmetic - the allocator
// itself owns no Go-heap-backed bookkeeping beyond head/tail.
//
// size is the payload size in bytes, always a multiple of 8. The trailing
// pad field rounds the struct up to a multiple of 8 bytes on both 64-bit
// (24 bytes) and 32-bit (16 bytes) platforms, so appending a header keeps
// payloads 8-byte aligned.
type sysBlockHeader struct {
	size   uintptr
	next   *sysBlockHeader
	status blockStatus
	_      uint32
}

const headerSize = unsafe.Sizeof(sysBlockHeader{})

const (
	// DefaultThreshold is the size cutoff (including header) separating
	// brk-resident blocks from mapped blocks.
	DefaultThreshold = 128 * 1024

	// preallocChunk is the fixed size of the first brk extension and the
	// minimum size of the brk chunk grabbed when relocating a Mapped block
	// on a shrinking or same-size Resize.
	preallocChunk = 128 * 1024

	alignment = 8
)

// SysAllocator is a first-fit, split/coalesce allocator that services
// requests directly from the kernel: small requests from a contiguously
// grown brk arena, large requests from independent anonymous mappings.
//
// It is not safe for concurrent use: all state (head, tail, threshold) is
// mutated without synchronization. Callers issuing requests from multiple
// goroutines must serialize them externally, and each goroutine should own
// a distinct *SysAllocator rather than share one.
type SysAllocator struct {
	head, tail *sysBlockHeader
	threshold  uintptr
}

// NewSysAllocator creates an allocator using the default 128 KiB threshold.
func NewSysAllocator() *SysAllocator {
	return NewSysAllocatorWithThreshold(DefaultThreshold)
}

// NewSysAllocatorWithThreshold creates an allocator with a custom brk/mmap
// threshold (in bytes, including the header). Thresholds too small to host
// a header fall back to DefaultThreshold.
func NewSysAllocatorWithThreshold(threshold int) *SysAllocator {
	t := uintptr(threshold)
	if threshold <= 0 || t <= headerSize {
		t = DefaultThreshold
	}
	return &SysAllocator{threshold: t}
}

func roundUp8(n uintptr) uintptr {
	return (n + alignment - 1) &^ (alignment - 1)
}

func headerOf(p unsafe.Pointer) *sysBlockHeader {
	return (*sysBlockHeader)(unsafe.Pointer(uintptr(p) - headerSize))
}

func payloadOf(h *sysBlockHeader) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + headerSize)
}

func copyPayload(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	d := unsafe.Slice((*byte)(dst), int(n))
	s := unsafe.Slice((*byte)(src), int(n))
	copy(d, s)
}

func zeroPayload(p unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	b := unsafe.Slice((*byte)(p), int(n))
	for i := range b {
		b[i] = 0
	}
}

// predecessorOf walks the list from head looking for blk, returning its
// predecessor (nil if blk is head) and whether blk was found at all.
// Predecessors are never stored - the list is singly-linked, so they are
// recovered by traversal, exactly as spec.md's design notes require.
func (a *SysAllocator) predecessorOf(blk *sysBlockHeader) (prev *sysBlockHeader, found bool) {
	cur := a.head
	for cur != nil {
		if cur == blk {
			return prev, true
		}
		prev = cur
		cur = cur.next
	}
	return nil, false
}

// Alloc returns a pointer to n bytes of uninitialised, 8-byte aligned
// memory, or nil when n <= 0. Kernel failure aborts the process via panic.
func (a *SysAllocator) Alloc(n int) unsafe.Pointer {
	if n <= 0 {
		return nil
	}
	s := roundUp8(uintptr(n))
	if s+headerSize < a.threshold {
		return a.allocBrk(s)
	}
	return a.allocMapped(s)
}

func (a *SysAllocator) allocBrk(s uintptr) unsafe.Pointer {
	if a.head == nil {
		return a.preallocCold(s)
	}
	if blk := a.scanFirstFit(s); blk != nil {
		return payloadOf(blk)
	}
	if a.tail.status == statusFree {
		return a.extendTail(s)
	}
	return a.appendBrk(s)
}

// preallocCold handles the very first brk allocation of the process: the
// arena is grown by exactly one threshold-sized chunk regardless of the
// requested size, but the installed block records only the requested
// (padded) size. The remainder of the chunk is never tracked as a free
// block and stays permanently unreachable through head/tail.
func (a *SysAllocator) preallocCold(s uintptr) unsafe.Pointer {
	base, err := sysSbrk(preallocChunk)
	if err != nil {
		panic(fmt.Sprintf("sysalloc: Alloc failed: %v", err))
	}
	blk := (*sysBlockHeader)(base)
	blk.size = s
	blk.status = statusAllocated
	blk.next = nil
	a.head = blk
	a.tail = blk
	return payloadOf(blk)
}

func (a *SysAllocator) extendTail(s uintptr) unsafe.Pointer {
	delta := s - a.tail.size
	if _, err := sysSbrk(delta); err != nil {
		panic(fmt.Sprintf("sysalloc: Alloc failed: %v", err))
	}
	a.tail.size = s
	a.tail.status = statusAllocated
	return payloadOf(a.tail)
}

func (a *SysAllocator) appendBrk(s uintptr) unsafe.Pointer {
	base, err := sysSbrk(s + headerSize)
	if err != nil {
		panic(fmt.Sprintf("sysalloc: Alloc failed: %v", err))
	}
	blk := (*sysBlockHeader)(base)
	blk.size = s
	blk.status = statusAllocated
	blk.next = nil
	a.tail.next = blk
	a.tail = blk
	return payloadOf(blk)
}

func (a *SysAllocator) allocMapped(s uintptr) unsafe.Pointer {
	base, err := sysMmap(s + headerSize)
	if err != nil {
		panic(fmt.Sprintf("sysalloc: Alloc failed: %v", err))
	}
	blk := (*sysBlockHeader)(base)
	blk.size = s
	blk.status = statusMapped
	blk.next = nil
	if a.head == nil {
		a.head = blk
	} else {
		a.tail.next = blk
	}
	a.tail = blk
	return payloadOf(blk)
}
