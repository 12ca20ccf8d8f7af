package malloc

import "unsafe"

// scanFirstFit traverses the list from head, taking the first Free block
// whose size suffices. The match is split if there's enough surplus to
// host another header and at least one payload byte; otherwise it is
// handed out whole (internal fragmentation accepted). Returns nil if no
// block fits.
func (a *SysAllocator) scanFirstFit(s uintptr) *sysBlockHeader {
	for cur := a.head; cur != nil; cur = cur.next {
		if cur.status == statusFree && cur.size >= s {
			a.splitBlock(cur, s)
			return cur
		}
	}
	return nil
}

// splitBlock carves an Allocated prefix of size s out of blk, leaving a
// Free suffix header when the surplus is large enough. blk always ends up
// Allocated with its size set to s.
func (a *SysAllocator) splitBlock(blk *sysBlockHeader, s uintptr) {
	surplus := blk.size - s
	if surplus > headerSize+1 {
		suffix := (*sysBlockHeader)(unsafe.Pointer(uintptr(unsafe.Pointer(blk)) + headerSize + s))
		suffix.size = surplus - headerSize
		suffix.status = statusFree
		suffix.next = blk.next

		blk.size = s
		blk.next = suffix

		if a.tail == blk {
			a.tail = suffix
		}
	}
	blk.status = statusAllocated
}
