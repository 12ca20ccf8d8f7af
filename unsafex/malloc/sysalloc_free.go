package malloc

import (
	"fmt"
	"unsafe"
)

// Free releases the block backing p. p == nil is a no-op. Freeing a
// pointer this allocator never returned, or double-freeing, is undefined
// behavior - spec.md §7 leaves it undetected, so Free walks the list
// looking for the header and silently returns if it never finds it rather
// than dereferencing garbage.
func (a *SysAllocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	blk := headerOf(p)
	prev, found := a.predecessorOf(blk)
	if !found {
		return
	}

	if blk.status == statusMapped {
		a.unlink(prev, blk)
		if err := sysMunmap(unsafe.Pointer(blk), blk.size+headerSize); err != nil {
			panic(fmt.Sprintf("sysalloc: Free failed: %v", err))
		}
		return
	}

	// A brk-resident block whose recorded size plus header has reached
	// the mapping threshold - e.g. via next-block absorption in Resize -
	// is never coalesced back to Free, the header-inclusive counterpart of
	// original_source/src/osmem.c's `curr->size < MMAP_THRESHOLD &&
	// curr->status == STATUS_ALLOC` gate. It stays Allocated forever.
	if blk.size+headerSize >= a.threshold {
		return
	}

	a.coalesce(prev, blk)
}

// unlink removes blk from the registry given its predecessor (nil if blk
// is head), fixing up head/tail.
func (a *SysAllocator) unlink(prev, blk *sysBlockHeader) {
	if prev == nil {
		a.head = blk.next
	} else {
		prev.next = blk.next
	}
	if a.tail == blk {
		a.tail = prev
	}
	if a.head == nil {
		a.tail = nil
	}
}

// coalesce marks blk Free and merges it with an immediately Free
// predecessor and/or successor (list-adjacency equals address-adjacency
// for brk blocks, since the arena only ever grows forward). The surviving
// header is always the lower-address one. Afterward the tail anchor is
// refreshed by walking forward from the surviving block, since a merge can
// remove the node that used to be tail.
func (a *SysAllocator) coalesce(prev, blk *sysBlockHeader) {
	blk.status = statusFree
	cur := blk

	if prev != nil && prev.status == statusFree {
		prev.size += cur.size + headerSize
		prev.next = cur.next
		cur = prev
	}

	if cur.next != nil && cur.next.status == statusFree {
		cur.size += cur.next.size + headerSize
		cur.next = cur.next.next
	}

	// Defensive: blk was found in the list, so a.head is non-nil here,
	// and no brk-side merge ever drops head to nil. The empty-list
	// post-free case arises only in unlink, which clears tail itself.
	if a.head == nil {
		a.tail = nil
		return
	}

	walker := cur
	for walker.next != nil {
		walker = walker.next
	}
	a.tail = walker
}
