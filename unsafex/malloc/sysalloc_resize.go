package malloc

import (
	"fmt"
	"unsafe"
)

// Resize changes the size of the allocation at p to n bytes, preserving
// its contents up to the smaller of the old and new sizes. It may return a
// different pointer than p. Resize(p, 0) frees p and returns nil;
// Resize(nil, n) behaves like Alloc(n).
func (a *SysAllocator) Resize(p unsafe.Pointer, n int) unsafe.Pointer {
	if n == 0 {
		a.Free(p)
		return nil
	}
	if p == nil {
		return a.Alloc(n)
	}

	blk := headerOf(p)
	s := roundUp8(uintptr(n))

	if s > blk.size {
		return a.growResize(p, blk, s, n)
	}

	if blk.status == statusMapped {
		return a.reallocMappedRelocate(p, blk, s)
	}

	surplus := blk.size - s
	if surplus > headerSize+1 {
		a.splitBlock(blk, s)
	}
	return p
}

// growResize implements spec.md §4.5's grow case. Step 4a (next-block
// absorption) is attempted regardless of whether blk itself is Mapped -
// this is a literal preservation of original_source/src/osmem.c's
// os_realloc, which checks block->next before branching on
// block->status == STATUS_MAPPED. When absorption doesn't apply, growing
// falls through to the generic allocate+copy+free relocation whether blk
// is Mapped or brk-resident - os_realloc's STATUS_MAPPED special case only
// ever fires on the shrink/equal-size side, not here.
func (a *SysAllocator) growResize(p unsafe.Pointer, blk *sysBlockHeader, s uintptr, n int) unsafe.Pointer {
	if next := blk.next; next != nil && next.status == statusFree && blk.size+next.size+headerSize >= s {
		blk.size += next.size + headerSize
		blk.next = next.next
		if a.tail == next {
			a.tail = blk
		}
		return p
	}

	newPtr := a.Alloc(n)
	copyPayload(newPtr, p, blk.size)
	a.Free(p)
	return newPtr
}

// reallocMappedRelocate handles shrinking or same-sizing a Mapped block.
// Per original_source/src/osmem.c's os_realloc (its STATUS_MAPPED branch,
// reached only when pad_size(size) <= block->size), a Mapped block is
// never split or shrunk in place: it grabs a fresh brk chunk of 128 KiB (or
// of s plus a header, when that is larger), copies the s requested bytes
// in, splices the new block into
// the position blk occupied, and unmaps blk - moving the allocation from
// the mapped arena onto the brk arena even when s still comfortably
// exceeds the brk/mmap threshold on its own.
func (a *SysAllocator) reallocMappedRelocate(p unsafe.Pointer, blk *sysBlockHeader, s uintptr) unsafe.Pointer {
	chunk := uintptr(preallocChunk)
	if s+headerSize > chunk {
		chunk = s + headerSize
	}
	base, err := sysSbrk(chunk)
	if err != nil {
		panic(fmt.Sprintf("sysalloc: Alloc failed: %v", err))
	}

	newBlk := (*sysBlockHeader)(base)
	newBlk.size = s
	newBlk.status = statusAllocated
	newBlk.next = blk.next

	prev, found := a.predecessorOf(blk)
	if !found {
		panic("sysalloc: Resize failed: block not in registry")
	}
	if prev == nil {
		a.head = newBlk
	} else {
		prev.next = newBlk
	}
	if a.tail == blk {
		a.tail = newBlk
	}

	copyPayload(payloadOf(newBlk), p, s)

	if err := sysMunmap(unsafe.Pointer(blk), blk.size+headerSize); err != nil {
		panic(fmt.Sprintf("sysalloc: Free failed: %v", err))
	}

	return payloadOf(newBlk)
}

// AllocZeroed returns a zeroed region sized count*size, or nil if either
// argument is zero. The brk/mmap threshold is temporarily lowered to the
// system page size so medium-sized requests route through mmap (which the
// kernel already hands back zero-filled), then restored; the payload is
// zeroed explicitly regardless of path, to satisfy the contract uniformly.
func (a *SysAllocator) AllocZeroed(count, size int) unsafe.Pointer {
	if count == 0 || size == 0 {
		return nil
	}

	saved := a.threshold
	a.threshold = uintptr(pageSize())
	defer func() { a.threshold = saved }()

	p := a.Alloc(count * size)
	if p != nil {
		zeroPayload(p, headerOf(p).size)
	}
	return p
}
