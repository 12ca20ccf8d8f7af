//go:build linux

package malloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocZeroOrNegativeReturnsNil(t *testing.T) {
	a := NewSysAllocator()
	assert.Nil(t, a.Alloc(0))
	assert.Nil(t, a.Alloc(-1))
}

func TestAllocHeaderAndAlignment(t *testing.T) {
	a := NewSysAllocator()
	for _, n := range []int{1, 7, 8, 9, 100, 4096} {
		p := a.Alloc(n)
		require.NotNil(t, p)
		h := headerOf(p)
		assert.Equal(t, uintptr(unsafe.Pointer(h))+headerSize, uintptr(p))
		assert.True(t, h.size%alignment == 0)
		assert.GreaterOrEqual(t, h.size, roundUp8(uintptr(n)))
		assert.Equal(t, statusAllocated, h.status)
	}
}

// Scenario 1 (spec.md §8): split on reuse.
func TestSplitOnReuse(t *testing.T) {
	a := NewSysAllocator()

	p := a.Alloc(100)
	require.NotNil(t, p)
	first := headerOf(p)
	require.Equal(t, roundUp8(100), first.size)

	a.Free(p)
	assert.Equal(t, statusFree, first.status)

	p2 := a.Alloc(40)
	require.NotNil(t, p2)
	blk := headerOf(p2)

	assert.Same(t, first, blk, "40-byte alloc should reuse the pre-allocated head block")
	assert.Equal(t, uintptr(40), blk.size)
	assert.Equal(t, statusAllocated, blk.status)

	require.NotNil(t, blk.next)
	suffix := blk.next
	assert.Equal(t, statusFree, suffix.status)
	// Remainder of the *recorded* 104-byte block, not of the untracked
	// 128KiB reservation: (104 - 40) - headerSize.
	assert.Equal(t, roundUp8(100)-40-headerSize, suffix.size)
	assert.Same(t, suffix, a.tail)
}

// Scenario 2 (spec.md §8): coalesce forward and backward.
func TestCoalesceForwardAndBackward(t *testing.T) {
	a := NewSysAllocator()

	pa := a.Alloc(64)
	pb := a.Alloc(64)
	pc := a.Alloc(64)
	require.NotNil(t, pa)
	require.NotNil(t, pb)
	require.NotNil(t, pc)

	a.Free(pa)
	a.Free(pc)
	a.Free(pb)

	require.NotNil(t, a.head)
	assert.Same(t, a.head, a.tail, "expected a single surviving block")
	assert.Equal(t, statusFree, a.head.status)
	assert.Equal(t, uintptr(64+64+64+2*headerSize), a.head.size)
	assert.Nil(t, a.head.next)
}

// Scenario 3 (spec.md §8): tail extension instead of a fresh mapping.
func TestTailExtension(t *testing.T) {
	a := NewSysAllocator()

	p := a.Alloc(100)
	require.NotNil(t, p)
	blk := headerOf(p)
	a.Free(p)
	require.Equal(t, statusFree, blk.status)

	p2 := a.Alloc(100000)
	require.NotNil(t, p2)
	blk2 := headerOf(p2)

	assert.Same(t, blk, blk2, "should extend the tail block in place")
	assert.Equal(t, statusAllocated, blk2.status)
	assert.Equal(t, roundUp8(100000), blk2.size)
}

// Scenario 4 (spec.md §8): threshold routes large requests to mmap.
func TestThresholdRoutesToMapping(t *testing.T) {
	a := NewSysAllocator()

	p := a.Alloc(200000)
	require.NotNil(t, p)
	blk := headerOf(p)
	assert.Equal(t, statusMapped, blk.status)

	a.Free(p)
	_, found := a.predecessorOf(blk)
	assert.False(t, found, "mapped block should be gone from the registry after free")

	p2 := a.Alloc(200000)
	require.NotNil(t, p2)
	assert.Equal(t, statusMapped, headerOf(p2).status)
}

// Scenario 5 (spec.md §8): AllocZeroed on a medium size routes via mapping
// (threshold temporarily lowered to the page size) and zeroes the payload.
func TestAllocZeroedMediumRoutesViaMapping(t *testing.T) {
	a := NewSysAllocator()

	p := a.AllocZeroed(1, 8192)
	require.NotNil(t, p)
	blk := headerOf(p)
	assert.Equal(t, statusMapped, blk.status)
	assert.Equal(t, DefaultThreshold, int(a.threshold), "threshold must be restored")

	b := unsafe.Slice((*byte)(p), 8192)
	for i, v := range b {
		require.Zerof(t, v, "byte %d not zeroed", i)
	}
}

func TestAllocZeroedRejectsZeroArgs(t *testing.T) {
	a := NewSysAllocator()
	assert.Nil(t, a.AllocZeroed(0, 8))
	assert.Nil(t, a.AllocZeroed(8, 0))
}

// Scenario 6 (spec.md §8): resize grows in place by absorbing a Free
// successor, preserving contents and the original pointer.
func TestResizeAbsorbsFreeSuccessor(t *testing.T) {
	a := NewSysAllocator()

	p1 := a.Alloc(64)
	require.NotNil(t, p1)
	b1 := unsafe.Slice((*byte)(p1), 64)
	for i := range b1 {
		b1[i] = byte(i + 1)
	}

	p2 := a.Alloc(64)
	require.NotNil(t, p2)
	a.Free(p2)

	p3 := a.Resize(p1, 120)
	require.NotNil(t, p3)
	assert.Equal(t, p1, p3, "in-place grow must keep the same pointer")

	blk := headerOf(p3)
	assert.Equal(t, statusAllocated, blk.status)
	assert.GreaterOrEqual(t, blk.size, roundUp8(120))

	got := unsafe.Slice((*byte)(p3), 64)
	for i := range got {
		assert.Equal(t, byte(i+1), got[i])
	}
}

// Laws from spec.md §8.
func TestResizeToSameSizeIsNoop(t *testing.T) {
	a := NewSysAllocator()
	p := a.Alloc(50)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 50)
	for i := range b {
		b[i] = byte(i)
	}

	cur := headerOf(p).size
	p2 := a.Resize(p, int(cur))
	assert.Equal(t, p, p2)

	got := unsafe.Slice((*byte)(p2), 50)
	for i := range got {
		assert.Equal(t, byte(i), got[i])
	}
}

func TestResizeToZeroFreesAndReturnsNil(t *testing.T) {
	a := NewSysAllocator()
	p := a.Alloc(32)
	require.NotNil(t, p)
	blk := headerOf(p)

	got := a.Resize(p, 0)
	assert.Nil(t, got)
	assert.Equal(t, statusFree, blk.status)
}

func TestResizeNilBehavesLikeAlloc(t *testing.T) {
	a := NewSysAllocator()
	p := a.Resize(nil, 16)
	require.NotNil(t, p)
	assert.Equal(t, roundUp8(16), headerOf(p).size)
}

func TestFreeNilIsNoop(t *testing.T) {
	a := NewSysAllocator()
	a.Free(nil) // must not panic
}

// Growing a Mapped block past what next-block absorption can satisfy
// relocates via the generic Alloc+copy+Free path, same as a brk-resident
// block - the 128 KiB brk relocate is specific to shrinking/same-sizing a
// Mapped block, not growing one.
func TestResizeGrowMappedRelocatesViaGenericPath(t *testing.T) {
	a := NewSysAllocator()
	p := a.Alloc(200000)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 200000)
	for i := 0; i < 100; i++ {
		b[i] = byte(i)
	}

	p2 := a.Resize(p, 300000)
	require.NotNil(t, p2)
	got := unsafe.Slice((*byte)(p2), 100)
	for i := 0; i < 100; i++ {
		assert.Equal(t, byte(i), got[i])
	}
}

// Shrinking (or same-sizing) a Mapped block relocates it onto the brk
// arena via a fresh 128 KiB chunk rather than shrinking the mapping in
// place, mirroring original_source/src/osmem.c's os_realloc.
func TestResizeShrinkMappedRelocatesToBrk(t *testing.T) {
	a := NewSysAllocator()
	p := a.Alloc(200000)
	require.NotNil(t, p)
	require.Equal(t, statusMapped, headerOf(p).status)

	b := unsafe.Slice((*byte)(p), 200000)
	for i := 0; i < 100; i++ {
		b[i] = byte(i)
	}

	p2 := a.Resize(p, 100000)
	require.NotNil(t, p2)
	blk := headerOf(p2)
	assert.Equal(t, statusAllocated, blk.status)
	assert.Equal(t, roundUp8(100000), blk.size)

	got := unsafe.Slice((*byte)(p2), 100)
	for i := 0; i < 100; i++ {
		assert.Equal(t, byte(i), got[i])
	}
}

// A brk-resident block whose size plus header reaches the mapping threshold
// via next-block absorption (104+24 = 128 here) stays Allocated forever
// once freed - it is never
// coalesced back to Free, matching original_source/src/osmem.c's
// `curr->size < MMAP_THRESHOLD && curr->status == STATUS_ALLOC` gate.
func TestFreeOversizedAllocatedBlockNeverCoalesces(t *testing.T) {
	a := NewSysAllocatorWithThreshold(128)

	p1 := a.Alloc(40)
	require.NotNil(t, p1)
	blk1 := headerOf(p1)

	p2 := a.Alloc(40)
	require.NotNil(t, p2)
	a.Free(p2)

	p3 := a.Resize(p1, 90)
	require.NotNil(t, p3)
	assert.Equal(t, p1, p3, "next-block absorption keeps the same pointer")
	require.Equal(t, uintptr(104), blk1.size)

	a.Free(p3)
	assert.Equal(t, statusAllocated, blk1.status, "oversized block must stay Allocated, never coalesced back to Free")
}
