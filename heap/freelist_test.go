package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/testutil"
	"github.com/joshuapare/heapkit/target"
)

// TestWalkFreeList_Totals checks a well-formed two-node list.
func TestWalkFreeList_Totals(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4000)
	b.FreeNode(0x4000, 64, 0x4100)
	b.FreeNode(0x4100, 128, 0)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 192, sum.Total)
	assert.Zero(t, sum.Overhead)
	assert.False(t, sum.Partial)
	assert.Equal(t, []FreeListNode{
		{Address: 0x4000, Length: 64, Next: 0x4100},
		{Address: 0x4100, Length: 128, Next: 0},
	}, sum.Nodes)
}

// TestWalkFreeList_EmptyRegion checks that a heap with one free node covering
// it reports its size less the node header.
func TestWalkFreeList_EmptyRegion(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.SetDMHeap(0, 0, mainStart, mainSize, mainStart)
	b.FreeNode(mainStart, mainSize-8, 0)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, mainSize-8, sum.Total)

	blocks, err := ScanBlocks(t.Context(), l, r, ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, blocks.Blocks)
}

// TestWalkFreeList_Cycle checks that a repeating node terminates the walk
// with partial totals.
func TestWalkFreeList_Cycle(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4000)
	b.FreeNode(0x4000, 64, 0x4100)
	b.FreeNode(0x4100, 128, 0x4000)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{})
	require.ErrorIs(t, err, ErrFreeListCycle)
	assert.True(t, IsCorruption(err))
	assert.True(t, sum.Partial)
	assert.Equal(t, 192, sum.Total)
	assert.Len(t, sum.Nodes, 2)
	assert.Equal(t, err, sum.Err)
}

// TestWalkFreeList_OutOfBounds checks that a node outside every heap is fatal
// for the region.
func TestWalkFreeList_OutOfBounds(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4000)
	b.FreeNode(0x4000, 64, 0x9000)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{})
	require.ErrorIs(t, err, ErrNodeOutOfBounds)
	assert.True(t, sum.Partial)
	assert.Equal(t, 64, sum.Total)
}

// TestWalkFreeList_SharedChain checks that nodes of other regions on the same
// chain are visited but not counted.
func TestWalkFreeList_SharedChain(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.Segment(target.SpaceDM, 0x6000, 0x1000)
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4000)
	b.SetDMHeap(0, 2, 0x6000, 0x1000, 0)
	b.FreeNode(0x4000, 64, 0x6000)
	b.FreeNode(0x6000, 256, 0x4100)
	b.FreeNode(0x4100, 32, 0)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 96, sum.Total)
	assert.Equal(t, 1, sum.Foreign)
	assert.Len(t, sum.Nodes, 2)
}

// TestWalkFreeList_NodeLimit checks the iteration bound.
func TestWalkFreeList_NodeLimit(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4000)
	b.FreeNode(0x4000, 64, 0x4100)
	b.FreeNode(0x4100, 128, 0)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{MaxNodes: 1})
	require.ErrorIs(t, err, ErrFreeListTooLong)
	assert.Equal(t, 64, sum.Total)
}

// TestWalkFreeList_DebugOverhead checks that debug builds subtract the guard
// words from the total.
func TestWalkFreeList_DebugOverhead(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true, Debug: true})
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4000)
	b.FreeNode(0x4000, 64, 0)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, sum.Overhead)
	assert.Equal(t, 56, sum.Total)
}

// TestWalkFreeList_Unreadable checks that an unmapped node inside a heap
// yields an access error.
func TestWalkFreeList_Unreadable(t *testing.T) {
	b := testutil.New(t).WithDMHeaps(testutil.DMOptions{Profiling: true})
	b.Segment(target.SpaceDM, mainStart, 0x100)
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4000)
	b.FreeNode(0x4000, 64, 0x4800)

	l := NewDMLayout(b.Snapshot())
	r, cat := mainRegion(t, l)

	sum, err := WalkFreeList(t.Context(), l, cat, r, WalkOptions{})
	require.Error(t, err)
	assert.True(t, IsAccess(err))
	assert.True(t, sum.Partial)
	assert.Equal(t, 64, sum.Total)
}
