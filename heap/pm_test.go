package heap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/testutil"
	"github.com/joshuapare/heapkit/target"
)

func newPMHeap(t *testing.T, arch target.Arch) *testutil.Builder {
	t.Helper()
	b := testutil.NewWithArch(t, arch).WithPMHeaps()
	b.Enum("DMPROFILING_OWNER", map[string]int64{"DMPROFILING_OWNER_NONE": 0xFF})
	b.Segment(target.SpacePM, 0x8000, 0x1000)
	return b
}

// TestPMLayout_LengthScaling checks that word lengths are scaled to
// addressable units for blocks and free nodes.
func TestPMLayout_LengthScaling(t *testing.T) {
	b := newPMHeap(t, target.DefaultArch())
	b.SetPMHeap(0, 0x8000, 0x9000, 0, 0x8100)
	b.PMNode(target.SpacePM, 0x8000, 8, 2)
	b.PMFreeNode(target.SpacePM, 0x8100, 16, 0)

	l := NewPMLayout(b.Snapshot())
	cat, err := NewCatalog(t.Context(), l, 0)
	require.NoError(t, err)
	p0, err := cat.Region("PM_BLOCK_P0")
	require.NoError(t, err)
	assert.Equal(t, 0x1000, p0.Size)
	assert.Equal(t, KindInstruction, p0.Kind)

	res, err := ScanBlocks(t.Context(), l, p0, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, 32, res.Blocks[0].Length)
	assert.Equal(t, 2, res.Blocks[0].Owner)

	sum, err := WalkFreeList(t.Context(), l, cat, p0, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 64, sum.Total)
}

// TestPMLayout_Discontinuous checks that the P0 heap is split around the
// code and patch area and reports the visible size only.
func TestPMLayout_Discontinuous(t *testing.T) {
	b := newPMHeap(t, target.DefaultArch())
	b.SetPMHeap(0, 0x8000, 0x9000, 0, 0)
	b.SetPMCodeGap(0x8400, 0x8800, 0x100)
	b.PMNode(target.SpacePM, 0x8000, 4, 1)
	b.PMNode(target.SpacePM, 0x8500, 4, 9) // inside the code area
	b.PMNode(target.SpacePM, 0x8900, 4, 5)

	l := NewPMLayout(b.Snapshot())
	regions, err := Regions(t.Context(), l, 0)
	require.NoError(t, err)
	p0 := regions[0]
	require.True(t, p0.Available)
	assert.Equal(t, []Span{{Start: 0x8000, Size: 0x400}, {Start: 0x8900, Size: 0x700}}, p0.Spans)
	assert.Equal(t, 0xB00, p0.Size)
	assert.Equal(t, target.Address(0x8FFF), p0.End)

	res, err := ScanBlocks(t.Context(), l, p0, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, target.Address(0x8000), res.Blocks[0].Address)
	assert.Equal(t, target.Address(0x8900), res.Blocks[1].Address)
	assert.Equal(t, 5, res.Blocks[1].Owner)
}

// TestPMLayout_Offset checks that configured addresses have the load offset
// removed.
func TestPMLayout_Offset(t *testing.T) {
	b := newPMHeap(t, target.DefaultArch())
	b.SetPMHeap(0, 0x8000, 0x9000, 0x100, 0x8040)

	regions, err := Regions(t.Context(), NewPMLayout(b.Snapshot()), 0)
	require.NoError(t, err)
	assert.Equal(t, target.Address(0x8000), regions[0].Start)
	assert.Equal(t, target.Address(0x8FFF), regions[0].End)
	assert.Equal(t, target.Address(0x8040), regions[0].FreeListHead)
}

// TestPMLayout_BootState checks that processor 1 heaps follow the boot state.
func TestPMLayout_BootState(t *testing.T) {
	p1 := func(t *testing.T, b *testutil.Builder, opts ...Option) HeapRegion {
		t.Helper()
		regions, err := Regions(t.Context(), NewPMLayout(b.Snapshot(), opts...), 0)
		require.NoError(t, err)
		return regionByName(t, regions, "PM_BLOCK_P1")
	}

	b := newPMHeap(t, target.DefaultArch())
	b.SetPMHeap(1, 0x8800, 0x9000, 0, 0)
	assert.True(t, p1(t, b).Available, "unknown boot state counts as booted")

	b.SetPresentCores(1)
	r := p1(t, b)
	assert.False(t, r.Available)
	assert.Equal(t, "processor 1 not booted", r.Reason)

	b.SetPresentCores(2)
	assert.True(t, p1(t, b).Available)

	notBooted := WithBootState(func(context.Context, int) (bool, error) { return false, nil })
	assert.False(t, p1(t, b, notBooted).Available)
}

// TestPMLayout_OtherProcessor checks that only processor 0 sees PM heaps.
func TestPMLayout_OtherProcessor(t *testing.T) {
	b := newPMHeap(t, target.DefaultArch())
	b.SetPMHeap(0, 0x8000, 0x9000, 0, 0)

	regions, err := Regions(t.Context(), NewPMLayout(b.Snapshot()), 1)
	require.NoError(t, err)
	for _, r := range regions {
		assert.False(t, r.Available, r.Name)
	}
}

// TestPMLayout_Windows checks that windowed nodes are read through data
// memory and that links are translated back into program addresses.
func TestPMLayout_Windows(t *testing.T) {
	arch := target.DefaultArch()
	arch.Windows = []target.Window{
		{Name: WindowDMAsPM, PMStart: 0x20000, DMStart: 0x6000, Size: 0x1000},
		{Name: WindowPMRAM, PMStart: 0x8000, DMStart: 0x30000, Size: 0x1000},
	}
	b := newPMHeap(t, arch)
	b.Segment(target.SpaceDM, 0x6000, 0x1000)

	b.SetPMHeap(4, 0x20000, 0x21000, 0, 0x20000)
	b.PMFreeNode(target.SpaceDM, 0x6000, 4, 0x6100)
	b.PMFreeNode(target.SpaceDM, 0x6100, 8, 0)
	b.PMNode(target.SpaceDM, 0x6200, 4, 6)

	b.SetPMHeap(0, 0x8000, 0x9000, 0, 0x8000)
	b.PMFreeNode(target.SpacePM, 0x8000, 4, 0x30100)
	b.PMFreeNode(target.SpacePM, 0x8100, 4, 0)

	l := NewPMLayout(b.Snapshot())
	cat, err := NewCatalog(t.Context(), l, 0)
	require.NoError(t, err)

	addl, err := cat.Region("PM_BLOCK_ADDL")
	require.NoError(t, err)
	sum, err := WalkFreeList(t.Context(), l, cat, addl, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 48, sum.Total)
	require.Len(t, sum.Nodes, 2)
	assert.Equal(t, target.Address(0x20100), sum.Nodes[1].Address)

	res, err := ScanBlocks(t.Context(), l, addl, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, target.Address(0x20200), res.Blocks[0].Address)
	assert.Equal(t, 6, res.Blocks[0].Owner)

	p0, err := cat.Region("PM_BLOCK_P0")
	require.NoError(t, err)
	sum, err = WalkFreeList(t.Context(), l, cat, p0, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 32, sum.Total)
	assert.Equal(t, target.Address(0x8100), sum.Nodes[0].Next)
}

// TestPMLayout_Unsupported checks that a build without the block enum is
// rejected.
func TestPMLayout_Unsupported(t *testing.T) {
	b := testutil.New(t)
	_, err := Regions(t.Context(), NewPMLayout(b.Snapshot()), 0)
	require.ErrorIs(t, err, ErrUnsupportedLayout)
	var ue *UnsupportedLayoutError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "PM_BLOCK", ue.Missing)
}

// TestPMLayout_Watermarks checks that PM reports no counters.
func TestPMLayout_Watermarks(t *testing.T) {
	b := newPMHeap(t, target.DefaultArch())
	b.SetPMHeap(0, 0x8000, 0x9000, 0, 0)

	w, err := NewPMLayout(b.Snapshot()).Watermarks(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, Watermarks{Total: 0x1000, Free: -1, MinFree: -1}, w)
}
