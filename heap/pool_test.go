package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/testutil"
	"github.com/joshuapare/heapkit/target"
)

// TestPoolLayout_ScanAndWalk checks allocated and free slots of one pool.
func TestPoolLayout_ScanAndWalk(t *testing.T) {
	b := testutil.New(t).WithPools(2)
	b.Enum("DMPROFILING_OWNER", map[string]int64{"DMPROFILING_OWNER_NONE": 0xFF})
	b.Segment(target.SpaceDM, 0x5000, 0x100)
	b.SetPool(0, 16, 4, 0x5000, 0x5010)
	b.PoolBlock(0x5000, 3)
	b.FreePoolBlock(0x5010, 0x5030)
	b.PoolBlock(0x5020, 4)
	b.FreePoolBlock(0x5030, 0)

	l := NewPoolLayout(b.Snapshot())
	cat, err := NewCatalog(t.Context(), l, 0)
	require.NoError(t, err)
	regions := cat.Regions()
	require.Len(t, regions, 2)

	pool := regions[0]
	assert.Equal(t, "POOL_0", pool.Name)
	assert.Equal(t, KindPool, pool.Kind)
	assert.Equal(t, 16, pool.BlockSize)
	assert.Equal(t, 64, pool.Size)
	assert.True(t, pool.Available)

	assert.False(t, regions[1].Available, "unconfigured pool has no blocks")
	assert.Equal(t, "no blocks", regions[1].Reason)

	res, err := ScanBlocks(t.Context(), l, pool, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, target.Address(0x5000), res.Blocks[0].Address)
	assert.Equal(t, target.Address(0x5004), res.Blocks[0].Payload)
	assert.Equal(t, 12, res.Blocks[0].Length)
	assert.Equal(t, 3, res.Blocks[0].Owner)
	assert.Equal(t, target.Address(0x5020), res.Blocks[1].Address)
	assert.Equal(t, 4, res.Blocks[1].Owner)
	assert.Equal(t, KindPool, res.Blocks[1].Kind)

	sum, err := WalkFreeList(t.Context(), l, cat, pool, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 24, sum.Total)
	assert.Len(t, sum.Nodes, 2)
}

// TestPoolLayout_NoPools checks that a build without pools catalogs nothing.
func TestPoolLayout_NoPools(t *testing.T) {
	regions, err := Regions(t.Context(), NewPoolLayout(testutil.New(t).Snapshot()), 0)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

// TestPoolLayout_MissingTypes checks that declared pools without layouts are
// rejected.
func TestPoolLayout_MissingTypes(t *testing.T) {
	b := testutil.New(t)
	b.Variable("L_num_pools", testutil.PoolCountAddr, "", 4)
	b.DM(testutil.PoolCountAddr, 3)

	_, err := Regions(t.Context(), NewPoolLayout(b.Snapshot()), 0)
	require.ErrorIs(t, err, ErrUnsupportedLayout)
}

// TestCatalog_IsAddressValid checks address validation across regions.
func TestCatalog_IsAddressValid(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	cat, err := NewCatalog(t.Context(), NewDMLayout(b.Snapshot()), 0)
	require.NoError(t, err)

	assert.True(t, cat.IsAddressValid(mainStart))
	assert.True(t, cat.IsAddressValid(mainStart+mainSize-1))
	assert.False(t, cat.IsAddressValid(mainStart+mainSize))
	assert.False(t, cat.IsAddressValid(0))
	assert.Equal(t, mainSize, cat.TotalSize())

	_, err = cat.Region("HEAP_BOGUS")
	require.ErrorIs(t, err, ErrNoRegion)
}
