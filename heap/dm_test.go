package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/testutil"
	"github.com/joshuapare/heapkit/target"
)

func regionByName(t *testing.T, regions []HeapRegion, name string) HeapRegion {
	t.Helper()
	for _, r := range regions {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("region %s not cataloged", name)
	return HeapRegion{}
}

// TestDMLayout_Regions checks bounds, spans and availability of configured
// and unconfigured heaps.
func TestDMLayout_Regions(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.SetDMHeap(0, 0, mainStart, mainSize, 0x4040)

	regions, err := Regions(t.Context(), NewDMLayout(b.Snapshot()), 0)
	require.NoError(t, err)
	require.Len(t, regions, 6)

	main := regions[0]
	assert.Equal(t, "HEAP_MAIN", main.Name)
	assert.Equal(t, "Main heap", main.Label)
	assert.True(t, main.Available)
	assert.Equal(t, mainStart, main.Start)
	assert.Equal(t, mainStart+mainSize-1, main.End)
	assert.Equal(t, mainSize, main.Size)
	assert.Equal(t, target.Address(0x4040), main.FreeListHead)
	assert.Equal(t, []Span{{Start: mainStart, Size: mainSize}}, main.Spans)

	slow := regionByName(t, regions, "HEAP_SLOW")
	assert.False(t, slow.Available)
	assert.Zero(t, slow.Size)
	assert.Equal(t, "size 0", slow.Reason)
	assert.NoError(t, slow.Err)

	nvram := regionByName(t, regions, "HEAP_NVRAM")
	assert.False(t, nvram.Available)
	assert.Equal(t, "reported by PM analysis", nvram.Reason)

	ext := regionByName(t, regions, "HEAP_EXT")
	assert.False(t, ext.Available)
	assert.Equal(t, "external memory clock off", ext.Reason)
}

// TestDMLayout_ExtraHeapGuard checks that the extra heap is unavailable while
// its banks are powered off.
func TestDMLayout_ExtraHeapGuard(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.Segment(target.SpaceDM, 0x6000, 0x1000)
	b.SetDMHeap(0, 3, 0x6000, 0x1000, 0)

	l := NewDMLayout(b.Snapshot())
	regions, err := Regions(t.Context(), l, 0)
	require.NoError(t, err)
	assert.True(t, regionByName(t, regions, "HEAP_EXTRA").Available)

	b.SetDMGuard(0, 3, 0)
	regions, err = Regions(t.Context(), l, 0)
	require.NoError(t, err)
	extra := regionByName(t, regions, "HEAP_EXTRA")
	assert.False(t, extra.Available)
	assert.Equal(t, "memory banks powered off", extra.Reason)
}

// TestDMLayout_ExternalHeap checks the external memory clock gate.
func TestDMLayout_ExternalHeap(t *testing.T) {
	tests := []struct {
		name  string
		clock uint32
		want  bool
	}{
		{"clock running", 2, true},
		{"clock idle", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newMainHeap(t, testutil.DMOptions{Profiling: true})
			b.Segment(target.SpaceDM, 0x6000, 0x1000)
			b.SetDMHeap(0, 5, 0x6000, 0x1000, 0)
			b.SetExtmem(tt.clock)

			regions, err := Regions(t.Context(), NewDMLayout(b.Snapshot()), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, regionByName(t, regions, "HEAP_EXT").Available)
		})
	}
}

// TestDMLayout_CommonSharedHeap checks that the shared heap is read from
// processor 0 when the build uses a common shared heap.
func TestDMLayout_CommonSharedHeap(t *testing.T) {
	build := func(t *testing.T, common bool) HeapRegion {
		b := newMainHeap(t, testutil.DMOptions{Profiling: true})
		b.Segment(target.SpaceDM, 0x6000, 0x1000)
		b.SetDMHeap(0, 1, 0x6000, 0x1000, 0)
		fields := map[string]target.FieldLayout{"channel_id": {Offset: 0, Size: 4}}
		if !common {
			fields["meta_channel_id"] = target.FieldLayout{Offset: 4, Size: 4}
		}
		b.Type("endpoint_shadow_state", 8, fields)

		regions, err := Regions(t.Context(), NewDMLayout(b.Snapshot()), 1)
		require.NoError(t, err)
		return regionByName(t, regions, "HEAP_SHARED")
	}

	shared := build(t, true)
	assert.True(t, shared.Available)
	assert.Equal(t, target.Address(0x6000), shared.Start)

	assert.False(t, build(t, false).Available)
}

// TestDMLayout_UnknownProcessor checks that a processor beyond the info list
// sees only unavailable regions.
func TestDMLayout_UnknownProcessor(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	regions, err := Regions(t.Context(), NewDMLayout(b.Snapshot()), 4)
	require.NoError(t, err)
	for _, r := range regions {
		assert.False(t, r.Available, r.Name)
		assert.NoError(t, r.Err, r.Name)
	}
}

// TestDMLayout_EnumCutoff checks that members at or past HEAP_INVALID are not
// cataloged.
func TestDMLayout_EnumCutoff(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.Enum("heap_names", map[string]int64{
		"HEAP_MAIN":    0,
		"HEAP_SHARED":  1,
		"HEAP_INVALID": 2,
		"HEAP_SLOW":    3,
	})

	regions, err := Regions(t.Context(), NewDMLayout(b.Snapshot()), 0)
	require.NoError(t, err)
	assert.True(t, regions[0].Available)
	slow := regionByName(t, regions, "HEAP_SLOW")
	assert.Equal(t, "not present in this build", slow.Reason)
}

// TestDMLayout_UnsupportedVersion checks the watermark field version check.
func TestDMLayout_UnsupportedVersion(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.Type("processor_heap_info", 128, map[string]target.FieldLayout{
		"heap":     {Offset: 0, Size: 16, Count: 6, Type: "heap_config"},
		"freelist": {Offset: 96, Size: 4, Count: 6},
	})

	_, err := Regions(t.Context(), NewDMLayout(b.Snapshot()), 0)
	require.ErrorIs(t, err, ErrUnsupportedLayout)

	var ue *UnsupportedLayoutError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "DM", ue.Layout)
	assert.Equal(t, "processor_heap_info.heap_debug_free", ue.Missing)
}

// TestDMLayout_UnreadableConfig checks that a configuration read failure
// marks the region as failed rather than aborting the catalog.
func TestDMLayout_UnreadableConfig(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.Variable("L_processor_heap_info_list", 0x20000, "processor_heap_info", 256)

	regions, err := Regions(t.Context(), NewDMLayout(b.Snapshot()), 0)
	require.NoError(t, err)
	main := regions[0]
	assert.False(t, main.Available)
	require.Error(t, main.Err)
	assert.True(t, IsAccess(main.Err))
}

// TestDMLayout_Watermarks checks counter reads and the not-available marker.
func TestDMLayout_Watermarks(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	l := NewDMLayout(b.Snapshot())

	w, err := l.Watermarks(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, Watermarks{Total: mainSize, Free: -1, MinFree: -1}, w)

	b.SetWatermarks(0, 3000, 1200)
	w, err = l.Watermarks(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, Watermarks{Total: mainSize, Free: 3000, MinFree: 1200}, w)
}

// TestDMLayout_ConfigCaching checks that live layouts re-resolve
// configuration every pass and snapshot layouts resolve it once.
func TestDMLayout_ConfigCaching(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})

	snap := NewDMLayout(b.Snapshot())
	live := NewDMLayout(b.Snapshot(), WithMode(ModeLive))
	for range 3 {
		for _, l := range []*DMLayout{snap, live} {
			l.BeginPass()
			_, err := Regions(t.Context(), l, 0)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, snap.Resolves())
	assert.Equal(t, 3, live.Resolves())
	assert.Equal(t, ModeLive, live.Mode())
}

// TestDMLayout_DebugDetection checks that the node geometry follows the type
// layout.
func TestDMLayout_DebugDetection(t *testing.T) {
	for _, debug := range []bool{false, true} {
		b := newMainHeap(t, testutil.DMOptions{Profiling: true, Debug: debug})
		cfg, err := NewDMLayout(b.Snapshot()).Config(t.Context())
		require.NoError(t, err)
		assert.Equal(t, debug, cfg.DebugNodes)
		assert.Equal(t, 1, cfg.MagicOffset)
		assert.True(t, cfg.Profiling)
		if debug {
			assert.Equal(t, 16, cfg.PayloadOffset)
		} else {
			assert.Equal(t, 8, cfg.PayloadOffset)
		}
	}
}

// TestWithNames checks that renamed symbols are honored and unset names keep
// their defaults.
func TestWithNames(t *testing.T) {
	b := newMainHeap(t, testutil.DMOptions{Profiling: true})
	b.Variable("L_heap_cfg", testutil.HeapInfoListAddr, "processor_heap_info", 256)

	l := NewDMLayout(b.Snapshot(), WithNames(Names{HeapInfoList: "L_heap_cfg"}))
	regions, err := Regions(t.Context(), l, 0)
	require.NoError(t, err)
	assert.True(t, regions[0].Available)
	assert.Equal(t, "mem_node", l.opts.names.HeapNode)
}
