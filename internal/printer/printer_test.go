package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/pkg/types"
	"github.com/joshuapare/heapkit/profile"
)

func sampleReport() *profile.Report {
	diags := types.NewDiagnosticReport()
	diags.Add(types.Diagnostic{
		Severity:  types.SevCritical,
		Category:  types.DiagStructure,
		Address:   0x6010,
		Region:    "HEAP_SLOW",
		Structure: "FREELIST",
		Issue:     "free list revisits a node",
	})
	diags.Finalize()

	return &profile.Report{
		Layout:    "DM",
		Processor: 0,
		Mode:      heap.ModeSnapshot,
		Profiling: true,
		Regions: []profile.RegionReport{
			{
				Region: heap.HeapRegion{
					Name: "HEAP_MAIN", Kind: heap.KindData, Start: 0x4000, End: 0x4FFF,
					Size: 4096, Available: true,
				},
				State:     profile.StateAggregated,
				Free:      &heap.FreeSummary{Region: "HEAP_MAIN", Total: 512},
				Allocated: 384,
			},
			{
				Region: heap.HeapRegion{Name: "HEAP_SHARED", Kind: heap.KindData, Reason: "size is zero"},
				State:  profile.StateCataloging,
			},
			{
				Region: heap.HeapRegion{
					Name: "HEAP_SLOW", Kind: heap.KindData, Start: 0x6000, End: 0x63FF,
					Size: 1024, Available: true,
				},
				State:   profile.StateFailed,
				Free:    &heap.FreeSummary{Region: "HEAP_SLOW", Partial: true},
				Partial: true,
				Error:   "free list cycle",
				Err:     errors.New("free list cycle"),
			},
		},
		Usage: []profile.UsageRecord{
			{Owner: 3, Label: "audio", HeapBytes: 384},
			{Owner: profile.NoTask, Label: "No task"},
		},
		Unknown:     &profile.UsageRecord{Owner: profile.UnknownOwner, Label: "Unknown (not in task list)"},
		Watermarks:  &heap.Watermarks{Total: 4096, Free: 600, MinFree: 320},
		Diagnostics: diags,
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{}).Report(sampleReport())
	out := buf.String()

	for _, want := range []string{
		"DM heaps, processor 0 (snapshot)",
		"HEAP_MAIN", "0x00004000", "4.0 KiB", "512 B", "384 B", "AGGREGATED",
		"HEAP_SHARED", "size is zero", "CATALOGING",
		"HEAP_SLOW", "REGION_FAILED", "free list cycle",
		"Usage by owner", "0x03", "audio", "100.0%", "No task",
		"Total 4.0 KiB, free 512 B, allocated 384 B",
		"Allocator reports 600 B free, minimum 320 B of 4.0 KiB",
		"Issues: 1 critical, 0 errors, 0 warnings, 0 info",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[", "no styling without Color")
	assert.NotContains(t, out, "Referenced allocations")
}

func TestReport_References(t *testing.T) {
	rep := sampleReport()
	refs := profile.NewReferenceSet()
	refs.AddTransform(profile.TransformRef{ID: 1, Title: "transform 0x0001", Data: 0x4308})
	refs.Match(heap.Block{
		BlockHeader: heap.BlockHeader{Address: 0x4300, Payload: 0x4308, Length: 128},
		Region:      "HEAP_MAIN",
		Kind:        heap.KindData,
	})
	refs.AddPool(profile.PoolRef{Pointer: 0x4808})
	refs.Match(heap.Block{
		BlockHeader: heap.BlockHeader{Address: 0x4804, Payload: 0x4808, Length: 48},
		Region:      "POOL_1",
		Kind:        heap.KindPool,
	})
	rep.Pools = refs.Matches(profile.RefPool)
	rep.Transforms = refs.Matches(profile.RefTransform)

	var buf bytes.Buffer
	New(&buf, Options{}).Report(rep)
	out := buf.String()
	assert.Contains(t, out, "Referenced allocations")
	assert.Contains(t, out, "0x00004308")
	assert.Contains(t, out, "transform 0x0001 data")
	assert.Contains(t, out, "48 B")
	assert.Contains(t, out, "POOL_1")
	assert.Contains(t, out, "referenced 176 B")
}

func TestDiagnostics_Formats(t *testing.T) {
	d := sampleReport().Diagnostics

	var buf bytes.Buffer
	p := New(&buf, Options{})
	require.NoError(t, p.Diagnostics(d, "compact"))
	assert.Contains(t, buf.String(), "0x00006010 [CRITICAL/HEAP_SLOW/STRUCTURE]")

	buf.Reset()
	require.NoError(t, p.Diagnostics(d, "json"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Error(t, p.Diagnostics(d, "hex"))
}

func TestBlocksAndFreeList(t *testing.T) {
	rr := profile.RegionReport{
		Region: heap.HeapRegion{Name: "HEAP_MAIN"},
		Blocks: []heap.Block{
			{BlockHeader: heap.BlockHeader{Address: 0x4200, Payload: 0x4208, Length: 256, Owner: 3, Tagged: true}},
			{BlockHeader: heap.BlockHeader{
				Address: 0x4300, Payload: 0x4310, Length: 128,
				Debug: &heap.DebugInfo{Hint: "audio.c:42"},
			}},
		},
		Corrupt: []heap.CorruptEntry{{Address: 0x4400, Issue: "invalid or corrupt entry: size 0"}},
	}
	var buf bytes.Buffer
	p := New(&buf, Options{})
	p.Blocks(rr)
	p.FreeList(&heap.FreeSummary{
		Region:  "HEAP_MAIN",
		Total:   512,
		Nodes:   []heap.FreeListNode{{Address: 0x4000, Length: 512}},
		Foreign: 1,
	})
	out := buf.String()

	assert.Contains(t, out, "HEAP_MAIN blocks (2)")
	assert.Contains(t, out, "0x00004208")
	assert.Contains(t, out, "audio.c:42")
	assert.Contains(t, out, "corrupt 0x00004400")
	assert.Contains(t, out, "HEAP_MAIN free list (512 B)")
	assert.Contains(t, out, "1 node(s) belong to other regions")
}

func TestOverview(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{}).Overview(&profile.Overview{
		Layout: "PM",
		Regions: []profile.RegionFree{
			{
				Region: heap.HeapRegion{Name: "PM_HEAP_0", Label: "Main", Start: 0x100, End: 0x4FF, Size: 1024, Available: true},
				Free:   &heap.FreeSummary{Total: 256},
			},
			{Region: heap.HeapRegion{Name: "PM_HEAP_1", Reason: "processor not booted"}},
		},
		TotalSize: 1024,
		TotalFree: 256,
	})
	out := buf.String()
	assert.Contains(t, out, "PM heaps, processor 0")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "processor not booted")
	assert.Contains(t, out, "Total 1.0 KiB, free 256 B")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "-", Bytes(-1))
	assert.Equal(t, "1.5 KiB", Bytes(1536))
	assert.Equal(t, "12,345", Count(12345))
	assert.Equal(t, "0x0000ABCD", Addr(0xABCD))
	assert.Equal(t, "-", Percent(1, 0))
	assert.Equal(t, "25.0%", Percent(1, 4))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))
	var decoded struct {
		Layout  string `json:"layout"`
		Regions []struct {
			State string `json:"state"`
		} `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "DM", decoded.Layout)
	require.Len(t, decoded.Regions, 3)
	assert.Equal(t, "REGION_FAILED", decoded.Regions[2].State)
}

func TestCatalog(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{}).Catalog("pool", []heap.HeapRegion{
		{Name: "POOL_0", Label: "Pool 0", Kind: heap.KindPool, Start: 0x800, End: 0x87F, Size: 128, BlockSize: 16, Available: true},
		{Name: "PM_HEAP_1", Number: 1, Kind: heap.KindInstruction, Start: 0x100, End: 0x4FF, Size: 768, Available: true,
			Spans: []heap.Span{{Start: 0x100, Size: 256}, {Start: 0x300, Size: 512}}},
		{Name: "POOL_2", Number: 2, Reason: "configuration missing"},
	})
	out := buf.String()
	assert.Contains(t, out, "pool regions")
	assert.Contains(t, out, "8 x 16 B")
	assert.Contains(t, out, "0x00000300+512 B")
	assert.Contains(t, out, "configuration missing")
}
