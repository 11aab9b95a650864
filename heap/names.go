package heap

// Names holds the firmware symbol names the layouts read. Every field has a
// default; override individual names for builds that rename them.
type Names struct {
	// Data-memory heaps.
	HeapEnum        string
	HeapInvalid     string
	HeapInfoList    string
	HeapInfoCurrent string
	HeapInfoType    string
	HeapNode        string
	ExtmemCntrl     string
	ExtmemType      string
	SharedStateType string
	SharedStateMeta string

	// Instruction-memory heaps.
	PMBlockEnum     string
	PMBlockCount    string
	PMHeapBlocks    string
	PMHeapBlockType string
	PMFreeLists     string
	PMNode          string
	PMCodeStart     string
	PMHeapStartAddr string
	PMReservedSize  string
	PresentCores    string

	// Fixed-size pools.
	PoolInfo     string
	PoolInfoType string
	PoolCount    string
	PoolNode     string

	// Owner profiling.
	ProfilingEnum string
	PatchStart    string
	PatchEnd      string
}

// DefaultNames returns the symbol names used by current firmware.
func DefaultNames() Names {
	return Names{
		HeapEnum:        "heap_names",
		HeapInvalid:     "HEAP_INVALID",
		HeapInfoList:    "L_processor_heap_info_list",
		HeapInfoCurrent: "L_pheap_info",
		HeapInfoType:    "processor_heap_info",
		HeapNode:        "mem_node",
		ExtmemCntrl:     "$_extmem_cntrl",
		ExtmemType:      "EXTMEM_CNTRL_BLOCK",
		SharedStateType: "endpoint_shadow_state",
		SharedStateMeta: "meta_channel_id",

		PMBlockEnum:     "PM_BLOCK",
		PMBlockCount:    "NUMBER_PM_BLOCKS",
		PMHeapBlocks:    "$_pm_heap_block",
		PMHeapBlockType: "pm_heap_block",
		PMFreeLists:     "L_freelist_pm",
		PMNode:          "pm_mem_node",
		PMCodeStart:     "$PM_RAM_P0_CODE_START",
		PMHeapStartAddr: "$__pm_heap_start_addr",
		PMReservedSize:  "L_pm_reserved_size",
		PresentCores:    "$_proc_number_present_cores",

		PoolInfo:     "L_pool_info",
		PoolInfoType: "pool_info",
		PoolCount:    "L_num_pools",
		PoolNode:     "pool_block",

		ProfilingEnum: "DMPROFILING_OWNER",
		PatchStart:    "$PATCH_RESERVED_DM_START",
		PatchEnd:      "$PATCH_RESERVED_DM_END",
	}
}

// withDefaults fills empty fields from DefaultNames.
func (n Names) withDefaults() Names {
	d := DefaultNames()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&n.HeapEnum, d.HeapEnum)
	fill(&n.HeapInvalid, d.HeapInvalid)
	fill(&n.HeapInfoList, d.HeapInfoList)
	fill(&n.HeapInfoCurrent, d.HeapInfoCurrent)
	fill(&n.HeapInfoType, d.HeapInfoType)
	fill(&n.HeapNode, d.HeapNode)
	fill(&n.ExtmemCntrl, d.ExtmemCntrl)
	fill(&n.ExtmemType, d.ExtmemType)
	fill(&n.SharedStateType, d.SharedStateType)
	fill(&n.SharedStateMeta, d.SharedStateMeta)
	fill(&n.PMBlockEnum, d.PMBlockEnum)
	fill(&n.PMBlockCount, d.PMBlockCount)
	fill(&n.PMHeapBlocks, d.PMHeapBlocks)
	fill(&n.PMHeapBlockType, d.PMHeapBlockType)
	fill(&n.PMFreeLists, d.PMFreeLists)
	fill(&n.PMNode, d.PMNode)
	fill(&n.PMCodeStart, d.PMCodeStart)
	fill(&n.PMHeapStartAddr, d.PMHeapStartAddr)
	fill(&n.PMReservedSize, d.PMReservedSize)
	fill(&n.PresentCores, d.PresentCores)
	fill(&n.PoolInfo, d.PoolInfo)
	fill(&n.PoolInfoType, d.PoolInfoType)
	fill(&n.PoolCount, d.PoolCount)
	fill(&n.PoolNode, d.PoolNode)
	fill(&n.ProfilingEnum, d.ProfilingEnum)
	fill(&n.PatchStart, d.PatchStart)
	fill(&n.PatchEnd, d.PatchEnd)
	return n
}

// regionName pairs an enum member with its display label.
type regionName struct {
	enum  string
	label string
}

const (
	heapMain   = "HEAP_MAIN"
	heapShared = "HEAP_SHARED"
	heapSlow   = "HEAP_SLOW"
	heapExtra  = "HEAP_EXTRA"
	heapNVRAM  = "HEAP_NVRAM"
	heapExt    = "HEAP_EXT"

	pmBlockP0     = "PM_BLOCK_P0"
	pmBlockP1     = "PM_BLOCK_P1"
	pmBlockSlowP0 = "PM_BLOCK_SLOW_P0"
	pmBlockSlowP1 = "PM_BLOCK_SLOW_P1"
	pmBlockAddl   = "PM_BLOCK_ADDL"
)

var dmRegionNames = []regionName{
	{heapMain, "Main heap"},
	{heapShared, "Shared heap"},
	{heapSlow, "Slow heap"},
	{heapExtra, "Extra heap"},
	{heapNVRAM, "DM for PM heap"},
	{heapExt, "External heap"},
}

var pmRegionNames = []regionName{
	{pmBlockP0, "PM heap P0"},
	{pmBlockP1, "PM heap P1"},
	{pmBlockSlowP0, "PM slow heap P0"},
	{pmBlockSlowP1, "PM slow heap P1"},
	{pmBlockAddl, "PM additional heap"},
}
