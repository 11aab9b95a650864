package testutil

import (
	"github.com/joshuapare/heapkit/target"
)

const magic = 0xabcd01

// Tag combines the header magic with an owner id.
func Tag(owner int) uint32 { return uint32(owner)<<24 | magic }

// DMOptions selects data-memory heap build features.
type DMOptions struct {
	Debug     bool // nodes carry file and line
	Profiling bool // headers carry owner tags
}

// WithDMHeaps registers the data-memory heap types, enum and variables.
// Node layout: length at +0, u.magic/u.next at +4, and in debug builds file
// at +8 and line at +12.
func (b *Builder) WithDMHeaps(opts DMOptions) *Builder {
	node := map[string]target.FieldLayout{
		"length":  word(0),
		"u.magic": word(4),
		"u.next":  word(4),
	}
	size := 8
	if opts.Debug {
		node["file"] = word(8)
		node["line"] = word(12)
		size = 16
	}
	b.Type("mem_node", size, node)
	b.Type("heap_config", heapConfigSize, map[string]target.FieldLayout{
		"heap_start": word(0),
		"heap_end":   word(4),
		"heap_size":  word(8),
		"heap_guard": word(12),
	})
	b.Type("processor_heap_info", heapInfoSize, map[string]target.FieldLayout{
		"heap":                {Offset: 0, Size: heapConfigSize, Count: heapSlots, Type: "heap_config"},
		"freelist":            {Offset: 96, Size: 4, Count: heapSlots},
		"heap_debug_free":     word(120),
		"heap_debug_min_free": word(124),
	})
	b.Type("EXTMEM_CNTRL_BLOCK", 4, map[string]target.FieldLayout{"cur_clk": word(0)})
	b.Enum("heap_names", map[string]int64{
		"HEAP_MAIN":    0,
		"HEAP_SHARED":  1,
		"HEAP_SLOW":    2,
		"HEAP_EXTRA":   3,
		"HEAP_NVRAM":   4,
		"HEAP_EXT":     5,
		"HEAP_INVALID": 6,
	})
	if opts.Profiling {
		b.Enum("DMPROFILING_OWNER", map[string]int64{"DMPROFILING_OWNER_NONE": 0xFF})
	}
	b.Variable("L_processor_heap_info_list", HeapInfoListAddr, "processor_heap_info", 2*heapInfoSize)
	b.Variable("L_pheap_info", HeapInfoCurrentAddr, "", 4)
	return b
}

// SetDMHeap configures heap slot id of processor as [start, start+size)
// with the given free-list head. The guard word is set, so extra heaps are
// powered.
func (b *Builder) SetDMHeap(processor, id int, start target.Address, size int, head target.Address) *Builder {
	b.tb.Helper()
	info := HeapInfoListAddr + target.Address(processor*heapInfoSize)
	cfg := info + target.Address(id*heapConfigSize)
	b.Words(target.SpaceDM, cfg, start, start+target.Address(size), uint32(size), 1)
	return b.DM(info+96+target.Address(id*4), head)
}

// SetDMGuard overwrites the guard word of heap slot id.
func (b *Builder) SetDMGuard(processor, id int, guard uint32) *Builder {
	b.tb.Helper()
	info := HeapInfoListAddr + target.Address(processor*heapInfoSize)
	return b.DM(info+target.Address(id*heapConfigSize)+12, guard)
}

// SetWatermarks stores the free counters of processor and points the
// current-info variable at it.
func (b *Builder) SetWatermarks(processor int, free, minFree uint32) *Builder {
	b.tb.Helper()
	info := HeapInfoListAddr + target.Address(processor*heapInfoSize)
	b.DM(info+120, free).DM(info+124, minFree)
	return b.DM(HeapInfoCurrentAddr, info)
}

// SetExtmem registers the external memory controller with clock cur.
func (b *Builder) SetExtmem(cur uint32) *Builder {
	b.tb.Helper()
	b.Variable("$_extmem_cntrl", ExtmemCntrlAddr, "", 4)
	return b.DM(ExtmemCntrlAddr, ExtmemBlockAddr).DM(ExtmemBlockAddr, cur)
}

// Node writes an allocated data-memory header.
func (b *Builder) Node(addr target.Address, length, owner int) *Builder {
	b.tb.Helper()
	return b.Words(target.SpaceDM, addr, uint32(length), Tag(owner))
}

// UntaggedNode writes an allocated header without an owner tag.
func (b *Builder) UntaggedNode(addr target.Address, length int) *Builder {
	b.tb.Helper()
	return b.Words(target.SpaceDM, addr, uint32(length), magic)
}

// DebugNode writes an allocated debug header with its allocation site.
func (b *Builder) DebugNode(addr target.Address, length, owner int, file target.Address, line int) *Builder {
	b.tb.Helper()
	return b.Words(target.SpaceDM, addr, uint32(length), Tag(owner), file, uint32(line))
}

// FreeNode writes a free data-memory node.
func (b *Builder) FreeNode(addr target.Address, length int, next target.Address) *Builder {
	b.tb.Helper()
	return b.Words(target.SpaceDM, addr, uint32(length), next)
}

// WithPMHeaps registers the program-memory heap types, enum and variables.
// Node layout: length_32 (words) at +0, u.magic/u.next at +4.
func (b *Builder) WithPMHeaps() *Builder {
	b.Type("pm_mem_node", 8, map[string]target.FieldLayout{
		"length_32": word(0),
		"u.magic":   word(4),
		"u.next":    word(4),
	})
	b.Type("pm_heap_block", pmBlockSize, map[string]target.FieldLayout{
		"start_addr": word(0),
		"end_addr":   word(4),
		"offset":     word(8),
	})
	b.Enum("PM_BLOCK", map[string]int64{
		"PM_BLOCK_P0":      0,
		"PM_BLOCK_P1":      1,
		"PM_BLOCK_SLOW_P0": 2,
		"PM_BLOCK_SLOW_P1": 3,
		"PM_BLOCK_ADDL":    4,
		"NUMBER_PM_BLOCKS": 5,
	})
	b.Variable("$_pm_heap_block", PMHeapBlocksAddr, "pm_heap_block", 5*pmBlockSize)
	b.Variable("L_freelist_pm", PMFreeListsAddr, "", 5*4)
	return b
}

// SetPMHeap configures PM block id. Addresses are stored with offset added,
// as the firmware does.
func (b *Builder) SetPMHeap(id int, start, end, offset, head target.Address) *Builder {
	b.tb.Helper()
	raw := func(a target.Address) uint32 {
		if a == 0 {
			return 0
		}
		return a + offset
	}
	b.Words(target.SpaceDM, PMHeapBlocksAddr+target.Address(id*pmBlockSize), raw(start), raw(end), offset)
	return b.DM(PMFreeListsAddr+target.Address(id*4), raw(head))
}

// SetPresentCores records the number of booted processors.
func (b *Builder) SetPresentCores(n int) *Builder {
	b.tb.Helper()
	b.Variable("$_proc_number_present_cores", PresentCoresAddr, "", 4)
	return b.DM(PresentCoresAddr, uint32(n))
}

// SetPMCodeGap declares the reserved code area of the P0 heap.
func (b *Builder) SetPMCodeGap(codeStart, codeEnd target.Address, patch uint32) *Builder {
	b.tb.Helper()
	b.Constant("$PM_RAM_P0_CODE_START", int64(codeStart))
	b.Constant("$__pm_heap_start_addr", int64(codeEnd))
	b.Variable("L_pm_reserved_size", PMReservedSizeAddr, "", 4)
	return b.DM(PMReservedSizeAddr, patch)
}

// PMNode writes an allocated program-memory header; words is the payload
// length in words.
func (b *Builder) PMNode(space target.Space, addr target.Address, words, owner int) *Builder {
	b.tb.Helper()
	return b.Words(space, addr, uint32(words), Tag(owner))
}

// PMFreeNode writes a free program-memory node.
func (b *Builder) PMFreeNode(space target.Space, addr target.Address, words int, next target.Address) *Builder {
	b.tb.Helper()
	return b.Words(space, addr, uint32(words), next)
}

// WithPools registers the pool types and variables for n pools.
// Block layout: u.magic/u.next at +0, payload at +4.
func (b *Builder) WithPools(n int) *Builder {
	b.tb.Helper()
	b.Type("pool_info", poolInfoSize, map[string]target.FieldLayout{
		"block_size": word(0),
		"num_blocks": word(4),
		"pool_start": word(8),
		"pool_end":   word(12),
		"free_list":  word(16),
	})
	b.Type("pool_block", 4, map[string]target.FieldLayout{
		"u.magic": word(0),
		"u.next":  word(0),
	})
	b.Variable("L_pool_info", PoolInfoAddr, "pool_info", n*poolInfoSize)
	b.Variable("L_num_pools", PoolCountAddr, "", 4)
	return b.DM(PoolCountAddr, uint32(n))
}

// SetPool configures pool i with numBlocks slots of blockSize units.
func (b *Builder) SetPool(i, blockSize, numBlocks int, start, head target.Address) *Builder {
	b.tb.Helper()
	end := start + target.Address(blockSize*numBlocks)
	return b.Words(target.SpaceDM, PoolInfoAddr+target.Address(i*poolInfoSize),
		uint32(blockSize), uint32(numBlocks), start, end, head)
}

// PoolBlock marks the pool slot at addr allocated to owner.
func (b *Builder) PoolBlock(addr target.Address, owner int) *Builder {
	b.tb.Helper()
	return b.DM(addr, Tag(owner))
}

// FreePoolBlock links the pool slot at addr into a free list.
func (b *Builder) FreePoolBlock(addr, next target.Address) *Builder {
	b.tb.Helper()
	return b.DM(addr, next)
}
