package testutil

import "github.com/joshuapare/heapkit/target"

// Fixed addresses of the synthetic control area. Every fixture places its
// variables inside [ControlBase, ControlBase+ControlSize) in data memory.
// Tests should use these constants instead of hardcoding addresses.
const (
	ControlBase target.Address = 0x0000
	ControlSize                = 0x1000

	HeapInfoCurrentAddr target.Address = 0x00F0
	PoolCountAddr       target.Address = 0x00F4
	ExtmemCntrlAddr     target.Address = 0x00F8
	PMReservedSizeAddr  target.Address = 0x00FC
	HeapInfoListAddr    target.Address = 0x0100 // two processors
	PresentCoresAddr    target.Address = 0x0200
	ExtmemBlockAddr     target.Address = 0x0210
	PMHeapBlocksAddr    target.Address = 0x0300
	PMFreeListsAddr     target.Address = 0x0340
	PoolInfoAddr        target.Address = 0x0400
	TaskQueuesAddr      target.Address = 0x0500
	BgIntQueuesAddr     target.Address = 0x0540
	TransformListAddr   target.Address = 0x0580
	StoredFilesAddr     target.Address = 0x0584
	FileCountAddr       target.Address = 0x0588
	FileOwnersAddr      target.Address = 0x058C

	// ScratchBase is free for test structures (tasks, transforms, files).
	ScratchBase target.Address = 0x0600
	// StringBase is free for NUL-terminated strings.
	StringBase target.Address = 0x0F00

	heapInfoSize   = 128
	heapConfigSize = 16
	heapSlots      = 6
	pmBlockSize    = 12
	poolInfoSize   = 20
	queueSize      = 8
	queueLevels    = 8
)
