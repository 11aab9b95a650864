// Package heap reconstructs allocator state from a read-only target.
//
// # Layouts
//
// A HeapLayout describes one allocator flavor:
//
//   - DMLayout: variable-size heaps in data memory
//   - PMLayout: variable-size heaps in program memory
//   - PoolLayout: fixed-size block pools
//
// Layouts resolve their configuration (region enum, node geometry, owner
// tagging) once per pass into a ResolvedConfig. In ModeSnapshot the result is
// kept for the life of the layout; in ModeLive it is dropped by BeginPass.
//
// # Walking and scanning
//
//	layout := heap.NewDMLayout(t)
//	cat, err := heap.NewCatalog(ctx, layout, 0)
//	if err != nil {
//	    return err
//	}
//	for _, r := range cat.Regions() {
//	    free, err := heap.WalkFreeList(ctx, layout, cat, r, heap.WalkOptions{})
//	    blocks, err := heap.ScanBlocks(ctx, layout, r, heap.ScanOptions{})
//	}
//
// Both operations are bounded and return partial results alongside a
// *CorruptionError or *target.AccessError when memory is inconsistent.
package heap
