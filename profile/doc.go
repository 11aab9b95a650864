// Package profile attributes heap and pool memory to the owners that hold it.
//
// A profiling pass walks every region of a target's data-memory heaps (and
// optionally its fixed-size pools) through the heap package, then decides
// an owner for each allocated block:
//
//  1. A block whose payload address is a known transform, pool or file
//     structure belongs to that reference. The match is recorded on the
//     ReferenceSet and counted once however many references share it.
//  2. Otherwise the owner tag in the block header names a task or
//     background interrupt from the owner list.
//  3. Anything else lands in the unknown bucket.
//
// # Discovery
//
// DiscoverOwners reads the scheduler's task and background-interrupt queues
// and DiscoverReferences reads the stream transforms, pool allocations and
// stored files, so a pass can run on a snapshot with no extra input:
//
//	owners, err := profile.DiscoverOwners(ctx, snap)
//	refs, err := profile.DiscoverReferences(ctx, snap)
//	p := profile.New(heap.NewDMLayout(snap), profile.WithPools(heap.NewPoolLayout(snap)))
//	rep, err := p.Profile(ctx, 0, owners, refs)
//
// # Regions
//
// Each region moves through CATALOGING, FREE_LIST_WALK, BLOCK_SCAN,
// CLASSIFYING and AGGREGATED. A read failure or structural corruption moves
// it to REGION_FAILED instead; the pass carries on with the next region and
// the failure is reported through Report.Err and the report's diagnostics.
package profile
