package heap

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/target"
)

// DefaultMaxFreeNodes bounds a free-list walk independently of cycle
// detection.
const DefaultMaxFreeNodes = 1 << 20

// FreeListNode is one visited free-list entry.
type FreeListNode struct {
	Address target.Address `json:"address"`
	Length  int            `json:"length"`
	Next    target.Address `json:"next"`
}

// FreeSummary is the result of walking one region's free list.
type FreeSummary struct {
	Region   string         `json:"region"`
	Total    int            `json:"total"`    // reported free bytes, after overhead
	Overhead int            `json:"overhead"` // guard bytes subtracted from Total
	Nodes    []FreeListNode `json:"nodes"`
	Foreign  int            `json:"foreign"` // nodes visited that belong elsewhere
	Partial  bool           `json:"partial"`
	Err      error          `json:"-"`
}

// WalkOptions bounds a free-list walk.
type WalkOptions struct {
	MaxNodes int // 0 means DefaultMaxFreeNodes
}

// WalkFreeList follows region's free list and totals the nodes inside it.
// Nodes on a shared chain that belong to other regions are visited but not
// counted. On corruption or a read failure the totals gathered so far are
// returned with Partial set, along with the error.
func WalkFreeList(ctx context.Context, layout HeapLayout, catalog *Catalog, r HeapRegion, opts WalkOptions) (*FreeSummary, error) {
	sum := &FreeSummary{Region: r.Name, Nodes: []FreeListNode{}}
	if !r.Available {
		return sum, nil
	}
	cfg, err := layout.Config(ctx)
	if err != nil {
		return sum, err
	}
	limit := opts.MaxNodes
	if limit <= 0 {
		limit = DefaultMaxFreeNodes
	}

	raw := 0
	fail := func(err error) (*FreeSummary, error) {
		sum.Total = raw
		sum.Partial = true
		sum.Err = err
		logger.Warn("free list walk aborted", "region", r.Name, "error", err)
		return sum, err
	}

	seen := mapset.NewThreadUnsafeSet[target.Address]()
	for addr := r.FreeListHead; addr != 0; {
		if seen.Contains(addr) {
			return fail(&CorruptionError{Region: r.Name, Addr: addr, Err: ErrFreeListCycle})
		}
		if seen.Cardinality() >= limit {
			return fail(&CorruptionError{Region: r.Name, Addr: addr, Err: ErrFreeListTooLong})
		}
		seen.Add(addr)
		if !catalog.IsAddressValid(addr) {
			return fail(&CorruptionError{Region: r.Name, Addr: addr, Err: ErrNodeOutOfBounds})
		}
		length, err := layout.NodeLength(ctx, r, addr)
		if err != nil {
			return fail(err)
		}
		next, err := layout.NodeNext(ctx, r, addr)
		if err != nil {
			return fail(err)
		}
		if r.Contains(addr) {
			sum.Nodes = append(sum.Nodes, FreeListNode{Address: addr, Length: length, Next: next})
			raw += length
		} else {
			sum.Foreign++
		}
		addr = next
	}

	sum.Total = raw
	if cfg.DebugNodes {
		sum.Overhead = min(2*layout.Target().Arch().AddrPerWord, raw)
		sum.Total = raw - sum.Overhead
	}
	return sum, nil
}
