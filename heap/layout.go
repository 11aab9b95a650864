package heap

import (
	"context"

	"github.com/joshuapare/heapkit/target"
)

// HeapLayout abstracts one allocator flavor: how regions are configured and
// how a node is decoded. The walker and scanner only talk to this interface.
type HeapLayout interface {
	// Name is a short label for messages ("DM", "PM", "pool").
	Name() string
	Kind() MemoryKind
	Target() target.Target
	Mode() Mode

	// BeginPass marks the start of a pass. Live layouts drop cached
	// configuration here.
	BeginPass()
	// Config returns the configuration for the current pass, resolving it
	// if needed.
	Config(ctx context.Context) (*ResolvedConfig, error)

	// RegionCount returns the number of catalog slots.
	RegionCount(ctx context.Context) (int, error)
	// RegionProperty describes region n as seen from processor. Missing
	// configuration yields an unavailable region, not an error.
	RegionProperty(ctx context.Context, processor, n int) (HeapRegion, error)

	// MagicOffset is the word offset of the magic field within a node.
	MagicOffset(ctx context.Context) (int, error)
	NodeLength(ctx context.Context, r HeapRegion, addr target.Address) (int, error)
	NodeNext(ctx context.Context, r HeapRegion, addr target.Address) (target.Address, error)
	NodeMagic(ctx context.Context, r HeapRegion, addr target.Address) (uint32, error)
	// NodeDebug returns nil when nodes carry no debug information.
	NodeDebug(ctx context.Context, r HeapRegion, addr target.Address) (*DebugInfo, error)

	// ReadSpan reads a visible span of r as words.
	ReadSpan(ctx context.Context, r HeapRegion, s Span) ([]uint32, error)
}

var (
	_ HeapLayout = (*DMLayout)(nil)
	_ HeapLayout = (*PMLayout)(nil)
	_ HeapLayout = (*PoolLayout)(nil)
)
