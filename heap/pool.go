package heap

import (
	"context"
	"fmt"

	"github.com/joshuapare/heapkit/target"
)

// PoolLayout reads the fixed-size block pools. Each pool is one region;
// every block in it spans block_size units including its one-node header.
type PoolLayout struct {
	layoutBase
}

// NewPoolLayout returns the pool layout for t.
func NewPoolLayout(t target.Target, opts ...Option) *PoolLayout {
	return &PoolLayout{layoutBase: newLayoutBase(t, opts)}
}

func (l *PoolLayout) Name() string     { return "pool" }
func (l *PoolLayout) Kind() MemoryKind { return KindPool }

// Config implements HeapLayout.
func (l *PoolLayout) Config(ctx context.Context) (*ResolvedConfig, error) {
	return l.config(ctx, l.resolve)
}

func (l *PoolLayout) resolve(ctx context.Context) (*ResolvedConfig, error) {
	n := l.opts.names
	count, err := target.VariableValue(ctx, l.t, n.PoolCount)
	if err != nil {
		if !IsUnavailable(err) {
			return nil, err
		}
		count = 0
	}
	if count == 0 {
		return &ResolvedConfig{}, nil
	}
	if _, err := l.t.Type(n.PoolInfoType); err != nil {
		if IsUnavailable(err) {
			return nil, &UnsupportedLayoutError{Layout: l.Name(), Missing: n.PoolInfoType}
		}
		return nil, err
	}
	cfg, err := nodeGeometry(l.t, l.Name(), n.PoolNode)
	if err != nil {
		return nil, err
	}
	cfg.DebugNodes = false
	cfg.PoolCount = int(count)
	if cfg.Profiling, err = DetectProfiling(ctx, l.t, n); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RegionCount implements HeapLayout.
func (l *PoolLayout) RegionCount(ctx context.Context) (int, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.PoolCount, nil
}

// MagicOffset implements HeapLayout.
func (l *PoolLayout) MagicOffset(ctx context.Context) (int, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.MagicOffset, nil
}

// RegionProperty implements HeapLayout. Pools are shared, so processor is
// ignored.
func (l *PoolLayout) RegionProperty(ctx context.Context, _ int, n int) (HeapRegion, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return HeapRegion{}, err
	}
	if n < 0 || n >= cfg.PoolCount {
		return HeapRegion{}, fmt.Errorf("%w: pool %d", ErrNoRegion, n)
	}
	r := HeapRegion{
		Name:   fmt.Sprintf("POOL_%d", n),
		Label:  fmt.Sprintf("Pool %d", n),
		Number: n,
		Kind:   KindPool,
	}
	fail := func(err error) (HeapRegion, error) {
		if IsUnavailable(err) {
			return r.unavailable(fmt.Sprintf("configuration missing: %v", err)), nil
		}
		return r, err
	}

	names := l.opts.names
	v, err := l.t.Variable(names.PoolInfo)
	if err != nil {
		return fail(err)
	}
	info, err := target.Cast(l.t, v.Address, names.PoolInfoType)
	if err != nil {
		return fail(err)
	}
	info = info.Index(n)

	var fields [5]uint32
	for i, path := range []string{"block_size", "num_blocks", "pool_start", "pool_end", "free_list"} {
		if fields[i], err = info.Uint(ctx, path); err != nil {
			return fail(err)
		}
	}
	blockSize, numBlocks, start, end, head := fields[0], fields[1], fields[2], fields[3], fields[4]

	r.Label = fmt.Sprintf("Pool %d (%d-unit blocks)", n, blockSize)
	r.BlockSize = int(blockSize)
	r.Start = start
	if end > 0 {
		r.End = end - 1
	}
	if numBlocks == 0 || blockSize == 0 || end <= start {
		return r.unavailable("no blocks"), nil
	}
	size := int(end - start)
	r.Size = size
	r.Spans = []Span{{Start: start, Size: size}}
	r.FreeListHead = head
	r.Available = true
	return r, nil
}

func (l *PoolLayout) node(ctx context.Context, addr target.Address) (target.Struct, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return target.Struct{}, err
	}
	return target.Cast(l.t, addr, cfg.NodeType)
}

// NodeLength implements HeapLayout. The length is the payload of one slot.
func (l *PoolLayout) NodeLength(ctx context.Context, r HeapRegion, _ target.Address) (int, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return 0, err
	}
	return max(r.BlockSize-cfg.PayloadOffset, 0), nil
}

// NodeNext implements HeapLayout.
func (l *PoolLayout) NodeNext(ctx context.Context, _ HeapRegion, addr target.Address) (target.Address, error) {
	s, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.Uint(ctx, "u.next")
}

// NodeMagic implements HeapLayout.
func (l *PoolLayout) NodeMagic(ctx context.Context, _ HeapRegion, addr target.Address) (uint32, error) {
	s, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.Uint(ctx, "u.magic")
}

// NodeDebug implements HeapLayout.
func (l *PoolLayout) NodeDebug(context.Context, HeapRegion, target.Address) (*DebugInfo, error) {
	return nil, nil
}

// ReadSpan implements HeapLayout.
func (l *PoolLayout) ReadSpan(ctx context.Context, _ HeapRegion, s Span) ([]uint32, error) {
	return l.t.ReadWords(ctx, target.SpaceDM, s.Start, s.Size/l.t.Arch().AddrPerWord)
}
