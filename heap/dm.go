package heap

import (
	"context"
	"fmt"
	"math"

	"github.com/joshuapare/heapkit/target"
)

// DMLayout reads the variable-size heaps in data memory.
type DMLayout struct {
	layoutBase
}

// NewDMLayout returns the data-memory heap layout for t.
func NewDMLayout(t target.Target, opts ...Option) *DMLayout {
	return &DMLayout{layoutBase: newLayoutBase(t, opts)}
}

func (l *DMLayout) Name() string     { return "DM" }
func (l *DMLayout) Kind() MemoryKind { return KindData }

// Config implements HeapLayout.
func (l *DMLayout) Config(ctx context.Context) (*ResolvedConfig, error) {
	return l.config(ctx, l.resolve)
}

func (l *DMLayout) resolve(ctx context.Context) (*ResolvedConfig, error) {
	n := l.opts.names
	info, err := l.t.Type(n.HeapInfoType)
	if err != nil {
		if IsUnavailable(err) {
			return nil, &UnsupportedLayoutError{Layout: l.Name(), Missing: n.HeapInfoType}
		}
		return nil, err
	}
	if _, _, _, err := info.Resolve(l.t, "heap_debug_free"); err != nil {
		return nil, &UnsupportedLayoutError{Layout: l.Name(), Missing: n.HeapInfoType + ".heap_debug_free"}
	}
	members, err := l.t.Enum(n.HeapEnum)
	if err != nil {
		if IsUnavailable(err) {
			return nil, &UnsupportedLayoutError{Layout: l.Name(), Missing: n.HeapEnum}
		}
		return nil, err
	}
	cutoff, ok := members[n.HeapInvalid]
	if !ok {
		cutoff = math.MaxInt64
	}

	cfg, err := nodeGeometry(l.t, l.Name(), n.HeapNode)
	if err != nil {
		return nil, err
	}
	cfg.regionIDs = enumSlots(members, dmRegionNames, cutoff)
	if cfg.Profiling, err = DetectProfiling(ctx, l.t, n); err != nil {
		return nil, err
	}
	if shadow, err := l.t.Type(n.SharedStateType); err == nil {
		_, _, _, metaErr := shadow.Resolve(l.t, n.SharedStateMeta)
		cfg.CommonShared = metaErr != nil
	}
	return &cfg, nil
}

// RegionCount implements HeapLayout.
func (l *DMLayout) RegionCount(ctx context.Context) (int, error) {
	if _, err := l.Config(ctx); err != nil {
		return 0, err
	}
	return len(dmRegionNames), nil
}

// MagicOffset implements HeapLayout.
func (l *DMLayout) MagicOffset(ctx context.Context) (int, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.MagicOffset, nil
}

// heapInfo returns the heap configuration block of processor.
func (l *DMLayout) heapInfo(processor int) (target.Struct, error) {
	n := l.opts.names
	v, err := l.t.Variable(n.HeapInfoList)
	if err != nil {
		return target.Struct{}, err
	}
	s, err := target.Cast(l.t, v.Address, n.HeapInfoType)
	if err != nil {
		return target.Struct{}, err
	}
	if s.Type.Size > 0 && v.Size > 0 && processor >= v.Size/s.Type.Size {
		return target.Struct{}, fmt.Errorf("%w: %s[%d]", target.ErrNoMember, n.HeapInfoList, processor)
	}
	return s.Index(processor), nil
}

// RegionProperty implements HeapLayout.
func (l *DMLayout) RegionProperty(ctx context.Context, processor, n int) (HeapRegion, error) {
	if n < 0 || n >= len(dmRegionNames) {
		return HeapRegion{}, fmt.Errorf("%w: DM region %d", ErrNoRegion, n)
	}
	name := dmRegionNames[n]
	r := HeapRegion{Name: name.enum, Label: name.label, Number: n, Kind: KindData}

	cfg, err := l.Config(ctx)
	if err != nil {
		return r, err
	}
	id, ok := cfg.RegionID(n)
	if !ok {
		return r.unavailable("not present in this build"), nil
	}
	fail := func(err error) (HeapRegion, error) {
		if IsUnavailable(err) {
			return r.unavailable(fmt.Sprintf("configuration missing: %v", err)), nil
		}
		return r, err
	}

	switch name.enum {
	case heapNVRAM:
		return r.unavailable("reported by PM analysis"), nil
	case heapExt:
		running, err := l.extmemRunning(ctx)
		if err != nil {
			return fail(err)
		}
		if !running {
			return r.unavailable("external memory clock off"), nil
		}
	}

	proc := processor
	if name.enum == heapShared && cfg.CommonShared {
		proc = 0
	}
	info, err := l.heapInfo(proc)
	if err != nil {
		return fail(err)
	}
	hc, err := info.Member(fmt.Sprintf("heap[%d]", id))
	if err != nil {
		return fail(err)
	}
	start, err := hc.Uint(ctx, "heap_start")
	if err != nil {
		return fail(err)
	}
	end, err := hc.Uint(ctx, "heap_end")
	if err != nil {
		return fail(err)
	}
	size, err := hc.Uint(ctx, "heap_size")
	if err != nil {
		return fail(err)
	}

	r.Start = start
	if end > 0 {
		r.End = end - 1
	}
	if size == 0 {
		return r.unavailable("size 0"), nil
	}
	if name.enum == heapExtra {
		guard, err := hc.Uint(ctx, "heap_guard")
		if err != nil {
			return fail(err)
		}
		if guard == 0 {
			return r.unavailable("memory banks powered off"), nil
		}
	}
	head, err := info.Uint(ctx, fmt.Sprintf("freelist[%d]", id))
	if err != nil {
		return fail(err)
	}
	r.Size = int(size)
	r.Spans = []Span{{Start: start, Size: int(size)}}
	r.FreeListHead = head
	r.Available = true
	return r, nil
}

func (l *DMLayout) extmemRunning(ctx context.Context) (bool, error) {
	n := l.opts.names
	ptr, err := target.VariableValue(ctx, l.t, n.ExtmemCntrl)
	if err != nil {
		if IsUnavailable(err) {
			return false, nil
		}
		return false, err
	}
	if ptr == 0 {
		return false, nil
	}
	cntrl, err := target.Cast(l.t, ptr, n.ExtmemType)
	if err != nil {
		return false, err
	}
	clk, err := cntrl.Uint(ctx, "cur_clk")
	if err != nil {
		return false, err
	}
	return clk > 1, nil
}

func (l *DMLayout) node(ctx context.Context, addr target.Address) (target.Struct, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return target.Struct{}, err
	}
	return target.Cast(l.t, addr, cfg.NodeType)
}

// NodeLength implements HeapLayout.
func (l *DMLayout) NodeLength(ctx context.Context, _ HeapRegion, addr target.Address) (int, error) {
	s, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	v, err := s.Uint(ctx, "length")
	return int(v), err
}

// NodeNext implements HeapLayout.
func (l *DMLayout) NodeNext(ctx context.Context, _ HeapRegion, addr target.Address) (target.Address, error) {
	s, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.Uint(ctx, "u.next")
}

// NodeMagic implements HeapLayout.
func (l *DMLayout) NodeMagic(ctx context.Context, _ HeapRegion, addr target.Address) (uint32, error) {
	s, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.Uint(ctx, "u.magic")
}

// NodeDebug implements HeapLayout.
func (l *DMLayout) NodeDebug(ctx context.Context, _ HeapRegion, addr target.Address) (*DebugInfo, error) {
	cfg, err := l.Config(ctx)
	if err != nil || !cfg.DebugNodes {
		return nil, err
	}
	s, err := l.node(ctx, addr)
	if err != nil {
		return nil, err
	}
	file, err := s.Uint(ctx, "file")
	if err != nil {
		return nil, err
	}
	line, err := s.Uint(ctx, "line")
	if err != nil {
		return nil, err
	}
	return &DebugInfo{FileRef: file, Line: int(line)}, nil
}

// ReadSpan implements HeapLayout.
func (l *DMLayout) ReadSpan(ctx context.Context, _ HeapRegion, s Span) ([]uint32, error) {
	return l.t.ReadWords(ctx, target.SpaceDM, s.Start, s.Size/l.t.Arch().AddrPerWord)
}

// Watermarks are the allocator's own free-space counters.
type Watermarks struct {
	Total   int   `json:"total"`    // configured size of available regions
	Free    int64 `json:"free"`     // -1 when not available
	MinFree int64 `json:"min_free"` // -1 when not available
}

// Watermarks reads the current free and minimum-free counters.
func (l *DMLayout) Watermarks(ctx context.Context, processor int) (Watermarks, error) {
	w := Watermarks{Free: -1, MinFree: -1}
	c, err := NewCatalog(ctx, l, processor)
	if err != nil {
		return w, err
	}
	w.Total = c.TotalSize()

	n := l.opts.names
	ptr, err := target.VariableValue(ctx, l.t, n.HeapInfoCurrent)
	if err != nil {
		if IsUnavailable(err) {
			return w, nil
		}
		return w, err
	}
	if ptr == 0 {
		return w, nil
	}
	info, err := target.Cast(l.t, ptr, n.HeapInfoType)
	if err != nil {
		return w, nil
	}
	if v, err := info.Uint(ctx, "heap_debug_free"); err == nil {
		w.Free = int64(v)
	} else if !IsUnavailable(err) {
		return w, err
	}
	if v, err := info.Uint(ctx, "heap_debug_min_free"); err == nil {
		w.MinFree = int64(v)
	} else if !IsUnavailable(err) {
		return w, err
	}
	return w, nil
}
