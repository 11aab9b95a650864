package heap

import (
	"context"
	"fmt"
	"math"

	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/target"
)

const (
	// WindowPMRAM is the data-memory view of program RAM.
	WindowPMRAM = "PMRAM"
	// WindowDMAsPM is data memory mapped into program space.
	WindowDMAsPM = "DM_AS_PM"
)

// PMLayout reads the variable-size heaps in program memory. Nodes in the
// DM_AS_PM window are read through data memory.
type PMLayout struct {
	layoutBase
}

// NewPMLayout returns the program-memory heap layout for t.
func NewPMLayout(t target.Target, opts ...Option) *PMLayout {
	return &PMLayout{layoutBase: newLayoutBase(t, opts)}
}

func (l *PMLayout) Name() string     { return "PM" }
func (l *PMLayout) Kind() MemoryKind { return KindInstruction }

// Config implements HeapLayout.
func (l *PMLayout) Config(ctx context.Context) (*ResolvedConfig, error) {
	return l.config(ctx, l.resolve)
}

func (l *PMLayout) resolve(ctx context.Context) (*ResolvedConfig, error) {
	n := l.opts.names
	members, err := l.t.Enum(n.PMBlockEnum)
	if err != nil {
		if IsUnavailable(err) {
			return nil, &UnsupportedLayoutError{Layout: l.Name(), Missing: n.PMBlockEnum}
		}
		return nil, err
	}
	cutoff, ok := members[n.PMBlockCount]
	if !ok {
		cutoff = math.MaxInt64
	}
	cfg, err := nodeGeometry(l.t, l.Name(), n.PMNode)
	if err != nil {
		return nil, err
	}
	cfg.DebugNodes = false
	cfg.regionIDs = enumSlots(members, pmRegionNames, cutoff)
	if cfg.Profiling, err = DetectProfiling(ctx, l.t, n); err != nil {
		return nil, err
	}

	codeStart, startErr := l.t.Constant(n.PMCodeStart)
	codeEnd, endErr := l.t.Constant(n.PMHeapStartAddr)
	if startErr == nil && endErr == nil && codeEnd >= codeStart {
		cfg.HasCodeGap = true
		cfg.CodeStart = target.Address(codeStart)
		cfg.CodeEnd = target.Address(codeEnd)
		patch, err := target.VariableValue(ctx, l.t, n.PMReservedSize)
		if err != nil && !IsUnavailable(err) {
			return nil, err
		}
		cfg.PatchSize = patch
	}
	return &cfg, nil
}

// RegionCount implements HeapLayout.
func (l *PMLayout) RegionCount(ctx context.Context) (int, error) {
	if _, err := l.Config(ctx); err != nil {
		return 0, err
	}
	return len(pmRegionNames), nil
}

// MagicOffset implements HeapLayout.
func (l *PMLayout) MagicOffset(ctx context.Context) (int, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.MagicOffset, nil
}

// unoffset removes the load offset from a configured address.
func unoffset(addr, offset uint32) target.Address {
	if addr == 0 {
		return 0
	}
	return addr - offset
}

// RegionProperty implements HeapLayout. Control variables exist only on
// processor 0, so every other processor sees no regions.
func (l *PMLayout) RegionProperty(ctx context.Context, processor, n int) (HeapRegion, error) {
	if n < 0 || n >= len(pmRegionNames) {
		return HeapRegion{}, fmt.Errorf("%w: PM region %d", ErrNoRegion, n)
	}
	name := pmRegionNames[n]
	r := HeapRegion{Name: name.enum, Label: name.label, Number: n, Kind: KindInstruction}

	cfg, err := l.Config(ctx)
	if err != nil {
		return r, err
	}
	if processor != 0 {
		return r.unavailable("PM heap is managed by processor 0"), nil
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

	names := l.opts.names
	blocks, err := l.t.Variable(names.PMHeapBlocks)
	if err != nil {
		return fail(err)
	}
	block, err := target.Cast(l.t, blocks.Address, names.PMHeapBlockType)
	if err != nil {
		return fail(err)
	}
	block = block.Index(int(id))
	offset, err := block.Uint(ctx, "offset")
	if err != nil {
		return fail(err)
	}
	rawStart, err := block.Uint(ctx, "start_addr")
	if err != nil {
		return fail(err)
	}
	rawEnd, err := block.Uint(ctx, "end_addr")
	if err != nil {
		return fail(err)
	}
	heads, err := l.t.Variable(names.PMFreeLists)
	if err != nil {
		return fail(err)
	}
	apw := l.t.Arch().AddrPerWord
	rawHead, err := target.ReadWord(ctx, l.t, target.SpaceDM, heads.Address+target.Address(int(id)*apw))
	if err != nil {
		return fail(err)
	}

	start, end := unoffset(rawStart, offset), unoffset(rawEnd, offset)
	r.Start = start
	if end > 0 {
		r.End = end - 1
	}
	if end <= start {
		return r.unavailable("size 0"), nil
	}
	size := int(end - start)

	if name.enum == pmBlockP1 || name.enum == pmBlockSlowP1 {
		booted, err := l.booted(ctx, 1)
		if err != nil {
			return fail(err)
		}
		if !booted {
			return r.unavailable("processor 1 not booted"), nil
		}
	}

	r.Spans = []Span{{Start: start, Size: size}}
	if name.enum == pmBlockP0 && cfg.HasCodeGap && start < cfg.CodeStart && cfg.CodeStart < end {
		// The heap is split around the code and patch area.
		resume := cfg.CodeEnd + target.Address(cfg.PatchSize)
		r.Spans = []Span{{Start: start, Size: int(cfg.CodeStart - start)}}
		if resume < end {
			r.Spans = append(r.Spans, Span{Start: resume, Size: int(end - resume)})
		}
		size = 0
		for _, sp := range r.Spans {
			size += sp.Size
		}
		logger.Debug("discontinuous PM heap", "region", r.Name, "code_start", cfg.CodeStart, "resume", resume)
	}
	r.Size = size
	r.FreeListHead = unoffset(rawHead, offset)
	r.Available = true
	return r, nil
}

// booted reports whether processor has started. Without a boot-state
// source or present-cores variable the processor is assumed booted.
func (l *PMLayout) booted(ctx context.Context, processor int) (bool, error) {
	if l.opts.boot != nil {
		return l.opts.boot(ctx, processor)
	}
	cores, err := target.VariableValue(ctx, l.t, l.opts.names.PresentCores)
	if err != nil {
		if IsUnavailable(err) {
			return true, nil
		}
		return false, err
	}
	return int(cores) > processor, nil
}

// locate returns where a program-memory node is stored.
func (l *PMLayout) locate(addr target.Address) (target.Space, target.Address, bool) {
	if w, ok := l.t.Arch().Window(WindowDMAsPM); ok && w.ContainsPM(addr) {
		return target.SpaceDM, w.ToDM(addr), true
	}
	return target.SpacePM, addr, false
}

func (l *PMLayout) node(ctx context.Context, addr target.Address) (target.Struct, bool, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return target.Struct{}, false, err
	}
	space, at, windowed := l.locate(addr)
	s, err := target.CastIn(l.t, space, at, cfg.NodeType)
	return s, windowed, err
}

// NodeLength implements HeapLayout. Lengths are stored in words.
func (l *PMLayout) NodeLength(ctx context.Context, _ HeapRegion, addr target.Address) (int, error) {
	s, _, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	v, err := s.Uint(ctx, "length_32")
	return int(v) * l.t.Arch().AddrPerWord, err
}

// NodeNext implements HeapLayout. Links are stored as data-memory views and
// translated back through the window the node lives in.
func (l *PMLayout) NodeNext(ctx context.Context, _ HeapRegion, addr target.Address) (target.Address, error) {
	s, windowed, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	next, err := s.Uint(ctx, "u.next")
	if err != nil || next == 0 {
		return next, err
	}
	name := WindowPMRAM
	if windowed {
		name = WindowDMAsPM
	}
	if w, ok := l.t.Arch().Window(name); ok {
		return w.ToPM(next), nil
	}
	return next, nil
}

// NodeMagic implements HeapLayout.
func (l *PMLayout) NodeMagic(ctx context.Context, _ HeapRegion, addr target.Address) (uint32, error) {
	s, _, err := l.node(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.Uint(ctx, "u.magic")
}

// NodeDebug implements HeapLayout. Program-memory nodes carry no debug
// information.
func (l *PMLayout) NodeDebug(context.Context, HeapRegion, target.Address) (*DebugInfo, error) {
	return nil, nil
}

// ReadSpan implements HeapLayout.
func (l *PMLayout) ReadSpan(ctx context.Context, _ HeapRegion, s Span) ([]uint32, error) {
	space, at, _ := l.locate(s.Start)
	return l.t.ReadWords(ctx, space, at, s.Size/l.t.Arch().AddrPerWord)
}

// Watermarks returns the configured total. The PM allocator keeps no
// free-space counters.
func (l *PMLayout) Watermarks(ctx context.Context, processor int) (Watermarks, error) {
	w := Watermarks{Free: -1, MinFree: -1}
	c, err := NewCatalog(ctx, l, processor)
	if err != nil {
		return w, err
	}
	w.Total = c.TotalSize()
	return w, nil
}
