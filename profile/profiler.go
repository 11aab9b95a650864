package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/pkg/types"
)

type options struct {
	strict      bool
	maxFree     int
	tagFallback bool
	pools       *heap.PoolLayout
}

// Option configures a Profiler.
type Option func(*options)

// WithTagFallback lets Profile run on builds without owner profiling.
// Only blocks matched by references are attributed; the rest land in the
// unknown bucket and the report carries a warning.
func WithTagFallback() Option { return func(o *options) { o.tagFallback = true } }

// WithPools adds the fixed-size pools of l to every profiling pass.
func WithPools(l *heap.PoolLayout) Option { return func(o *options) { o.pools = l } }

// Strict fails a region on the first unusable header instead of skipping it.
func Strict() Option { return func(o *options) { o.strict = true } }

// MaxFreeNodes bounds every free-list walk. Zero keeps the default.
func MaxFreeNodes(n int) Option { return func(o *options) { o.maxFree = n } }

// Profiler runs profiling passes over the data-memory heaps and, when
// configured, the pools of one target.
type Profiler struct {
	dm   *heap.DMLayout
	opts options
}

// New returns a profiler for dm.
func New(dm *heap.DMLayout, opts ...Option) *Profiler {
	p := &Profiler{dm: dm}
	for _, fn := range opts {
		fn(&p.opts)
	}
	return p
}

func (p *Profiler) layouts() []heap.HeapLayout {
	if p.opts.pools == nil {
		return []heap.HeapLayout{p.dm}
	}
	return []heap.HeapLayout{p.dm, p.opts.pools}
}

// Profile attributes every allocated block of processor's heaps and pools
// to an owner. owners is merged by low octet and always gains the NoTask
// owner. refs may be nil; its matches are reset at the start of the pass.
//
// Region failures are recorded in the report and do not fail the pass.
// Builds without owner profiling fail with an UnsupportedLayoutError unless
// WithTagFallback is set.
func (p *Profiler) Profile(ctx context.Context, processor int, owners []Owner, refs *ReferenceSet) (*Report, error) {
	start := time.Now()
	for _, l := range p.layouts() {
		l.BeginPass()
	}
	cfg, err := p.dm.Config(ctx)
	if err != nil {
		return nil, err
	}

	rep := newReport(p.dm.Name(), processor, p.dm.Mode())
	rep.Profiling = cfg.Profiling
	if !cfg.Profiling {
		if !p.opts.tagFallback {
			return nil, &heap.UnsupportedLayoutError{Layout: p.dm.Name(), Missing: "owner profiling"}
		}
		logger.Warn("owner profiling not enabled, attributing referenced blocks only")
		rep.warn("owner profiling is not enabled in this build; only referenced blocks are attributed")
	}

	if refs == nil {
		refs = NewReferenceSet()
	}
	refs.Reset()
	owners = MergeOwners(owners)
	cls := NewClassifier(owners, refs)
	agg := NewAggregator()

	for _, l := range p.layouts() {
		cat, err := heap.NewCatalog(ctx, l, processor)
		if err != nil {
			return nil, err
		}
		for _, r := range cat.Regions() {
			rr := p.runRegion(ctx, cat, r, cls, agg)
			rr.Blocks = nil
			rep.add(rr)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	rep.Usage = agg.Records(owners)
	unknown := agg.Unknown()
	rep.Unknown = &unknown
	if unknown.Total() > 0 {
		rep.Diagnostics.Add(types.Diagnostic{
			Severity: types.SevInfo,
			Category: types.DiagAttribution,
			Issue:    fmt.Sprintf("%d bytes in %d blocks carry an owner not in the task list", unknown.Total(), len(unknown.Blocks)),
		})
	}
	rep.Transforms = refs.Matches(RefTransform)
	rep.Pools = refs.Matches(RefPool)
	rep.Files = refs.Matches(RefFile)
	rep.Watermarks = watermarks(ctx, p.dm, processor, rep)
	rep.finish(start)
	return rep, nil
}

// Inspect walks and scans every region of layout without attributing
// owners. It works for any layout, including instruction memory.
func (p *Profiler) Inspect(ctx context.Context, layout heap.HeapLayout, processor int) (*Report, error) {
	start := time.Now()
	layout.BeginPass()
	cfg, err := layout.Config(ctx)
	if err != nil {
		return nil, err
	}
	rep := newReport(layout.Name(), processor, layout.Mode())
	rep.Profiling = cfg.Profiling

	cat, err := heap.NewCatalog(ctx, layout, processor)
	if err != nil {
		return nil, err
	}
	for _, r := range cat.Regions() {
		rep.add(p.runRegion(ctx, cat, r, nil, nil))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	rep.Watermarks = watermarks(ctx, layout, processor, rep)
	rep.finish(start)
	return rep, nil
}

// RegionFree is the free space of one region.
type RegionFree struct {
	Region heap.HeapRegion   `json:"region"`
	Free   *heap.FreeSummary `json:"free"`
	Error  string            `json:"error,omitempty"`
	Err    error             `json:"-"`
}

// Overview is the configuration and free space of one layout.
type Overview struct {
	Layout     string           `json:"layout"`
	Processor  int              `json:"processor"`
	Regions    []RegionFree     `json:"regions"`
	TotalSize  int              `json:"total_size"`
	TotalFree  int              `json:"total_free"`
	Watermarks *heap.Watermarks `json:"watermarks,omitempty"`
}

// Overview reports the configured regions of layout and their free space.
// No blocks are scanned.
func (p *Profiler) Overview(ctx context.Context, layout heap.HeapLayout, processor int) (*Overview, error) {
	layout.BeginPass()
	cat, err := heap.NewCatalog(ctx, layout, processor)
	if err != nil {
		return nil, err
	}
	ov := &Overview{Layout: layout.Name(), Processor: processor, Regions: []RegionFree{}, TotalSize: cat.TotalSize()}
	for _, r := range cat.Regions() {
		rf := RegionFree{Region: r}
		free, err := heap.WalkFreeList(ctx, layout, cat, r, heap.WalkOptions{MaxNodes: p.opts.maxFree})
		rf.Free = free
		if err != nil {
			rf.Err = err
			rf.Error = err.Error()
		} else {
			ov.TotalFree += free.Total
		}
		ov.Regions = append(ov.Regions, rf)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	ov.Watermarks = watermarks(ctx, layout, processor, nil)
	return ov, nil
}

// runRegion takes one region through the pass. cls and agg are nil when
// blocks are only listed.
func (p *Profiler) runRegion(ctx context.Context, cat *heap.Catalog, r heap.HeapRegion, cls *Classifier, agg *Aggregator) RegionReport {
	layout := cat.Layout()
	rr := RegionReport{
		Region: r,
		State:  StateCataloging,
		Free:   &heap.FreeSummary{Region: r.Name, Nodes: []heap.FreeListNode{}},
	}
	step := func(s State) {
		rr.State = s
		logger.Debug("region state", "layout", layout.Name(), "region", r.Name, "state", s)
	}
	fail := func(err error) RegionReport {
		step(StateFailed)
		rr.Err = err
		rr.Error = err.Error()
		logger.Warn("region failed", "layout", layout.Name(), "processor", cat.Processor(), "region", r.Name, "error", err)
		return rr
	}

	if !r.Available {
		if r.Err != nil {
			return fail(r.Err)
		}
		logger.Debug("region unavailable", "layout", layout.Name(), "region", r.Name, "reason", r.Reason)
		return rr
	}

	step(StateFreeListWalk)
	free, err := heap.WalkFreeList(ctx, layout, cat, r, heap.WalkOptions{MaxNodes: p.opts.maxFree})
	rr.Free = free
	if err != nil {
		rr.Partial = true
		return fail(err)
	}

	step(StateBlockScan)
	scan, err := heap.ScanBlocks(ctx, layout, r, heap.ScanOptions{Strict: p.opts.strict})
	rr.Blocks = scan.Blocks
	rr.Allocated = scan.Allocated
	rr.Corrupt = scan.Corrupt
	if err != nil {
		rr.Partial = true
		return fail(err)
	}
	rr.Partial = len(scan.Corrupt) > 0

	if cls == nil || agg == nil {
		step(StateAggregated)
		return rr
	}

	step(StateClassifying)
	attrs := make([]Attribution, len(scan.Blocks))
	for i, b := range scan.Blocks {
		attrs[i] = cls.Classify(b)
	}

	for i, b := range scan.Blocks {
		agg.Add(b, attrs[i])
	}
	step(StateAggregated)
	return rr
}

type watermarker interface {
	Watermarks(ctx context.Context, processor int) (heap.Watermarks, error)
}

func watermarks(ctx context.Context, layout heap.HeapLayout, processor int, rep *Report) *heap.Watermarks {
	wm, ok := layout.(watermarker)
	if !ok {
		return nil
	}
	w, err := wm.Watermarks(ctx, processor)
	if err != nil {
		logger.Warn("watermarks unreadable", "layout", layout.Name(), "error", err)
		if rep != nil {
			rep.warn(fmt.Sprintf("watermarks unreadable: %v", err))
		}
		return nil
	}
	return &w
}

func (r *Report) add(rr RegionReport) {
	r.Regions = append(r.Regions, rr)
	r.diagnose(rr)
}

func (r *Report) finish(start time.Time) {
	r.Diagnostics.ScanTime = time.Since(start)
	r.Diagnostics.Finalize()
}
