package profile

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/pkg/types"
	"github.com/joshuapare/heapkit/target"
)

// State is the progress of one region through a pass.
type State int

const (
	StateCataloging State = iota
	StateFreeListWalk
	StateBlockScan
	StateClassifying
	StateAggregated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCataloging:
		return "CATALOGING"
	case StateFreeListWalk:
		return "FREE_LIST_WALK"
	case StateBlockScan:
		return "BLOCK_SCAN"
	case StateClassifying:
		return "CLASSIFYING"
	case StateAggregated:
		return "AGGREGATED"
	case StateFailed:
		return "REGION_FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// RegionReport is the outcome of one region.
//
// An unavailable region stops in StateCataloging with no error. A failed
// region ends in StateFailed with Err set and is left out of every total.
// Partial marks a region whose figures are incomplete: a failed region
// that kept what it read before the failure, or a completed scan that
// skipped corrupt headers.
type RegionReport struct {
	Region    heap.HeapRegion     `json:"region"`
	State     State               `json:"state"`
	Free      *heap.FreeSummary   `json:"free"`
	Allocated int                 `json:"allocated"`
	Corrupt   []heap.CorruptEntry `json:"corrupt,omitempty"`
	Blocks    []heap.Block        `json:"blocks,omitempty"`
	Partial   bool                `json:"partial"`
	Error     string              `json:"error,omitempty"`
	Err       error               `json:"-"`
}

// Counted reports whether the region contributes to report totals.
func (r RegionReport) Counted() bool {
	return r.Region.Available && r.State != StateFailed
}

// Report is the result of one profiling or inspection pass.
type Report struct {
	Layout      string                  `json:"layout"`
	Processor   int                     `json:"processor"`
	Mode        heap.Mode               `json:"mode"`
	Profiling   bool                    `json:"profiling"`
	Regions     []RegionReport          `json:"regions"`
	Usage       []UsageRecord           `json:"usage,omitempty"`
	Unknown     *UsageRecord            `json:"unknown,omitempty"`
	Transforms  []Match                 `json:"transforms,omitempty"`
	Pools       []Match                 `json:"pools,omitempty"`
	Files       []Match                 `json:"files,omitempty"`
	Watermarks  *heap.Watermarks        `json:"watermarks,omitempty"`
	Diagnostics *types.DiagnosticReport `json:"diagnostics"`
}

func newReport(layout string, processor int, mode heap.Mode) *Report {
	d := types.NewDiagnosticReport()
	d.Processor = processor
	return &Report{
		Layout:      layout,
		Processor:   processor,
		Mode:        mode,
		Regions:     []RegionReport{},
		Diagnostics: d,
	}
}

// Err returns the errors of every failed region, or nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, rr := range r.Regions {
		if rr.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", rr.Region.Name, rr.Err))
		}
	}
	return result.ErrorOrNil()
}

// Region returns the report of the named region.
func (r *Report) Region(name string) (RegionReport, bool) {
	return lo.Find(r.Regions, func(rr RegionReport) bool { return rr.Region.Name == name })
}

// TotalSize sums the size of counted regions.
func (r *Report) TotalSize() int {
	return lo.SumBy(r.counted(), func(rr RegionReport) int { return rr.Region.Size })
}

// TotalFree sums the free bytes of counted regions.
func (r *Report) TotalFree() int {
	return lo.SumBy(r.counted(), func(rr RegionReport) int { return rr.Free.Total })
}

// TotalAllocated sums the allocated bytes of counted regions.
func (r *Report) TotalAllocated() int {
	return lo.SumBy(r.counted(), func(rr RegionReport) int { return rr.Allocated })
}

// Referenced sums the bytes attributed to transforms, pools and files.
func (r *Report) Referenced() int {
	sum := func(ms []Match) int { return lo.SumBy(ms, func(m Match) int { return m.Length }) }
	return sum(r.Transforms) + sum(r.Pools) + sum(r.Files)
}

func (r *Report) counted() []RegionReport {
	return lo.Filter(r.Regions, func(rr RegionReport, _ int) bool { return rr.Counted() })
}

// diagnose records the diagnostics a region report implies.
func (r *Report) diagnose(rr RegionReport) {
	name := rr.Region.Name
	for _, c := range rr.Corrupt {
		r.Diagnostics.Add(types.Diagnostic{
			Severity:  types.SevWarning,
			Category:  types.DiagStructure,
			Address:   uint64(c.Address),
			Region:    name,
			Structure: "HEADER",
			Issue:     c.Issue,
			Actual:    c.Length,
		})
	}
	if rr.Err == nil {
		return
	}
	d := types.Diagnostic{
		Severity: types.SevError,
		Category: types.DiagAccess,
		Region:   name,
		Issue:    rr.Err.Error(),
	}
	var ce *heap.CorruptionError
	var ae *target.AccessError
	switch {
	case errors.As(rr.Err, &ce):
		d.Severity = types.SevCritical
		d.Category = types.DiagStructure
		d.Address = uint64(ce.Addr)
		d.Structure = "HEADER"
		if errors.Is(ce, heap.ErrFreeListCycle) || errors.Is(ce, heap.ErrFreeListTooLong) || errors.Is(ce, heap.ErrNodeOutOfBounds) {
			d.Structure = "FREELIST"
		}
	case errors.As(rr.Err, &ae):
		d.Address = uint64(ae.Addr)
	case !rr.Region.Available:
		d.Category = types.DiagConfiguration
		d.Structure = "CONFIG"
	}
	r.Diagnostics.Add(d)
}

func (r *Report) warn(issue string) {
	r.Diagnostics.Add(types.Diagnostic{
		Severity:  types.SevWarning,
		Category:  types.DiagConfiguration,
		Structure: "CONFIG",
		Issue:     issue,
	})
}
