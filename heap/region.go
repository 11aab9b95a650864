package heap

import (
	"fmt"

	"github.com/joshuapare/heapkit/target"
)

// MemoryKind classifies what a region holds.
type MemoryKind int

const (
	KindData        MemoryKind = iota // variable-size data-memory heap
	KindInstruction                   // variable-size program-memory heap
	KindPool                          // fixed-size block pool
)

func (k MemoryKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindInstruction:
		return "instruction"
	case KindPool:
		return "pool"
	default:
		return fmt.Sprintf("MemoryKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k MemoryKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Span is one visible, contiguous part of a region.
type Span struct {
	Start target.Address `json:"start"`
	Size  int            `json:"size"`
}

// End returns the first address after the span.
func (s Span) End() uint64 { return uint64(s.Start) + uint64(s.Size) }

// HeapRegion describes one heap or pool for the duration of a pass.
type HeapRegion struct {
	Name         string         `json:"name"`
	Label        string         `json:"label"`
	Number       int            `json:"number"`
	Kind         MemoryKind     `json:"kind"`
	Start        target.Address `json:"start"`
	End          target.Address `json:"end"` // last valid address
	Size         int            `json:"size"` // visible bytes, 0 when unavailable
	FreeListHead target.Address `json:"free_list_head"`
	Available    bool           `json:"available"`
	Reason       string         `json:"reason,omitempty"` // why the region is unavailable
	Spans        []Span         `json:"spans,omitempty"`
	BlockSize    int            `json:"block_size,omitempty"` // pools only

	// Err is set when the configuration of the region could not be read.
	// The region is then unavailable because of a failure, not by design.
	Err error `json:"-"`
}

// Contains reports whether addr lies within [Start, End].
func (r HeapRegion) Contains(addr target.Address) bool {
	return r.End > r.Start && addr >= r.Start && addr <= r.End
}

func (r HeapRegion) unavailable(reason string) HeapRegion {
	r.Available = false
	r.Reason = reason
	r.Size = 0
	r.Spans = nil
	r.FreeListHead = 0
	return r
}
