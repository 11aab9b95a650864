package profile

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/target"
)

// BlockRef is a block contributing to a usage record.
type BlockRef struct {
	Address target.Address  `json:"address"`
	Length  int             `json:"length"`
	Region  string          `json:"region"`
	Kind    heap.MemoryKind `json:"kind"`
}

// UsageRecord is the memory held by one owner.
type UsageRecord struct {
	Owner     int        `json:"owner"`
	Label     string     `json:"label"`
	HeapBytes int        `json:"heap_bytes"`
	PoolBytes int        `json:"pool_bytes"`
	Blocks    []BlockRef `json:"blocks"`
}

// Total returns heap and pool bytes together.
func (u UsageRecord) Total() int { return u.HeapBytes + u.PoolBytes }

func (u *UsageRecord) add(b heap.Block) {
	if b.Kind == heap.KindPool {
		u.PoolBytes += b.Length
	} else {
		u.HeapBytes += b.Length
	}
	u.Blocks = append(u.Blocks, BlockRef{Address: b.Address, Length: b.Length, Region: b.Region, Kind: b.Kind})
}

func (u UsageRecord) sorted() UsageRecord {
	u.Blocks = slices.Clone(u.Blocks)
	if u.Blocks == nil {
		u.Blocks = []BlockRef{}
	}
	slices.SortFunc(u.Blocks, func(a, b BlockRef) int {
		if c := cmp.Compare(a.Address, b.Address); c != 0 {
			return c
		}
		return cmp.Compare(a.Region, b.Region)
	})
	return u
}

// Aggregator folds attributed blocks into per-owner totals. Totals and
// block lists do not depend on the order blocks are added.
type Aggregator struct {
	owners  map[int]*UsageRecord
	unknown UsageRecord
	refs    int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		owners:  make(map[int]*UsageRecord),
		unknown: UsageRecord{Owner: UnknownOwner, Label: unknownLabel},
	}
}

// Add folds one classified block. Blocks attributed to references are
// counted on the reference match, not here.
func (a *Aggregator) Add(b heap.Block, at Attribution) {
	switch at.Kind {
	case AttrTask:
		key := at.Owner & ownerMask
		rec, ok := a.owners[key]
		if !ok {
			rec = &UsageRecord{Owner: at.Owner}
			a.owners[key] = rec
		}
		rec.add(b)
	case AttrUnknown:
		a.unknown.add(b)
	default:
		a.refs += b.Length
	}
}

// Records returns one record per owner in list order. owners is merged by
// low octet first, so aliases share one record and the NoTask owner is
// always listed. Owners with nothing allocated get an empty record.
func (a *Aggregator) Records(owners []Owner) []UsageRecord {
	return lo.Map(MergeOwners(owners), func(o Owner, _ int) UsageRecord {
		rec := UsageRecord{Owner: o.ID, Label: o.Label}
		if got, ok := a.owners[o.ID&ownerMask]; ok {
			rec.HeapBytes = got.HeapBytes
			rec.PoolBytes = got.PoolBytes
			rec.Blocks = got.Blocks
		}
		return rec.sorted()
	})
}

// Unknown returns the bucket of blocks whose tag matched no owner.
func (a *Aggregator) Unknown() UsageRecord { return a.unknown.sorted() }

// Referenced returns the bytes attributed to transforms, pools and files.
func (a *Aggregator) Referenced() int { return a.refs }
