package heap

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/target"
)

// Catalog is the set of regions a layout describes for one processor,
// read once per pass.
type Catalog struct {
	layout    HeapLayout
	processor int
	regions   []HeapRegion
}

// NewCatalog reads every region of layout. Regions whose configuration
// cannot be read are kept as unavailable with Err set; only unsupported
// layouts and cancellation fail the catalog.
func NewCatalog(ctx context.Context, layout HeapLayout, processor int) (*Catalog, error) {
	n, err := layout.RegionCount(ctx)
	if err != nil {
		return nil, err
	}
	c := &Catalog{layout: layout, processor: processor, regions: make([]HeapRegion, 0, n)}
	for i := range n {
		r, err := layout.RegionProperty(ctx, processor, i)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrUnsupportedLayout) {
				return nil, err
			}
			logger.Warn("region configuration unreadable", "layout", layout.Name(), "region", i, "error", err)
			r = r.unavailable(fmt.Sprintf("configuration unreadable: %v", err))
			r.Err = err
		}
		c.regions = append(c.regions, r)
	}
	return c, nil
}

// Regions builds a catalog and returns its regions.
func Regions(ctx context.Context, layout HeapLayout, processor int) ([]HeapRegion, error) {
	c, err := NewCatalog(ctx, layout, processor)
	if err != nil {
		return nil, err
	}
	return c.Regions(), nil
}

// Layout returns the layout the catalog was read from.
func (c *Catalog) Layout() HeapLayout { return c.layout }

// Processor returns the processor the catalog was read for.
func (c *Catalog) Processor() int { return c.processor }

// Regions returns a copy of the cataloged regions in slot order.
func (c *Catalog) Regions() []HeapRegion {
	out := make([]HeapRegion, len(c.regions))
	copy(out, c.regions)
	return out
}

// Region returns the region with the given name.
func (c *Catalog) Region(name string) (HeapRegion, error) {
	for _, r := range c.regions {
		if r.Name == name {
			return r, nil
		}
	}
	return HeapRegion{}, fmt.Errorf("%w: %s", ErrNoRegion, name)
}

// IsAddressValid reports whether addr lies in any available region.
func (c *Catalog) IsAddressValid(addr target.Address) bool {
	for _, r := range c.regions {
		if r.Available && r.Contains(addr) {
			return true
		}
	}
	return false
}

// TotalSize sums the visible size of available regions.
func (c *Catalog) TotalSize() int {
	total := 0
	for _, r := range c.regions {
		if r.Available {
			total += r.Size
		}
	}
	return total
}
