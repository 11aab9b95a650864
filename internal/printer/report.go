package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/profile"
	"github.com/joshuapare/heapkit/pkg/types"
)

// Report prints the regions, per-owner usage and references of a profiling
// pass, followed by a one-line diagnostic summary.
func (p *Printer) Report(rep *profile.Report) {
	p.Heading(fmt.Sprintf("%s heaps, processor %d (%s)", rep.Layout, rep.Processor, rep.Mode))
	p.Regions(rep.Regions)

	if len(rep.Usage) > 0 || rep.Unknown != nil {
		p.Heading("Usage by owner")
		p.Usage(rep)
	}
	if len(rep.Transforms)+len(rep.Pools)+len(rep.Files) > 0 {
		p.Heading("Referenced allocations")
		p.References(rep)
	}
	p.Totals(rep)
	p.DiagnosticSummary(rep.Diagnostics)
}

// Regions prints one row per region.
func (p *Printer) Regions(regions []profile.RegionReport) {
	t := p.table("Region", "Kind", "Start", "End", "Size", "Free", "Allocated", "State", "Notes")
	for _, rr := range regions {
		r := rr.Region
		if !r.Available {
			t.Append([]string{r.Name, r.Kind.String(), "-", "-", "-", "-", "-", p.state(rr), rr.Region.Reason})
			continue
		}
		free := "-"
		if rr.Free != nil {
			free = Bytes(int64(rr.Free.Total))
		}
		t.Append([]string{
			r.Name, r.Kind.String(), Addr(r.Start), Addr(r.End),
			Bytes(int64(r.Size)), free, Bytes(int64(rr.Allocated)),
			p.state(rr), regionNotes(rr),
		})
	}
	t.Render()
}

func (p *Printer) state(rr profile.RegionReport) string {
	s := rr.State.String()
	switch {
	case rr.State == profile.StateFailed:
		return p.style(errStyle, s)
	case rr.Partial:
		return p.style(warnStyle, s+" (partial)")
	case rr.State == profile.StateAggregated:
		return p.style(okStyle, s)
	default:
		return p.style(mutedStyle, s)
	}
}

func regionNotes(rr profile.RegionReport) string {
	var notes []string
	if rr.Error != "" {
		notes = append(notes, rr.Error)
	}
	if n := len(rr.Corrupt); n > 0 {
		notes = append(notes, fmt.Sprintf("%d corrupt header(s)", n))
	}
	if rr.Free != nil && rr.Free.Overhead > 0 {
		notes = append(notes, "guard "+Bytes(int64(rr.Free.Overhead)))
	}
	if n := len(rr.Region.Spans); n > 1 {
		notes = append(notes, fmt.Sprintf("%d spans", n))
	}
	return strings.Join(notes, "; ")
}

// Usage prints the per-owner usage records and the unknown bucket.
func (p *Printer) Usage(rep *profile.Report) {
	t := p.table("Owner", "Label", "Heap", "Pool", "Total", "Blocks", "Share")
	allocated := rep.TotalAllocated()
	row := func(u profile.UsageRecord) {
		owner := fmt.Sprintf("0x%02X", u.Owner)
		if u.Owner == profile.UnknownOwner {
			owner = "-"
		}
		t.Append([]string{
			owner, u.Label, Bytes(int64(u.HeapBytes)), Bytes(int64(u.PoolBytes)),
			Bytes(int64(u.Total())), Count(len(u.Blocks)), Percent(u.Total(), allocated),
		})
	}
	for _, u := range rep.Usage {
		row(u)
	}
	if rep.Unknown != nil {
		row(*rep.Unknown)
	}
	t.Render()
}

// References prints transform, pool and file matches.
func (p *Printer) References(rep *profile.Report) {
	t := p.table("Kind", "Address", "Block", "Heap", "Pool", "Total", "Region", "Users")
	for _, group := range [][]profile.Match{rep.Transforms, rep.Pools, rep.Files} {
		for _, m := range group {
			block, regions := "-", "-"
			if m.Found() {
				block = Addr(m.Block)
				regions = strings.Join(m.Regions, ", ")
			}
			t.Append([]string{
				m.Kind.String(), Addr(m.Address), block,
				Bytes(int64(m.HeapBytes)), Bytes(int64(m.PoolBytes)), Bytes(int64(m.Length)),
				regions, strings.Join(m.Users, ", "),
			})
		}
	}
	t.Render()
}

// Totals prints the summed figures of counted regions and the allocator's
// own watermarks when known.
func (p *Printer) Totals(rep *profile.Report) {
	p.printf("\nTotal %s, free %s, allocated %s",
		Bytes(int64(rep.TotalSize())), Bytes(int64(rep.TotalFree())), Bytes(int64(rep.TotalAllocated())))
	if ref := rep.Referenced(); ref > 0 {
		p.printf(", referenced %s", Bytes(int64(ref)))
	}
	p.printf("\n")
	p.watermarks(rep.Watermarks)
}

func (p *Printer) watermarks(w *heap.Watermarks) {
	if w == nil || w.Free < 0 {
		return
	}
	p.printf("Allocator reports %s free", Bytes(w.Free))
	if w.MinFree >= 0 {
		p.printf(", minimum %s", Bytes(w.MinFree))
	}
	p.printf(" of %s\n", Bytes(int64(w.Total)))
}

// DiagnosticSummary prints the diagnostic counts on one line.
func (p *Printer) DiagnosticSummary(d *types.DiagnosticReport) {
	if d == nil {
		return
	}
	s := d.Summary
	if len(d.Diagnostics) == 0 {
		p.printf("%s\n", p.style(okStyle, "No issues found"))
		return
	}
	line := fmt.Sprintf("Issues: %d critical, %d errors, %d warnings, %d info", s.Critical, s.Errors, s.Warnings, s.Info)
	switch {
	case d.HasCriticalIssues() || d.HasErrors():
		line = p.style(errStyle, line)
	case s.Warnings > 0:
		line = p.style(warnStyle, line)
	}
	p.printf("%s\n", line)
}

// Diagnostics renders d in format, one of text, compact or json.
func (p *Printer) Diagnostics(d *types.DiagnosticReport, format string) error {
	switch format {
	case "json":
		out, err := d.FormatJSON()
		if err != nil {
			return err
		}
		p.printf("%s\n", out)
	case "compact":
		p.printf("%s", d.FormatTextCompact())
	case "text", "":
		p.printf("%s", d.FormatText())
	default:
		return fmt.Errorf("unknown format: %s (use: text, json, compact)", format)
	}
	return nil
}

// Blocks prints the allocated blocks of one region.
func (p *Printer) Blocks(rr profile.RegionReport) {
	p.Heading(fmt.Sprintf("%s blocks (%s)", rr.Region.Name, Count(len(rr.Blocks))))
	t := p.table("Header", "Payload", "Length", "Owner", "Site")
	for _, b := range rr.Blocks {
		owner := "-"
		if b.Tagged {
			owner = fmt.Sprintf("0x%02X", b.Owner)
		}
		site := ""
		if b.Debug != nil {
			site = b.Debug.Hint
		}
		t.Append([]string{Addr(b.Address), Addr(b.Payload), strconv.Itoa(b.Length), owner, site})
	}
	t.Render()
	for _, c := range rr.Corrupt {
		p.printf("%s %s: %s (length %d)\n", p.style(warnStyle, "corrupt"), Addr(c.Address), c.Issue, c.Length)
	}
}

// FreeList prints the nodes of one free-list walk.
func (p *Printer) FreeList(sum *heap.FreeSummary) {
	p.Heading(fmt.Sprintf("%s free list (%s)", sum.Region, Bytes(int64(sum.Total))))
	t := p.table("Node", "Length", "Next")
	for _, n := range sum.Nodes {
		t.Append([]string{Addr(n.Address), strconv.Itoa(n.Length), Addr(n.Next)})
	}
	t.Render()
	if sum.Foreign > 0 {
		p.printf("%d node(s) belong to other regions\n", sum.Foreign)
	}
	if sum.Partial {
		p.printf("%s\n", p.style(warnStyle, "walk stopped early, total is partial"))
	}
}

// Overview prints configured regions and their free space.
func (p *Printer) Overview(ov *profile.Overview) {
	p.Heading(fmt.Sprintf("%s heaps, processor %d", ov.Layout, ov.Processor))
	t := p.table("Region", "Label", "Start", "End", "Size", "Free", "Used", "Notes")
	for _, rf := range ov.Regions {
		r := rf.Region
		if !r.Available {
			t.Append([]string{r.Name, r.Label, "-", "-", "-", "-", "-", r.Reason})
			continue
		}
		free, used, notes := "-", "-", rf.Error
		if rf.Free != nil && rf.Err == nil {
			free = Bytes(int64(rf.Free.Total))
			used = Percent(r.Size-rf.Free.Total, r.Size)
		}
		t.Append([]string{r.Name, r.Label, Addr(r.Start), Addr(r.End), Bytes(int64(r.Size)), free, used, notes})
	}
	t.Render()
	p.printf("\nTotal %s, free %s\n", Bytes(int64(ov.TotalSize)), Bytes(int64(ov.TotalFree)))
	p.watermarks(ov.Watermarks)
}

// Catalog prints region configuration as read from the target.
func (p *Printer) Catalog(layout string, regions []heap.HeapRegion) {
	p.Heading(fmt.Sprintf("%s regions", layout))
	t := p.table("#", "Region", "Label", "Kind", "Start", "End", "Size", "Free list", "Layout")
	for _, r := range regions {
		if !r.Available {
			t.Append([]string{strconv.Itoa(r.Number), r.Name, r.Label, r.Kind.String(), "-", "-", "-", "-",
				p.style(mutedStyle, r.Reason)})
			continue
		}
		t.Append([]string{
			strconv.Itoa(r.Number), r.Name, r.Label, r.Kind.String(),
			Addr(r.Start), Addr(r.End), Bytes(int64(r.Size)), Addr(r.FreeListHead), regionLayout(r),
		})
	}
	t.Render()
}

func regionLayout(r heap.HeapRegion) string {
	var parts []string
	if r.BlockSize > 0 {
		parts = append(parts, fmt.Sprintf("%d x %s", r.Size/r.BlockSize, Bytes(int64(r.BlockSize))))
	}
	if len(r.Spans) > 1 {
		for _, s := range r.Spans {
			parts = append(parts, fmt.Sprintf("%s+%s", Addr(s.Start), Bytes(int64(s.Size))))
		}
	}
	return strings.Join(parts, " ")
}
