package heap

import (
	"context"
	"fmt"

	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/target"
)

// ScanOptions controls a block scan.
type ScanOptions struct {
	// Strict aborts the region on a zero-length or overrunning header
	// instead of stepping past it.
	Strict bool
}

// CorruptEntry is a magic match whose header could not be used.
type CorruptEntry struct {
	Address target.Address `json:"address"`
	Length  int            `json:"length"`
	Issue   string         `json:"issue"`
}

// ScanResult is the set of allocated blocks found in one region.
type ScanResult struct {
	Region    string         `json:"region"`
	Blocks    []Block        `json:"blocks"`
	Corrupt   []CorruptEntry `json:"corrupt,omitempty"`
	Debug     []DebugInfo    `json:"debug,omitempty"`
	Allocated int            `json:"allocated"`
	Partial   bool           `json:"partial"`
}

const (
	issueZeroLength = "invalid or corrupt entry: size 0"
	issueOverrun    = "header length runs past the region"
	issueBeforeSpan = "header precedes the region"
)

// ScanBlocks finds allocated blocks by searching each visible span of r for
// the header magic. Every step advances at least one word, so the scan is
// bounded by the span size. Blocks found before an abort are returned with
// Partial set.
func ScanBlocks(ctx context.Context, layout HeapLayout, r HeapRegion, opts ScanOptions) (*ScanResult, error) {
	res := &ScanResult{Region: r.Name, Blocks: []Block{}}
	if !r.Available {
		return res, nil
	}
	cfg, err := layout.Config(ctx)
	if err != nil {
		return res, err
	}
	apw := layout.Target().Arch().AddrPerWord

	abort := func(err error) (*ScanResult, error) {
		res.Partial = true
		logger.Warn("block scan aborted", "region", r.Name, "error", err)
		return res, err
	}
	// Only zero-length headers are recorded. Other misses are skipped
	// unless strict.
	corrupt := func(addr target.Address, length int, issue string) error {
		if issue == issueZeroLength {
			res.Corrupt = append(res.Corrupt, CorruptEntry{Address: addr, Length: length, Issue: issue})
		}
		if opts.Strict {
			return &CorruptionError{Region: r.Name, Addr: addr, Err: fmt.Errorf("%w: %s", ErrBadHeader, issue)}
		}
		return nil
	}

	for _, span := range r.Spans {
		words, err := layout.ReadSpan(ctx, r, span)
		if err != nil {
			return abort(err)
		}
		limit := span.End()
		for idx := 0; idx < len(words); {
			if !MatchMagic(words[idx], cfg.Profiling) {
				idx++
				continue
			}
			hdr := int64(span.Start) + int64(idx-cfg.MagicOffset)*int64(apw)
			if hdr < int64(span.Start) {
				if err := corrupt(span.Start, 0, issueBeforeSpan); err != nil {
					return abort(err)
				}
				idx++
				continue
			}
			addr := target.Address(hdr)
			h, err := DecodeHeader(ctx, layout, r, addr)
			if err != nil {
				return abort(err)
			}
			if !MatchMagic(h.Magic, cfg.Profiling) {
				return abort(&CorruptionError{Region: r.Name, Addr: addr, Err: ErrMagicMismatch})
			}
			inside := uint64(hdr)+uint64(h.Length) < limit
			switch {
			case h.Length > 0 && inside:
				res.Blocks = append(res.Blocks, Block{BlockHeader: h, Region: r.Name, Kind: r.Kind})
				res.Allocated += h.Length
				if h.Debug != nil {
					res.Debug = append(res.Debug, *h.Debug)
				}
				idx += max(h.Length/apw, 1)
			case h.Length == 0:
				if err := corrupt(addr, 0, issueZeroLength); err != nil {
					return abort(err)
				}
				idx++
			default:
				if err := corrupt(addr, h.Length, issueOverrun); err != nil {
					return abort(err)
				}
				idx++
			}
		}
	}
	return res, nil
}
