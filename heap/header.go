package heap

import (
	"context"
	"fmt"

	"github.com/joshuapare/heapkit/target"
)

const (
	// Magic marks an allocated block header.
	Magic uint32 = 0xabcd01

	magicMask      uint32 = 0xFFFFFF
	ownerShift            = 24
	patchSignature uint32 = 0xfab01005
)

// MatchMagic reports whether word is a header magic. Tagged builds store the
// owner in the top octet, so only the low 24 bits are compared.
func MatchMagic(word uint32, profiling bool) bool {
	if profiling {
		return word&magicMask == Magic
	}
	return word == Magic
}

// OwnerTag extracts the owner id stored above the magic.
func OwnerTag(word uint32) int { return int(word >> ownerShift) }

// DebugInfo is the allocation site recorded by debug builds.
type DebugInfo struct {
	FileRef target.Address `json:"file_ref"`
	Line    int            `json:"line"`
	Hint    string         `json:"hint"`
}

// BlockHeader is a decoded allocation header.
type BlockHeader struct {
	Address target.Address `json:"address"`
	Payload target.Address `json:"payload"`
	Magic   uint32         `json:"magic"`
	Length  int            `json:"length"`
	Owner   int            `json:"owner"`
	Tagged  bool           `json:"tagged"`
	Debug   *DebugInfo     `json:"debug,omitempty"`
}

// Block is a header found inside a region.
type Block struct {
	BlockHeader
	Region string     `json:"region"`
	Kind   MemoryKind `json:"kind"`
}

// DecodeHeader reads the node at addr through layout.
func DecodeHeader(ctx context.Context, layout HeapLayout, r HeapRegion, addr target.Address) (BlockHeader, error) {
	cfg, err := layout.Config(ctx)
	if err != nil {
		return BlockHeader{}, err
	}
	magic, err := layout.NodeMagic(ctx, r, addr)
	if err != nil {
		return BlockHeader{}, err
	}
	length, err := layout.NodeLength(ctx, r, addr)
	if err != nil {
		return BlockHeader{}, err
	}
	h := BlockHeader{
		Address: addr,
		Payload: addr + target.Address(cfg.PayloadOffset),
		Magic:   magic,
		Length:  length,
	}
	if cfg.Profiling {
		h.Owner = OwnerTag(magic)
		h.Tagged = true
	}
	if cfg.DebugNodes {
		d, err := layout.NodeDebug(ctx, r, addr)
		if err != nil {
			return h, err
		}
		if d != nil {
			d.Hint = SiteHint(ctx, layout.Target(), *d)
			h.Debug = d
		}
	}
	return h, nil
}

// SiteHint formats the allocation site of a debug node. A zero line means
// FileRef is the allocator's return address rather than a file name.
func SiteHint(ctx context.Context, t target.Target, d DebugInfo) string {
	if d.Line == 0 {
		site, err := t.CodeSite(d.FileRef)
		if err != nil || site.File == "" {
			return "No source information."
		}
		return fmt.Sprintf("%s, near line %d", site.File, site.Line)
	}
	name, err := target.ReadString(ctx, t, target.SpaceDM, d.FileRef)
	if err != nil || name == "" {
		return "Filename cannot be read!"
	}
	return fmt.Sprintf("%s, line %d", name, d.Line)
}
