package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/target"
)

// Builder assembles a synthetic target for tests. Segments are zero-filled
// and stay writable after they are added, so fixtures can be written in any
// order.
//
// Example:
//
//	b := testutil.New(t).WithDMHeaps(testutil.DMOptions{Profiling: true})
//	b.Segment(target.SpaceDM, 0x4000, 0x1000)
//	b.SetDMHeap(0, 0, 0x4000, 0x1000, 0)
//	snap := b.Snapshot()
type Builder struct {
	tb   testing.TB
	snap *target.Snapshot
	arch target.Arch
	segs []target.Segment

	taskTail  map[int]target.Address
	bgintTail map[int]target.Address
	lastXform target.Address
}

// New returns a builder for a byte-addressed 32-bit little-endian target
// with the control area already mapped.
func New(tb testing.TB) *Builder {
	return NewWithArch(tb, target.DefaultArch())
}

// NewWithArch returns a builder for arch with the control area mapped.
func NewWithArch(tb testing.TB, arch target.Arch) *Builder {
	tb.Helper()
	b := &Builder{
		tb:        tb,
		snap:      target.NewSnapshot(arch),
		arch:      arch,
		taskTail:  make(map[int]target.Address),
		bgintTail: make(map[int]target.Address),
	}
	return b.Segment(target.SpaceDM, ControlBase, ControlSize)
}

// Snapshot returns the target under construction.
func (b *Builder) Snapshot() *target.Snapshot { return b.snap }

// Arch returns the target geometry.
func (b *Builder) Arch() target.Arch { return b.arch }

// Segment maps units addressable units of zeroed memory at start.
func (b *Builder) Segment(space target.Space, start target.Address, units int) *Builder {
	b.tb.Helper()
	data := make([]byte, units/b.arch.AddrPerWord*b.arch.WordBytes())
	seg := target.Segment{Space: space, Start: start, Data: data}
	require.NoError(b.tb, b.snap.AddSegment(seg))
	b.segs = append(b.segs, seg)
	return b
}

func (b *Builder) locate(space target.Space, addr target.Address, nbytes int) []byte {
	b.tb.Helper()
	for _, seg := range b.segs {
		if seg.Space != space || addr < seg.Start {
			continue
		}
		rel := int(addr - seg.Start)
		off := rel / b.arch.AddrPerWord * b.arch.WordBytes()
		if b.arch.AddrPerWord == b.arch.WordBytes() {
			off = rel
		}
		if s, ok := buf.Slice(seg.Data, off, nbytes); ok {
			return s
		}
	}
	b.tb.Fatalf("testutil: %s:0x%08X (+%d bytes) is not mapped", space, addr, nbytes)
	return nil
}

// Word stores one word.
func (b *Builder) Word(space target.Space, addr target.Address, v uint32) *Builder {
	b.tb.Helper()
	wb := b.arch.WordBytes()
	buf.PutWord(b.locate(space, addr, wb), v, wb, b.arch.ByteOrder)
	return b
}

// Words stores consecutive words starting at addr.
func (b *Builder) Words(space target.Space, addr target.Address, vs ...uint32) *Builder {
	b.tb.Helper()
	for i, v := range vs {
		b.Word(space, addr+target.Address(i*b.arch.AddrPerWord), v)
	}
	return b
}

// DM stores one data-memory word.
func (b *Builder) DM(addr target.Address, v uint32) *Builder {
	b.tb.Helper()
	return b.Word(target.SpaceDM, addr, v)
}

// Bytes stores raw bytes on a byte-addressed target.
func (b *Builder) Bytes(space target.Space, addr target.Address, p []byte) *Builder {
	b.tb.Helper()
	copy(b.locate(space, addr, len(p)), p)
	return b
}

// Half stores a 16-bit value.
func (b *Builder) Half(addr target.Address, v uint16) *Builder {
	b.tb.Helper()
	p := make([]byte, 2)
	b.arch.ByteOrder.PutUint16(p, v)
	return b.Bytes(target.SpaceDM, addr, p)
}

// String stores a NUL-terminated string in data memory.
func (b *Builder) String(addr target.Address, s string) *Builder {
	b.tb.Helper()
	return b.Bytes(target.SpaceDM, addr, append([]byte(s), 0))
}

// Variable registers a global.
func (b *Builder) Variable(name string, addr target.Address, typ string, size int) *Builder {
	b.snap.AddVariable(target.Variable{Name: name, Address: addr, Type: typ, Size: size})
	return b
}

// Constant registers a named constant.
func (b *Builder) Constant(name string, v int64) *Builder {
	b.snap.AddConstant(name, v)
	return b
}

// Enum registers an enum.
func (b *Builder) Enum(name string, members map[string]int64) *Builder {
	b.snap.AddEnum(name, members)
	return b
}

// Type registers a type layout.
func (b *Builder) Type(name string, size int, fields map[string]target.FieldLayout) *Builder {
	b.snap.AddType(name, &target.TypeLayout{Size: size, Fields: fields})
	return b
}

// CodeSite registers source information for [start, end).
func (b *Builder) CodeSite(start, end target.Address, module, file string, line int) *Builder {
	b.snap.AddCodeSite(target.CodeSite{Start: start, End: end, Module: module, File: file, Line: line})
	return b
}

// word is a scalar field of one word.
func word(offset int) target.FieldLayout { return target.FieldLayout{Offset: offset, Size: 4} }
