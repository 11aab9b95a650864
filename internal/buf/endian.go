// Package buf contains helpers for endian-safe decoding of target memory.
package buf

import "encoding/binary"

// U16 reads a uint16 from b in the given byte order. Returns 0 when b is too short.
func U16(b []byte, order binary.ByteOrder) uint16 {
	if len(b) < 2 {
		return 0
	}
	return order.Uint16(b)
}

// U32 reads a uint32 from b in the given byte order. Returns 0 when b is too short.
func U32(b []byte, order binary.ByteOrder) uint32 {
	if len(b) < 4 {
		return 0
	}
	return order.Uint32(b)
}

// Word decodes one target word of width bytes (1 to 4) from b.
// Returns 0 when b is too short or width is out of range.
func Word(b []byte, width int, order binary.ByteOrder) uint32 {
	if width < 1 || width > 4 || len(b) < width {
		return 0
	}
	var v uint32
	if order == binary.BigEndian {
		for i := 0; i < width; i++ {
			v = v<<8 | uint32(b[i])
		}
		return v
	}
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v
}

// Words decodes every complete word of width bytes in b.
func Words(b []byte, width int, order binary.ByteOrder) []uint32 {
	if width < 1 || width > 4 {
		return nil
	}
	out := make([]uint32, len(b)/width)
	for i := range out {
		out[i] = Word(b[i*width:], width, order)
	}
	return out
}

// PutWord encodes v as one target word of width bytes into b.
func PutWord(b []byte, v uint32, width int, order binary.ByteOrder) {
	if width < 1 || width > 4 || len(b) < width {
		return
	}
	if order == binary.BigEndian {
		for i := width - 1; i >= 0; i-- {
			b[i] = byte(v)
			v >>= 8
		}
		return
	}
	for i := 0; i < width; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
