package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// AddrAdd adds n units to a 32-bit target address, returning ok = false on wrap.
func AddrAdd(addr uint32, n int64) (uint32, bool) {
	sum := int64(addr) + n
	if sum < 0 || sum > math.MaxUint32 {
		return 0, false
	}
	return uint32(sum), true
}

// CheckRange validates that [addr, addr+n) lies within [start, start+size).
// It returns the end address on success, or an error naming the failure.
//
//	end, err := buf.CheckRange(seg.Start, seg.Size, addr, n)
//	if err != nil {
//	    return fmt.Errorf("segment: %w", err)
//	}
func CheckRange(start uint32, size int, addr uint32, n int) (uint32, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative length: %d", n)
	}
	if addr < start {
		return 0, fmt.Errorf("bounds: addr=0x%X < start=0x%X", addr, start)
	}
	end, ok := AddrAdd(addr, int64(n))
	if !ok {
		return 0, fmt.Errorf("overflow: addr=0x%X + len=%d", addr, n)
	}
	limit := int64(start) + int64(size)
	if int64(end) > limit {
		return 0, fmt.Errorf("bounds: end=0x%X > limit=0x%X", end, limit)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
