package heap

import (
	"errors"
	"fmt"

	"github.com/joshuapare/heapkit/target"
)

var (
	// ErrFreeListCycle indicates a free-list node was visited twice.
	ErrFreeListCycle = errors.New("heap: repeating free-list node")
	// ErrFreeListTooLong indicates a free list exceeded the node limit.
	ErrFreeListTooLong = errors.New("heap: free list exceeds node limit")
	// ErrNodeOutOfBounds indicates a free-list node outside every known heap.
	ErrNodeOutOfBounds = errors.New("heap: node outside heap memory")
	// ErrMagicMismatch indicates the magic word was not found at a computed header.
	ErrMagicMismatch = errors.New("heap: magic word not found at expected offset")
	// ErrBadHeader indicates a header with an impossible length (strict scans only).
	ErrBadHeader = errors.New("heap: invalid or corrupt block header")
	// ErrUnsupportedLayout indicates firmware that predates the required metadata.
	ErrUnsupportedLayout = errors.New("heap: not supported on this firmware version")
	// ErrNoRegion indicates a region number outside the catalog.
	ErrNoRegion = errors.New("heap: no such region")
)

// CorruptionError is a structural problem found while walking or scanning a
// region. Work done before the problem was found is still returned.
type CorruptionError struct {
	Region string
	Addr   target.Address
	Err    error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%v at 0x%08X in %s", e.Err, e.Addr, e.Region)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// UnsupportedLayoutError names the metadata a layout could not find.
type UnsupportedLayoutError struct {
	Layout  string
	Missing string
}

func (e *UnsupportedLayoutError) Error() string {
	return fmt.Sprintf("%s heap: %v (missing %s)", e.Layout, ErrUnsupportedLayout, e.Missing)
}

func (e *UnsupportedLayoutError) Unwrap() error { return ErrUnsupportedLayout }

// IsCorruption reports whether err is a structural corruption error.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsAccess reports whether err is a memory access failure.
func IsAccess(err error) bool {
	var ae *target.AccessError
	return errors.As(err, &ae)
}

// IsUnavailable reports whether err is a symbol lookup miss, meaning the
// build does not carry the requested configuration.
func IsUnavailable(err error) bool { return target.IsLookup(err) }
