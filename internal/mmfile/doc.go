// Package mmfile maps windows of memory dump files read-only.
//
// A dump may hold a single address space or several back to back, so callers
// name the byte window they want. Windows need not be page aligned.
package mmfile

import (
	"errors"
	"fmt"
)

// ErrWindow is returned when the requested window does not fit the file.
var ErrWindow = errors.New("mmfile: window outside file")

// window resolves offset and length against a file of size bytes. A length of
// zero selects everything from offset to the end of the file.
func window(path string, size, offset, length int64) (int64, error) {
	if offset < 0 || length < 0 || offset > size {
		return 0, fmt.Errorf("%w: %s offset %d length %d, file is %d bytes", ErrWindow, path, offset, length, size)
	}
	if length == 0 {
		length = size - offset
	}
	if length > size-offset {
		return 0, fmt.Errorf("%w: %s offset %d length %d, file is %d bytes", ErrWindow, path, offset, length, size)
	}
	if length > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("mmfile: window too large to map (%d bytes)", length)
	}
	return length, nil
}

func noop() error { return nil }
