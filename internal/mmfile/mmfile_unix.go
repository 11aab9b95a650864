//go:build unix

package mmfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map maps length bytes of the file at path, starting at offset. The returned
// cleanup unmaps the window and may be called more than once.
func Map(path string, offset, length int64) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close() // mapping keeps pages alive

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	length, err = window(path, info.Size(), offset, length)
	if err != nil {
		return nil, nil, err
	}
	if length == 0 {
		return []byte{}, noop, nil
	}

	// mmap offsets must be page aligned.
	base := offset &^ int64(os.Getpagesize()-1)
	skip := offset - base
	data, err := unix.Mmap(int(f.Fd()), base, int(skip+length), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: map %s: %w", path, err)
	}
	cleanup := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		return err
	}
	return data[skip : skip+length : skip+length], cleanup, nil
}
