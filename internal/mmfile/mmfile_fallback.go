//go:build !unix

package mmfile

import (
	"io"
	"os"
)

// Map reads the window into memory when mmap is not available.
func Map(path string, offset, length int64) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	length, err = window(path, info.Size(), offset, length)
	if err != nil {
		return nil, nil, err
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(f, offset, length), data); err != nil {
		return nil, nil, err
	}
	return data, noop, nil
}
