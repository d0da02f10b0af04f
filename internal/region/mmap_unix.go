//go:build unix

package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map maps path read-only. The mapping outlives the descriptor; Close unmaps.
func Map(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return &File{Path: path}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("%s: %d bytes too large to map", path, size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &File{Path: path, data: data, unmap: func() error { return unix.Munmap(data) }}, nil
}
