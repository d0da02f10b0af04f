package region

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File is the full contents of one region file, either read into memory or
// mapped read-only.
type File struct {
	Path  string
	data  []byte
	unmap func() error
}

func (f *File) Bytes() []byte { return f.data }

func (f *File) Size() int { return len(f.data) }

func (f *File) Close() error {
	if f == nil || f.unmap == nil {
		return nil
	}
	err := f.unmap()
	f.unmap = nil
	f.data = nil
	return err
}

// ReadFile loads path into memory.
func ReadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &File{Path: path, data: b}, nil
}

// ParseName reads the region coordinates from a "r.<x>.<z>.mca" or ".mcr"
// file name.
func ParseName(name string) (x, z int, ok bool) {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	if ext != ".mca" && ext != ".mcr" {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimSuffix(name, ext), ".")
	if len(parts) != 3 || parts[0] != "r" {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(parts[1])
	z, errZ := strconv.Atoi(parts[2])
	if errX != nil || errZ != nil {
		return 0, 0, false
	}
	return x, z, true
}
