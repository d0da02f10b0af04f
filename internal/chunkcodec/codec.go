package chunkcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"voxelcraft.ai/signdump/internal/faults"
	"voxelcraft.ai/signdump/internal/nbt"
)

// Kind is the compression byte that precedes every chunk body.
type Kind byte

const (
	Gzip         Kind = 1
	Zlib         Kind = 2
	Uncompressed Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case Uncompressed:
		return "uncompressed"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

func (k Kind) Valid() bool { return k >= Gzip && k <= Uncompressed }

// Decode decompresses body according to kind and parses the chunk tree.
// Both an unknown kind and a corrupt body are compression faults.
func Decode(body []byte, kind Kind) (*nbt.Compound, error) {
	r, closeFn, err := open(body, kind)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	root, err := nbt.DecodeCompound(r)
	if err != nil {
		return nil, faults.Wrap(faults.ErrCompression, fmt.Errorf("%s body: %w", kind, err))
	}
	return root, nil
}

func open(body []byte, kind Kind) (io.Reader, func(), error) {
	src := bytes.NewReader(body)
	switch kind {
	case Gzip:
		zr, err := gzip.NewReader(src)
		if err != nil {
			return nil, nil, faults.Wrap(faults.ErrCompression, fmt.Errorf("gzip header: %w", err))
		}
		return zr, func() { _ = zr.Close() }, nil
	case Zlib:
		zr, err := zlib.NewReader(src)
		if err != nil {
			return nil, nil, faults.Wrap(faults.ErrCompression, fmt.Errorf("zlib header: %w", err))
		}
		return zr, func() { _ = zr.Close() }, nil
	case Uncompressed:
		return src, func() {}, nil
	default:
		return nil, nil, faults.New(faults.ErrCompression, "unsupported compression kind %d", byte(kind))
	}
}

// Compress frames raw tree bytes with the given kind.
func Compress(raw []byte, kind Kind) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case Gzip:
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case Zlib:
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case Uncompressed:
		buf.Write(raw)
	default:
		return nil, faults.New(faults.ErrCompression, "unsupported compression kind %d", byte(kind))
	}
	return buf.Bytes(), nil
}

// Encode serializes root as an unnamed compound and compresses it.
func Encode(root *nbt.Compound, kind Kind) ([]byte, error) {
	var raw bytes.Buffer
	if err := nbt.Encode(&raw, "", root); err != nil {
		return nil, err
	}
	return Compress(raw.Bytes(), kind)
}
