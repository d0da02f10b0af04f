// Package region reads the chunk location table of a region file and yields
// the framed chunk payloads it points at.
package region

import (
	"encoding/binary"

	"voxelcraft.ai/signdump/internal/chunkcodec"
	"voxelcraft.ai/signdump/internal/faults"
)

const (
	SectorSize = 4096
	SlotCount  = 1024

	// Chunks are laid out in a Width x Width grid, slot = x + z*Width.
	Width = 32

	entrySize = 4
	// length prefix + compression kind
	headerSize = 5
)

// Layout holds the format constants of the location table.
type Layout struct {
	SectorSize int
	Slots      int
}

func DefaultLayout() Layout {
	return Layout{SectorSize: SectorSize, Slots: SlotCount}
}

func (l Layout) TableSize() int { return l.Slots * entrySize }

// HeaderSize covers the location table and the timestamp table after it.
// No payload may start inside it.
func (l Layout) HeaderSize() int { return 2 * l.TableSize() }

// Entry is one location table slot: a 24-bit sector offset and an 8-bit
// sector count. The count is advisory; the payload carries its own length.
type Entry struct {
	Offset  uint32
	Sectors uint8
}

func ParseEntry(v uint32) Entry {
	return Entry{Offset: (v >> 8) & 0xFFFFFF, Sectors: uint8(v)}
}

func (e Entry) Empty() bool { return e.Offset == 0 && e.Sectors == 0 }

// Chunk is one occupied slot. Body aliases the region buffer.
type Chunk struct {
	Slot   int
	Entry  Entry
	Offset int
	Kind   chunkcodec.Kind
	Body   []byte
}

// Local returns the chunk position inside its region.
func (c Chunk) Local() (x, z int) {
	return c.Slot % Width, c.Slot / Width
}

// Reader walks the location table in slot order. Use it like bufio.Scanner:
//
//	rd := region.NewReader(buf, region.DefaultLayout())
//	for rd.Next() {
//		c := rd.Chunk()
//	}
//	if err := rd.Err(); err != nil { ... }
type Reader struct {
	buf    []byte
	layout Layout

	slot int
	cur  Chunk
	err  error
}

func NewReader(buf []byte, layout Layout) *Reader {
	if layout.SectorSize <= 0 {
		layout.SectorSize = SectorSize
	}
	if layout.Slots <= 0 {
		layout.Slots = SlotCount
	}
	r := &Reader{buf: buf, layout: layout}
	// Zero-length files are pre-allocated regions that never got a chunk.
	if len(buf) > 0 && len(buf) < layout.TableSize() {
		r.err = faults.New(faults.ErrContainer, "file is %d bytes, location table needs %d", len(buf), layout.TableSize())
	}
	if len(buf) == 0 {
		r.slot = layout.Slots
	}
	return r
}

// Next advances to the next occupied slot. It returns false at the end of
// the table or on the first framing error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for r.slot < r.layout.Slots {
		slot := r.slot
		r.slot++

		e := ParseEntry(binary.BigEndian.Uint32(r.buf[slot*entrySize:]))
		if e.Empty() {
			continue
		}
		c, err := r.frame(slot, e)
		if err != nil {
			r.err = err
			return false
		}
		r.cur = c
		return true
	}
	return false
}

func (r *Reader) frame(slot int, e Entry) (Chunk, error) {
	fail := func(format string, args ...any) (Chunk, error) {
		err := faults.New(faults.ErrContainer, format, args...)
		err.Slot = slot
		return Chunk{}, err
	}

	off := int(e.Offset) * r.layout.SectorSize
	if off < r.layout.HeaderSize() {
		return fail("offset %d points into the file header", off)
	}
	if off+headerSize > len(r.buf) {
		return fail("payload header at %d past end of file (%d bytes)", off, len(r.buf))
	}
	length := int(binary.BigEndian.Uint32(r.buf[off:]))
	if length < 1 {
		return fail("payload length %d at %d", length, off)
	}
	end := off + 4 + length
	if end > len(r.buf) || end < off {
		return fail("payload [%d,%d) past end of file (%d bytes)", off, end, len(r.buf))
	}
	return Chunk{
		Slot:   slot,
		Entry:  e,
		Offset: off,
		Kind:   chunkcodec.Kind(r.buf[off+4]),
		Body:   r.buf[off+headerSize : end],
	}, nil
}

func (r *Reader) Chunk() Chunk { return r.cur }

func (r *Reader) Err() error { return r.err }
