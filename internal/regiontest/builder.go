// Package regiontest lays out synthetic region files for tests.
package regiontest

import (
	"encoding/binary"
	"fmt"
	"os"

	"voxelcraft.ai/signdump/internal/chunkcodec"
	"voxelcraft.ai/signdump/internal/nbt"
	"voxelcraft.ai/signdump/internal/region"
)

type payload struct {
	slot int
	kind chunkcodec.Kind
	body []byte
}

// Builder places chunk payloads in sectors after the file header, in the
// order they were added, so physical order can differ from slot order.
type Builder struct {
	layout region.Layout
	chunks []payload
}

func NewBuilder() *Builder {
	return &Builder{layout: region.DefaultLayout()}
}

// Put encodes root with kind and stores it at slot.
func (b *Builder) Put(slot int, root *nbt.Compound, kind chunkcodec.Kind) error {
	body, err := chunkcodec.Encode(root, kind)
	if err != nil {
		return err
	}
	b.PutRaw(slot, kind, body)
	return nil
}

// PutRaw stores an already framed body, including invalid kinds.
func (b *Builder) PutRaw(slot int, kind chunkcodec.Kind, body []byte) {
	b.chunks = append(b.chunks, payload{slot: slot, kind: kind, body: body})
}

func (b *Builder) Bytes() []byte {
	ss := b.layout.SectorSize
	out := make([]byte, b.layout.HeaderSize())
	for _, c := range b.chunks {
		sector := len(out) / ss
		n := 5 + len(c.body)
		sectors := (n + ss - 1) / ss

		frame := make([]byte, sectors*ss)
		binary.BigEndian.PutUint32(frame, uint32(len(c.body)+1))
		frame[4] = byte(c.kind)
		copy(frame[5:], c.body)
		out = append(out, frame...)

		binary.BigEndian.PutUint32(out[c.slot*4:], uint32(sector)<<8|uint32(sectors&0xFF))
	}
	return out
}

func (b *Builder) WriteFile(path string) error {
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write region %s: %w", path, err)
	}
	return nil
}

// Sign builds a sign tile entity.
func Sign(id string, x, y, z int32, text [4]string) *nbt.Compound {
	return nbt.NewCompound().
		Set("id", nbt.String(id)).
		Set("x", nbt.Int(x)).
		Set("y", nbt.Int(y)).
		Set("z", nbt.Int(z)).
		Set("Text1", nbt.String(text[0])).
		Set("Text2", nbt.String(text[1])).
		Set("Text3", nbt.String(text[2])).
		Set("Text4", nbt.String(text[3]))
}

// Entity builds a non-sign tile entity.
func Entity(id string, x, y, z int32) *nbt.Compound {
	return nbt.NewCompound().
		Set("id", nbt.String(id)).
		Set("x", nbt.Int(x)).
		Set("y", nbt.Int(y)).
		Set("z", nbt.Int(z)).
		Set("Items", &nbt.List{})
}

// Chunk wraps tile entities in the Level/TileEntities layout.
func Chunk(cx, cz int32, tileEntities ...*nbt.Compound) *nbt.Compound {
	tes := &nbt.List{Elem: nbt.TagCompound}
	for _, te := range tileEntities {
		tes.Items = append(tes.Items, te)
	}
	level := nbt.NewCompound().
		Set("xPos", nbt.Int(cx)).
		Set("zPos", nbt.Int(cz)).
		Set("Entities", &nbt.List{}).
		Set("TileEntities", tes)
	return nbt.NewCompound().
		Set("DataVersion", nbt.Int(1343)).
		Set("Level", level)
}
