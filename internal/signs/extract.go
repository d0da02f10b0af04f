// Package signs finds sign tile entities in decoded chunk trees.
package signs

import (
	"strings"

	"voxelcraft.ai/signdump/internal/faults"
	"voxelcraft.ai/signdump/internal/nbt"
)

// Schema names the keys navigated in a chunk tree. An empty LevelKey reads
// tile entities from the root compound.
type Schema struct {
	LevelKey        string
	TileEntitiesKey string
	IDKey           string
	SignSubstring   string
	TextKeys        [4]string
	CoordKeys       [3]string

	// Treat a chunk without the tile entity list as having none.
	AllowMissingTileEntities bool
}

func DefaultSchema() Schema {
	return Schema{
		LevelKey:        "Level",
		TileEntitiesKey: "TileEntities",
		IDKey:           "id",
		SignSubstring:   "sign",
		TextKeys:        [4]string{"Text1", "Text2", "Text3", "Text4"},
		CoordKeys:       [3]string{"x", "y", "z"},
	}
}

// Record is one sign: block position and its four text lines.
type Record struct {
	X, Y, Z int32
	Text    [4]string
}

// IsSign matches ids case-sensitively by substring, so "minecraft:sign",
// "wall_sign" and "oak_hanging_sign" all count.
func IsSign(id, substr string) bool {
	return strings.Contains(id, substr)
}

// Extract returns the signs of one chunk in tile entity order. Any missing
// key or wrong value type is a schema fault.
func Extract(root *nbt.Compound, s Schema) ([]Record, error) {
	level := root
	if s.LevelKey != "" {
		var err error
		if level, err = root.GetCompound(s.LevelKey); err != nil {
			return nil, err
		}
	}

	if s.AllowMissingTileEntities {
		if _, ok := level.Get(s.TileEntitiesKey); !ok {
			return nil, nil
		}
	}
	list, err := level.GetList(s.TileEntitiesKey)
	if err != nil {
		return nil, err
	}
	tes, err := list.Compounds()
	if err != nil {
		return nil, faults.Prefix(err, "%s", s.TileEntitiesKey)
	}

	var out []Record
	for i, te := range tes {
		id, err := te.GetString(s.IDKey)
		if err != nil {
			return nil, faults.Prefix(err, "tile entity %d", i)
		}
		if !IsSign(id, s.SignSubstring) {
			continue
		}
		rec, err := project(te, s)
		if err != nil {
			return nil, faults.Prefix(err, "tile entity %d (%s)", i, id)
		}
		out = append(out, rec)
	}
	return out, nil
}

func project(te *nbt.Compound, s Schema) (Record, error) {
	var rec Record
	for i, k := range s.TextKeys {
		v, err := te.GetString(k)
		if err != nil {
			return rec, err
		}
		rec.Text[i] = v
	}
	coords := [3]*int32{&rec.X, &rec.Y, &rec.Z}
	for i, k := range s.CoordKeys {
		v, err := te.GetInt(k)
		if err != nil {
			return rec, err
		}
		*coords[i] = v
	}
	return rec, nil
}
