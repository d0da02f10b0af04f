package nbt

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"testing"

	"voxelcraft.ai/signdump/internal/faults"
)

func sampleTree() *Compound {
	sign := NewCompound().
		Set("id", String("minecraft:sign")).
		Set("x", Int(10)).
		Set("y", Int(-5)).
		Set("z", Int(200)).
		Set("Text1", String("héllo"))

	tes := &List{}
	if err := tes.Append(sign); err != nil {
		panic(err)
	}
	if err := tes.Append(NewCompound().Set("id", String("chest"))); err != nil {
		panic(err)
	}

	level := NewCompound().
		Set("xPos", Int(3)).
		Set("LastUpdate", Long(1<<40)).
		Set("Biomes", ByteArray{-1, 0, 1}).
		Set("HeightMap", IntArray{1, 2, 3}).
		Set("Blocks", LongArray{-1, 1 << 50}).
		Set("Light", Byte(-3)).
		Set("Ver", Short(1343)).
		Set("Speed", Float(0.5)).
		Set("Inhabited", Double(-2.25)).
		Set("Entities", &List{}).
		Set("TileEntities", tes)

	return NewCompound().Set("Level", level).Set("DataVersion", Int(1343))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	want := sampleTree()
	var buf bytes.Buffer
	if err := Encode(&buf, "", want); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeCompound(&buf)
	if err != nil {
		t.Fatalf("DecodeCompound: %v", err)
	}
	if !Equal(got, want) {
		t.Fatalf("round trip mismatch")
	}
	level, err := got.GetCompound("Level")
	if err != nil {
		t.Fatalf("Level: %v", err)
	}
	keys := level.Keys()
	if len(keys) != 11 || !sort.StringsAreSorted(keys) {
		t.Fatalf("keys=%v want 11 sorted names", keys)
	}
	tes, err := level.GetList("TileEntities")
	if err != nil {
		t.Fatalf("TileEntities: %v", err)
	}
	first, err := tes.Compounds()
	if err != nil || len(first) != 2 {
		t.Fatalf("compounds=%d err=%v", len(first), err)
	}
	if id, _ := first[0].GetString("id"); id != "minecraft:sign" {
		t.Fatalf("list order lost: first id=%q", id)
	}
}

func TestDecode_KnownBytes(t *testing.T) {
	// {"": {"x": Int 1, "id": "ab"}} encoded by hand.
	raw := []byte{
		10, 0, 0,
		3, 0, 1, 'x', 0, 0, 0, 1,
		8, 0, 2, 'i', 'd', 0, 2, 'a', 'b',
		0,
	}
	c, err := DecodeCompound(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("DecodeCompound: %v", err)
	}
	x, err := c.GetInt("x")
	if err != nil || x != 1 {
		t.Fatalf("x=%d err=%v", x, err)
	}
	id, err := c.GetString("id")
	if err != nil || id != "ab" {
		t.Fatalf("id=%q err=%v", id, err)
	}
}

func TestAccessors_SchemaErrors(t *testing.T) {
	c := sampleTree()
	if _, err := c.GetCompound("Missing"); !errors.Is(err, faults.Schema) {
		t.Fatalf("missing key: want schema error, got %v", err)
	}
	if _, err := c.GetString("Level"); !errors.Is(err, faults.Schema) {
		t.Fatalf("wrong type: want schema error, got %v", err)
	}
	if _, err := c.GetInt("DataVersion"); err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	var nilc *Compound
	if _, ok := nilc.Get("x"); ok {
		t.Fatalf("nil compound should have no keys")
	}
}

func TestList_HomogeneousAndCompounds(t *testing.T) {
	l := &List{}
	if err := l.Append(String("a")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(Int(1)); !errors.Is(err, faults.Schema) {
		t.Fatalf("mixed list: want schema error, got %v", err)
	}
	if _, err := l.Compounds(); !errors.Is(err, faults.Schema) {
		t.Fatalf("Compounds on string list: want schema error, got %v", err)
	}
	empty := &List{Elem: TagInt}
	cs, err := empty.Compounds()
	if err != nil || len(cs) != 0 {
		t.Fatalf("empty list: got %d compounds err=%v", len(cs), err)
	}
}

func TestDecode_Truncated(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, "", sampleTree()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw := buf.Bytes()
	for _, n := range []int{1, 3, len(raw) / 2, len(raw) - 1} {
		if _, err := DecodeCompound(bytes.NewReader(raw[:n])); err == nil {
			t.Fatalf("truncated at %d: expected error", n)
		}
	}
}

func TestDecode_RejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"unknown tag":       {42, 0, 0},
		"end root":          {0},
		"negative length":   {7, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF},
		"untyped list":      {9, 0, 0, 0, 0, 0, 0, 2},
		"root not compound": {8, 0, 0, 0, 1, 'a'},
	}
	for name, raw := range cases {
		if _, err := DecodeCompound(bytes.NewReader(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEncode_RejectsMixedList(t *testing.T) {
	l := &List{Elem: TagInt, Items: []Value{Int(1), String("x")}}
	if err := Encode(io.Discard, "", NewCompound().Set("l", l)); err == nil {
		t.Fatalf("expected mixed list error")
	}
}

func TestEncode_ListShapes(t *testing.T) {
	names := &List{}
	for _, n := range []string{"a", "b"} {
		if err := names.Append(String(n)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	pos := &List{}
	for _, d := range []float64{1.5, -2} {
		if err := pos.Append(Double(d)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	want := NewCompound().Set("names", names).Set("Pos", pos)

	var buf bytes.Buffer
	if err := Encode(&buf, "root", want); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	name, got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if name != "root" || !Equal(got, want) {
		t.Fatalf("name=%q equal=%v", name, Equal(got, want))
	}

	ints := &List{}
	if err := ints.Append(Int(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Encode(io.Discard, "", NewCompound().Set("l", ints)); err == nil {
		t.Fatalf("expected error for list of %s", TagInt)
	}
}
