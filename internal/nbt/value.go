package nbt

import (
	"voxelcraft.ai/signdump/internal/faults"
)

// Value is one node of a decoded tree. The concrete type is one of Byte,
// Short, Int, Long, Float, Double, ByteArray, String, *List, *Compound,
// IntArray or LongArray.
type Value interface {
	Tag() Tag
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []int8
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Tag() Tag      { return TagByte }
func (Short) Tag() Tag     { return TagShort }
func (Int) Tag() Tag       { return TagInt }
func (Long) Tag() Tag      { return TagLong }
func (Float) Tag() Tag     { return TagFloat }
func (Double) Tag() Tag    { return TagDouble }
func (ByteArray) Tag() Tag { return TagByteArray }
func (String) Tag() Tag    { return TagString }
func (IntArray) Tag() Tag  { return TagIntArray }
func (LongArray) Tag() Tag { return TagLongArray }

// List is a homogeneous sequence. Elem is TagEnd only for empty lists.
type List struct {
	Elem  Tag
	Items []Value
}

func (*List) Tag() Tag { return TagList }

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

func (l *List) At(i int) Value { return l.Items[i] }

// Append adds v, fixing the element type on the first call. Mixed element
// types are a schema error.
func (l *List) Append(v Value) error {
	if len(l.Items) == 0 && l.Elem == TagEnd {
		l.Elem = v.Tag()
	}
	if v.Tag() != l.Elem {
		return faults.New(faults.ErrSchema, "list of %s cannot hold %s", l.Elem, v.Tag())
	}
	l.Items = append(l.Items, v)
	return nil
}

// Compounds returns the elements as compounds. An empty list of any element
// type yields no compounds.
func (l *List) Compounds() ([]*Compound, error) {
	if l.Len() == 0 {
		return nil, nil
	}
	if l.Elem != TagCompound {
		return nil, faults.New(faults.ErrSchema, "expected list of %s, got list of %s", TagCompound, l.Elem)
	}
	out := make([]*Compound, 0, len(l.Items))
	for _, it := range l.Items {
		out = append(out, it.(*Compound))
	}
	return out, nil
}

// Compound maps names to values and keeps insertion order.
type Compound struct {
	keys []string
	vals map[string]Value
}

func NewCompound() *Compound {
	return &Compound{vals: map[string]Value{}}
}

func (*Compound) Tag() Tag { return TagCompound }

func (c *Compound) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns the names in insertion order.
func (c *Compound) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Set stores v under key. Re-setting a key replaces the value in place.
func (c *Compound) Set(key string, v Value) *Compound {
	if c.vals == nil {
		c.vals = map[string]Value{}
	}
	if _, ok := c.vals[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.vals[key] = v
	return c
}

func (c *Compound) Get(key string) (Value, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.vals[key]
	return v, ok
}

func (c *Compound) lookup(key string, want Tag) (Value, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, faults.New(faults.ErrSchema, "missing key %q", key)
	}
	if v.Tag() != want {
		return nil, faults.New(faults.ErrSchema, "key %q: expected %s, got %s", key, want, v.Tag())
	}
	return v, nil
}

func (c *Compound) GetCompound(key string) (*Compound, error) {
	v, err := c.lookup(key, TagCompound)
	if err != nil {
		return nil, err
	}
	return v.(*Compound), nil
}

func (c *Compound) GetList(key string) (*List, error) {
	v, err := c.lookup(key, TagList)
	if err != nil {
		return nil, err
	}
	return v.(*List), nil
}

func (c *Compound) GetString(key string) (string, error) {
	v, err := c.lookup(key, TagString)
	if err != nil {
		return "", err
	}
	return string(v.(String)), nil
}

func (c *Compound) GetInt(key string) (int32, error) {
	v, err := c.lookup(key, TagInt)
	if err != nil {
		return 0, err
	}
	return int32(v.(Int)), nil
}
