package nbt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"

	gonbt "github.com/Tnze/go-mc/nbt"
)

// Decode reads one named tag from r and returns its name and value.
func Decode(r io.Reader) (name string, v Value, err error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	// A hostile length prefix can make the decoder panic on allocation;
	// report it as malformed input instead.
	defer func() {
		if p := recover(); p != nil {
			name, v, err = "", nil, fmt.Errorf("nbt: malformed input: %v", p)
		}
	}()

	var raw any
	name, err = gonbt.NewDecoder(br).Decode(&raw)
	if err != nil {
		return "", nil, eof(err)
	}
	if raw == nil {
		return "", nil, fmt.Errorf("nbt: root is %s", TagEnd)
	}
	v, err = fromNative(raw)
	if err != nil {
		return "", nil, err
	}
	return name, v, nil
}

// DecodeCompound reads a tree whose root must be a compound. The root name
// is discarded; chunk payloads conventionally leave it empty.
func DecodeCompound(r io.Reader) (*Compound, error) {
	_, v, err := Decode(r)
	if err != nil {
		return nil, err
	}
	c, ok := v.(*Compound)
	if !ok {
		return nil, fmt.Errorf("nbt: root is %s, want %s", v.Tag(), TagCompound)
	}
	return c, nil
}

func eof(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("nbt: %w", io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("nbt: %w", err)
}

// fromNative converts the generic tree produced by the library decoder.
// Compound keys come back unordered and are sorted.
func fromNative(x any) (Value, error) {
	switch x := x.(type) {
	case int8:
		return Byte(x), nil
	case uint8:
		return Byte(int8(x)), nil
	case bool:
		if x {
			return Byte(1), nil
		}
		return Byte(0), nil
	case int16:
		return Short(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Long(x), nil
	case float32:
		return Float(x), nil
	case float64:
		return Double(x), nil
	case string:
		return String(x), nil
	case []byte:
		out := make(ByteArray, len(x))
		for i, b := range x {
			out[i] = int8(b)
		}
		return out, nil
	case []int8:
		return ByteArray(append([]int8(nil), x...)), nil
	case []int32:
		return IntArray(x), nil
	case []int64:
		return LongArray(x), nil
	case []string:
		l := &List{}
		for _, s := range x {
			if err := l.Append(String(s)); err != nil {
				return nil, err
			}
		}
		return l, nil
	case []map[string]any:
		l := &List{}
		for i, m := range x {
			c, err := fromNative(m)
			if err != nil {
				return nil, fmt.Errorf("nbt: list element %d: %w", i, err)
			}
			if err := l.Append(c); err != nil {
				return nil, err
			}
		}
		return l, nil
	case []any:
		l := &List{}
		for i, it := range x {
			v, err := fromNative(it)
			if err != nil {
				return nil, fmt.Errorf("nbt: list element %d: %w", i, err)
			}
			if err := l.Append(v); err != nil {
				return nil, err
			}
		}
		return l, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		c := NewCompound()
		for _, k := range keys {
			v, err := fromNative(x[k])
			if err != nil {
				return nil, fmt.Errorf("nbt: %q: %w", k, err)
			}
			c.Set(k, v)
		}
		return c, nil
	}
	return nil, fmt.Errorf("nbt: unsupported decoded type %T", x)
}
