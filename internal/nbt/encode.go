package nbt

import (
	"bufio"
	"fmt"
	"io"
	"reflect"

	gonbt "github.com/Tnze/go-mc/nbt"
)

// Encode writes v as a named root tag.
//
// Lists of TAG_Byte, TAG_Int and TAG_Long have no distinct Go form in the
// library encoder (their slices encode as arrays) and are rejected.
func Encode(w io.Writer, name string, v Value) error {
	x, err := toNative(v)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := gonbt.NewEncoder(bw).Encode(x, name); err != nil {
		return fmt.Errorf("nbt: encode: %w", err)
	}
	return bw.Flush()
}

func toNative(v Value) (any, error) {
	switch v := v.(type) {
	case Byte:
		return int8(v), nil
	case Short:
		return int16(v), nil
	case Int:
		return int32(v), nil
	case Long:
		return int64(v), nil
	case Float:
		return float32(v), nil
	case Double:
		return float64(v), nil
	case String:
		return string(v), nil
	case ByteArray:
		out := make([]byte, len(v))
		for i, b := range v {
			out[i] = byte(b)
		}
		return out, nil
	case IntArray:
		return []int32(v), nil
	case LongArray:
		return []int64(v), nil
	case *Compound:
		m := make(map[string]any, v.Len())
		for _, k := range v.keys {
			x, err := toNative(v.vals[k])
			if err != nil {
				return nil, fmt.Errorf("nbt: %q: %w", k, err)
			}
			m[k] = x
		}
		return m, nil
	case *List:
		return listToNative(v)
	}
	return nil, fmt.Errorf("nbt: cannot encode %T", v)
}

var listElemTypes = map[Tag]reflect.Type{
	TagShort:    reflect.TypeOf(int16(0)),
	TagFloat:    reflect.TypeOf(float32(0)),
	TagDouble:   reflect.TypeOf(float64(0)),
	TagString:   reflect.TypeOf(""),
	TagCompound: reflect.TypeOf(map[string]any(nil)),
}

func listToNative(l *List) (any, error) {
	if l.Len() == 0 {
		return []map[string]any{}, nil
	}
	for i, it := range l.Items {
		if it.Tag() != l.Elem {
			return nil, fmt.Errorf("nbt: list element %d is %s, list holds %s", i, it.Tag(), l.Elem)
		}
	}

	elemType, ok := listElemTypes[l.Elem]
	items := make([]any, len(l.Items))
	for i, it := range l.Items {
		x, err := toNative(it)
		if err != nil {
			return nil, fmt.Errorf("nbt: list element %d: %w", i, err)
		}
		items[i] = x
	}
	if !ok {
		if l.Elem != TagList && l.Elem != TagByteArray && l.Elem != TagIntArray && l.Elem != TagLongArray {
			return nil, fmt.Errorf("nbt: list of %s cannot be encoded", l.Elem)
		}
		// Nested lists and arrays take the Go type of their first element.
		elemType = reflect.TypeOf(items[0])
	}

	out := reflect.MakeSlice(reflect.SliceOf(elemType), len(items), len(items))
	for i, x := range items {
		xv := reflect.ValueOf(x)
		if xv.Type() != elemType {
			return nil, fmt.Errorf("nbt: list element %d has a different shape than element 0", i)
		}
		out.Index(i).Set(xv)
	}
	return out.Interface(), nil
}
