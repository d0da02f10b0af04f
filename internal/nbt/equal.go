package nbt

import "slices"

// Equal reports whether a and b hold the same tree. Compound key order is
// ignored; empty lists compare equal regardless of element type.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *Compound:
		bv, ok := b.(*Compound)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			other, ok := bv.Get(k)
			if !ok || !Equal(av.vals[k], other) {
				return false
			}
		}
		return true
	case *List:
		bv, ok := b.(*List)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		if av.Len() == 0 {
			return true
		}
		if av.Elem != bv.Elem {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case ByteArray:
		bv, ok := b.(ByteArray)
		return ok && slices.Equal(av, bv)
	case IntArray:
		bv, ok := b.(IntArray)
		return ok && slices.Equal(av, bv)
	case LongArray:
		bv, ok := b.(LongArray)
		return ok && slices.Equal(av, bv)
	}
	return a == b
}
