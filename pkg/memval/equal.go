package memval

import (
	"math"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// equalOptions let go-cmp look at unexported fields of user structs instead
// of panicking on them.
var equalOptions = []cmp.Option{
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// Equal reports whether a and b are structurally equal over the value domain.
//
// Sequences are compared element by element in order, mappings by key set and
// values. Numbers compare by value regardless of their Go type, so an int
// literal equals the float64 decoded from storage. Integers compare exactly
// over the whole int64/uint64 range. Null (nil) is distinct from
// an empty sequence or mapping.
func Equal[T any](a, b T) bool {
	return cmp.Equal(normalize(reflect.ValueOf(any(a))), normalize(reflect.ValueOf(any(b))), equalOptions...)
}

// normalize rewrites numbers, sequences and string-keyed mappings into the
// canonical float64/[]any/map[string]any form. Other values (structs, custom
// types) are returned untouched and compared by go-cmp directly.
func normalize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return normalize(v.Elem())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return normalizeInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return normalizeUint(v.Uint())
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(v.Float())
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = normalize(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value())
		}
		return out
	}

	if v.CanInterface() {
		return v.Interface()
	}
	return nil
}

// maxExact is the largest magnitude below which every integer is exactly a
// float64.
const maxExact = 1 << 53

// Each number has a single canonical form: float64 when it is a float64 that
// is either fractional or within ±2^53, otherwise int64, or uint64 above
// MaxInt64. Equal numbers of any Go type therefore normalize identically.

func normalizeInt(n int64) any {
	if n >= -maxExact && n <= maxExact {
		return float64(n)
	}
	return n
}

func normalizeUint(n uint64) any {
	if n <= math.MaxInt64 {
		return normalizeInt(int64(n))
	}
	return n
}

func normalizeFloat(f float64) any {
	if f != math.Trunc(f) || math.Abs(f) <= maxExact {
		return f
	}
	switch {
	case f >= math.MinInt64 && f < math.MaxInt64:
		return int64(f)
	case f >= 0 && f < math.MaxUint64:
		return uint64(f)
	}
	return f
}
