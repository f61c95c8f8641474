package codec

import (
	"fmt"
	"sort"

	"github.com/avionics-oss/go-mavlink/internal/dialect"
	"github.com/avionics-oss/go-mavlink/internal/wire"
)

// encodeField appends field f's wire bytes to buf, resolving v (whatever
// the application supplied, or nil for "use zero default") against the
// catalog's enum groups.
func encodeField(buf []byte, cat *dialect.Catalog, f dialect.Field, v any) ([]byte, error) {
	if f.Type == wire.Char && f.ArrayLen > 1 {
		return encodeCharArray(buf, f, v), nil
	}

	if f.ArrayLen == 1 {
		scalar, err := resolveScalar(cat, f, v)
		if err != nil {
			return nil, err
		}
		return wire.PutScalar(buf, f.Type, scalar), nil
	}

	elems, err := elementSlice(v, f.ArrayLen)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrFieldOutOfRange, f.Name, err)
	}
	for i := 0; i < f.ArrayLen; i++ {
		var elem any
		if i < len(elems) {
			elem = elems[i]
		}
		scalar, err := resolveScalar(cat, f, elem)
		if err != nil {
			return nil, err
		}
		buf = wire.PutScalar(buf, f.Type, scalar)
	}
	return buf, nil
}

// encodeCharArray writes a fixed-length char array from a string or byte
// slice, zero-padding (or truncating) to f.ArrayLen.
func encodeCharArray(buf []byte, f dialect.Field, v any) []byte {
	var raw []byte
	switch x := v.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	}
	out := make([]byte, f.ArrayLen)
	copy(out, raw)
	return append(buf, out...)
}

// resolveScalar turns an application-supplied value into the raw numeric
// (or string/[]byte) form PutScalar expects, looking up enum/bitmask
// symbolic forms against the field's enum group.
func resolveScalar(cat *dialect.Catalog, f dialect.Field, v any) (any, error) {
	if v == nil {
		return uint64(0), nil
	}
	if f.EnumGroup == "" {
		return v, nil
	}
	en, ok := cat.Enum(f.EnumGroup)
	if !ok {
		return v, nil
	}
	switch x := v.(type) {
	case EnumValue:
		if x.Known {
			if val, ok := en.KeyToValue[x.Key]; ok {
				return val, nil
			}
			return nil, fmt.Errorf("%w: field %q: unknown enum key %q", ErrFieldUnknown, f.Name, x.Key)
		}
		return x.Raw, nil
	case BitmaskValue:
		mask := x.Unknown
		for _, flag := range x.Flags {
			bit, ok := en.KeyToValue[flag]
			if !ok {
				return nil, fmt.Errorf("%w: field %q: unknown flag %q", ErrFieldUnknown, f.Name, flag)
			}
			mask |= bit
		}
		return mask, nil
	case string:
		if val, ok := en.KeyToValue[x]; ok {
			return val, nil
		}
		return nil, fmt.Errorf("%w: field %q: unknown enum key %q", ErrFieldUnknown, f.Name, x)
	case []string:
		var mask uint32
		for _, flag := range x {
			bit, ok := en.KeyToValue[flag]
			if !ok {
				return nil, fmt.Errorf("%w: field %q: unknown flag %q", ErrFieldUnknown, f.Name, flag)
			}
			mask |= bit
		}
		return mask, nil
	default:
		return v, nil
	}
}

// elementSlice normalizes an array field's application-supplied value
// (a Go slice of any element type) into a []any for per-element resolution.
func elementSlice(v any, n int) ([]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return x, nil
	case []uint8:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []uint16:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []uint32:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []uint64:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []int8:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []int16:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []int32:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []int64:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []float32:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case []float64:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported array value type %T", v)
	}
}

// decodeField reads field f's value out of the front of buf (which must
// be at least f.Size() bytes; the decoder zero-pads short v2 payloads
// before calling), resolving enum/bitmask groups to their symbolic form
// when known.
func decodeField(buf []byte, cat *dialect.Catalog, f dialect.Field) any {
	if f.Type == wire.Char && f.ArrayLen > 1 {
		return decodeCharArray(buf[:f.ArrayLen])
	}
	if f.ArrayLen == 1 {
		raw, _ := wire.GetScalar(buf, f.Type)
		return decodeScalar(cat, f, raw)
	}

	out := make([]any, f.ArrayLen)
	off := 0
	sz := f.Type.Size()
	for i := 0; i < f.ArrayLen; i++ {
		raw, _ := wire.GetScalar(buf[off:], f.Type)
		out[i] = decodeScalar(cat, f, raw)
		off += sz
	}
	return out
}

// decodeCharArray returns a char array as a Go string, trimming trailing
// NUL bytes the way MAVLink char[N] fields conventionally do.
func decodeCharArray(raw []byte) string {
	n := len(raw)
	for n > 0 && raw[n-1] == 0 {
		n--
	}
	return string(raw[:n])
}

func decodeScalar(cat *dialect.Catalog, f dialect.Field, raw any) any {
	if f.EnumGroup == "" {
		return raw
	}
	en, ok := cat.Enum(f.EnumGroup)
	if !ok {
		return raw
	}
	numeric := asUint32(raw)
	if f.IsBitmask || en.IsBitmask {
		return decodeBitmask(en, numeric)
	}
	if key, ok := en.ValueToKey[numeric]; ok {
		return EnumValue{Key: key, Raw: numeric, Known: true}
	}
	return EnumValue{Raw: numeric, Known: false}
}

func decodeBitmask(en *dialect.Enum, mask uint32) BitmaskValue {
	var bv BitmaskValue
	remaining := mask
	for value, name := range en.ValueToKey {
		if value != 0 && mask&value == value {
			bv.Flags = append(bv.Flags, name)
			remaining &^= value
		}
	}
	bv.Unknown = remaining
	sort.Strings(bv.Flags)
	return bv
}

func asUint32(v any) uint32 {
	switch x := v.(type) {
	case uint8:
		return uint32(x)
	case uint16:
		return uint32(x)
	case uint32:
		return x
	case uint64:
		return uint32(x)
	case int8:
		return uint32(x)
	case int16:
		return uint32(x)
	case int32:
		return uint32(x)
	case int64:
		return uint32(x)
	default:
		return 0
	}
}
