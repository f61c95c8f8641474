package wire

import (
	"encoding/binary"
	"math"
)

// PutScalar appends the little-endian encoding of v (expected to already be
// the Go type matching t) to buf and returns the extended slice. Values of
// the wrong Go type are coerced via the numeric conversions in toInt64 /
// toUint64 so callers can hand in whatever integer width the application
// supplied (field values travel through a dynamically-typed map).
func PutScalar(buf []byte, t Type, v any) []byte {
	switch t {
	case Uint8, Char:
		return append(buf, byte(toUint64(v)))
	case Int8:
		return append(buf, byte(toInt64(v)))
	case Uint16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(toUint64(v)))
		return append(buf, b[:]...)
	case Int16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(toInt64(v)))
		return append(buf, b[:]...)
	case Uint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(toUint64(v)))
		return append(buf, b[:]...)
	case Int32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(toInt64(v)))
		return append(buf, b[:]...)
	case Uint64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], toUint64(v))
		return append(buf, b[:]...)
	case Int64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(toInt64(v)))
		return append(buf, b[:]...)
	case Float:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(toFloat32(v)))
		return append(buf, b[:]...)
	case Double:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(toFloat64(v)))
		return append(buf, b[:]...)
	default:
		return buf
	}
}

// GetScalar decodes one little-endian scalar of type t from the front of
// buf, returning the decoded value as a native Go type and the number of
// bytes consumed. buf must be at least t.Size() bytes; callers zero-pad
// short v2 payloads before calling.
func GetScalar(buf []byte, t Type) (any, int) {
	n := t.Size()
	switch t {
	case Uint8, Char:
		return buf[0], n
	case Int8:
		return int8(buf[0]), n
	case Uint16:
		return binary.LittleEndian.Uint16(buf), n
	case Int16:
		return int16(binary.LittleEndian.Uint16(buf)), n
	case Uint32:
		return binary.LittleEndian.Uint32(buf), n
	case Int32:
		return int32(binary.LittleEndian.Uint32(buf)), n
	case Uint64:
		return binary.LittleEndian.Uint64(buf), n
	case Int64:
		return int64(binary.LittleEndian.Uint64(buf)), n
	case Float:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf)), n
	case Double:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), n
	default:
		return nil, n
	}
}

func toUint64(v any) uint64 {
	switch x := v.(type) {
	case uint64:
		return x
	case uint32:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint8:
		return uint64(x)
	case int64:
		return uint64(x)
	case int32:
		return uint64(x)
	case int16:
		return uint64(x)
	case int8:
		return uint64(x)
	case int:
		return uint64(x)
	case float64:
		return uint64(x)
	case float32:
		return uint64(x)
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case float64:
		return int64(x)
	case float32:
		return int64(x)
	default:
		return 0
	}
}

func toFloat32(v any) float32 {
	switch x := v.(type) {
	case float32:
		return x
	case float64:
		return float32(x)
	default:
		return float32(toInt64(v))
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	default:
		return float64(toInt64(v))
	}
}
