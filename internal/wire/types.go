// Package wire defines the primitive scalar types MAVLink field values are
// built from, and the little-endian encoding rules shared by the encoder
// and decoder.
package wire

import "fmt"

// Type identifies a primitive MAVLink field type. Array fields repeat a
// Type N times; there is no separate "array type".
type Type uint8

const (
	Uint8 Type = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float
	Double
	Char
)

// typeInfo holds the XML name and byte width for each primitive type.
var typeInfo = [...]struct {
	name string
	size int
}{
	Uint8:   {"uint8_t", 1},
	Int8:    {"int8_t", 1},
	Uint16:  {"uint16_t", 2},
	Int16:   {"int16_t", 2},
	Uint32:  {"uint32_t", 4},
	Int32:   {"int32_t", 4},
	Uint64:  {"uint64_t", 8},
	Int64:   {"int64_t", 8},
	Float:   {"float", 4},
	Double:  {"double", 8},
	Char:    {"char", 1},
}

// Size returns the wire width in bytes of a single scalar of this type.
func (t Type) Size() int {
	if int(t) >= len(typeInfo) {
		return 0
	}
	return typeInfo[t].size
}

// Name returns the MAVLink XML type name (e.g. "uint32_t").
func (t Type) Name() string {
	if int(t) >= len(typeInfo) {
		return "unknown"
	}
	return typeInfo[t].name
}

func (t Type) String() string { return t.Name() }

// ErrUnknownType is returned by ParseType for an unrecognized type name.
type ErrUnknownType struct{ Name string }

func (e ErrUnknownType) Error() string { return fmt.Sprintf("wire: unknown type %q", e.Name) }

var byName = func() map[string]Type {
	m := make(map[string]Type, len(typeInfo))
	for i := range typeInfo {
		m[typeInfo[i].name] = Type(i)
	}
	return m
}()

// ParseType resolves a bare MAVLink XML type name (without any "[N]" array
// suffix, which callers strip beforehand) to a Type.
func ParseType(name string) (Type, error) {
	t, ok := byName[name]
	if !ok {
		return 0, ErrUnknownType{Name: name}
	}
	return t, nil
}

// WireGroup buckets a type by width for the descending-width wire-order
// sort mandated by the MAVLink field-ordering rule: 8-byte types first,
// then 4, then 2, then 1, stable within a width.
func (t Type) WireGroup() int { return t.Size() }

// DefaultTestValue returns a small, deterministic non-zero value of this
// type, used by code generators and round-trip tests to populate a message
// with plausible field data without needing a full RNG wired through every
// call site.
func (t Type) DefaultTestValue(seed int) any {
	s := seed%13 + 1
	switch t {
	case Uint8:
		return uint8(s)
	case Int8:
		return int8(s)
	case Uint16:
		return uint16(s * 100)
	case Int16:
		return int16(s * 100)
	case Uint32:
		return uint32(s * 10000)
	case Int32:
		return int32(s * 10000)
	case Uint64:
		return uint64(s) * 100000000
	case Int64:
		return int64(s) * 100000000
	case Float:
		return float32(s) + 0.5
	case Double:
		return float64(s) + 0.25
	case Char:
		return byte('a' + s%26)
	default:
		return nil
	}
}
