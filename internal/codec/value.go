// Package codec implements the MAVLink frame encoder and decoder: turning
// a dynamically-typed field map into an on-the-wire byte frame and back,
// for both the MAVLink 1 and MAVLink 2 framing versions.
package codec

// Protocol identifies a MAVLink framing version.
type Protocol uint8

const (
	V1 Protocol = iota
	V2
)

func (p Protocol) String() string {
	if p == V2 {
		return "v2"
	}
	return "v1"
}

// EnumValue is the sum-typed representation of an enum-typed field value:
// either a known symbolic Key backed by Raw, or (when Known is false) a
// bare numeric value the catalog's enum group didn't recognize.
type EnumValue struct {
	Key   string
	Raw   uint32
	Known bool
}

// BitmaskValue is the decomposed form of a bitmask-typed field: the set of
// recognized flag names plus any residual bits the enum group doesn't
// define.
type BitmaskValue struct {
	Flags   []string
	Unknown uint32
}

// Value is the open, dynamically-shaped field map a decoded or
// to-be-encoded message carries: field name to Go value, where the value
// is one of the basic numeric/string/byte-slice types, an EnumValue, a
// BitmaskValue, or a slice of any of those for array fields.
type Value map[string]any

// Frame is a decoded MAVLink message record.
type Frame struct {
	MessageID   uint32
	MessageName string
	Fields      Value

	Protocol     Protocol
	Sequence     uint8
	SystemID     uint8
	ComponentID  uint8

	// LinkID and SignatureValid are only meaningful for v2 signed frames.
	Signed         bool
	LinkID         uint8
	SignatureValid bool
}
