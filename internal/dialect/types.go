// Package dialect compiles MAVLink XML dialect documents into an
// in-memory catalog of message specifications and enum groups, computing
// each message's CRC_EXTRA seed and canonical wire field order.
package dialect

import "github.com/avionics-oss/go-mavlink/internal/wire"

// Field describes one message field as declared in the dialect XML.
type Field struct {
	Name      string
	Type      wire.Type
	ArrayLen  int // 1 for scalar fields
	EnumGroup string
	IsBitmask bool
	Extension bool
}

// Size returns the total wire width of this field (ArrayLen * Type.Size()).
func (f Field) Size() int { return f.ArrayLen * f.Type.Size() }

// Message is the compiled specification of a single MAVLink message.
type Message struct {
	ID   uint32
	Name string

	// Fields is declaration order, core fields followed by extension
	// fields, exactly as they appeared in the XML.
	Fields []Field

	// WireFields is the order fields are actually written to and read
	// from the wire: core fields sorted stably by descending primitive
	// width, then extension fields in declaration order appended last.
	WireFields []Field

	CRCExtra      uint8
	HasExtensions bool
}

// CoreLength is the sum of non-extension field sizes: the v1 payload
// length. v2 payloads may be shorter once trailing zeros are truncated.
func (m *Message) CoreLength() int {
	n := 0
	for _, f := range m.WireFields {
		if !f.Extension {
			n += f.Size()
		}
	}
	return n
}

// MaxLength is the sum of all field sizes including extensions: the
// maximum v2 payload length.
func (m *Message) MaxLength() int {
	n := 0
	for _, f := range m.WireFields {
		n += f.Size()
	}
	return n
}

// Enum is a compiled enum group: either a plain symbolic enum or, when
// IsBitmask is set, a set-of-flags group.
type Enum struct {
	Name       string
	ValueToKey map[uint32]string
	KeyToValue map[string]uint32
	IsBitmask  bool
}
