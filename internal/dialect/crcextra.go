package dialect

import "github.com/avionics-oss/go-mavlink/internal/crc"

// crcExtra computes the deterministic 8-bit CRC_EXTRA seed for a message:
// the XOR of the high and low bytes of the X.25 CRC-16 over the ASCII
// message name, a space, and "<type-name> <field-name> " for each core
// (non-extension) field in wire order, with a trailing raw byte equal to
// the array length appended for array fields. Extension fields never
// participate, matching their exclusion from the declared payload length.
func crcExtra(m *Message) uint8 {
	acc := crc.Init()
	acc = acc.UpdateBytes([]byte(m.Name))
	acc = acc.Update(' ')
	for _, f := range m.WireFields {
		if f.Extension {
			continue
		}
		acc = acc.UpdateBytes([]byte(f.Type.Name()))
		acc = acc.Update(' ')
		acc = acc.UpdateBytes([]byte(f.Name))
		acc = acc.Update(' ')
		if f.ArrayLen > 1 {
			acc = acc.Update(byte(f.ArrayLen))
		}
	}
	v := uint16(acc)
	return byte(v>>8) ^ byte(v)
}
