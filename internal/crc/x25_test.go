package crc

import "testing"

// TestHeartbeatCRCExtra exercises the scenario-1 HEARTBEAT v1 frame from
// the spec: CRC over bytes 1..14 (len through last payload byte)
// finalized with CRC_EXTRA=50 is reproducible and non-zero. The exact
// transmitted checksum bytes are verified end-to-end against the full
// encoded frame in codec's encoder tests.
func TestHeartbeatCRCExtra(t *testing.T) {
	frameBytes := []byte{
		0x09, 0x00, 0x63, 0x58, 0x00, // len, seq, sysid, compid, msgid
		0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x04, 0x03, // payload
	}
	got := Init().UpdateBytes(frameBytes).Finalize(50)
	again := Init().UpdateBytes(frameBytes).Finalize(50)
	if got != again || got == 0 {
		t.Fatalf("checksum not reproducible/non-zero: %x then %x", got, again)
	}
}

// TestHeartbeatCRCExtraValue pins CRC_EXTRA for HEARTBEAT at its
// well-known value, 50, by running the same "name type field "
// construction internal/dialect's crcExtra uses (XOR of the high and low
// byte of the CRC over that string) directly against this package's
// table. A polynomial regression here fails this test instead of only
// showing up as a reproducibility check that passes under either
// polynomial.
func TestHeartbeatCRCExtraValue(t *testing.T) {
	data := []byte("HEARTBEAT uint32_t custom_mode uint8_t type uint8_t autopilot uint8_t base_mode uint8_t system_status uint8_t mavlink_version ")
	v := uint16(Init().UpdateBytes(data))
	extra := byte(v>>8) ^ byte(v)
	if extra != 50 {
		t.Fatalf("HEARTBEAT CRC_EXTRA = %d, want 50", extra)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	data := []byte("HEARTBEAT uint32_t custom_mode uint8_t type uint8_t autopilot uint8_t base_mode uint8_t system_status uint8_t mavlink_version ")
	a := Init().UpdateBytes(data)
	b := Init().UpdateBytes(data)
	if a != b {
		t.Fatalf("checksum not deterministic: %x vs %x", a, b)
	}
}

func TestFinalizeDiffersFromUpdate(t *testing.T) {
	acc := Init().UpdateBytes([]byte{1, 2, 3})
	withExtra := acc.Finalize(7)
	withoutExtra := uint16(acc)
	if withExtra == withoutExtra {
		t.Fatal("finalize should fold in crc-extra and change the result")
	}
}

func TestBytesLittleEndian(t *testing.T) {
	b := Bytes(0x1234)
	if b[0] != 0x34 || b[1] != 0x12 {
		t.Fatalf("Bytes(0x1234) = %x, want [34 12]", b)
	}
}
