package codec

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/avionics-oss/go-mavlink/internal/crc"
	"github.com/avionics-oss/go-mavlink/internal/dialect"
)

func loadHeartbeatCatalog(t *testing.T) *dialect.Catalog {
	t.Helper()
	f, err := os.Open("../../testdata/dialects/heartbeat.xml")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	cat, err := dialect.Compile(f)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return cat
}

// TestEncodeHeartbeatV1 reproduces spec scenario 1 exactly.
func TestEncodeHeartbeatV1(t *testing.T) {
	cat := loadHeartbeatCatalog(t)
	enc := Encoder{Catalog: cat}

	frame, err := enc.Encode(EncodeRequest{
		MessageIDOrName: uint32(0),
		Fields: Value{
			"type":            uint8(1),
			"autopilot":       uint8(2),
			"base_mode":       uint8(0),
			"custom_mode":     uint32(0),
			"system_status":   uint8(4),
			"mavlink_version": uint8(3),
		},
		Protocol:    V1,
		Sequence:    0,
		SystemID:    99,
		ComponentID: 88,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	wantPrefix := []byte{0xFE, 0x09, 0x00, 0x63, 0x58, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x04, 0x03}
	if len(frame) != len(wantPrefix)+2 {
		t.Fatalf("frame length = %d, want %d", len(frame), len(wantPrefix)+2)
	}
	if !bytes.Equal(frame[:len(wantPrefix)], wantPrefix) {
		t.Fatalf("frame prefix = % x, want % x", frame[:len(wantPrefix)], wantPrefix)
	}
	// Checksum: CRC over bytes 1..14 finalized with HEARTBEAT's
	// CRC_EXTRA of 50, low byte first.
	wantCRC := crc.Bytes(crc.Init().UpdateBytes(frame[1:15]).Finalize(50))
	if frame[15] != wantCRC[0] || frame[16] != wantCRC[1] {
		t.Fatalf("checksum bytes = % x, want % x", frame[15:17], wantCRC[:])
	}
}

func TestEncodeUnknownMessage(t *testing.T) {
	cat := loadHeartbeatCatalog(t)
	enc := Encoder{Catalog: cat}
	_, err := enc.Encode(EncodeRequest{MessageIDOrName: uint32(9999), Fields: Value{}})
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("err = %v, want ErrUnknownMessage", err)
	}
}

func TestEncodeExtensionMessageUnderV1Fails(t *testing.T) {
	cat := loadHeartbeatCatalog(t)
	enc := Encoder{Catalog: cat}
	_, err := enc.Encode(EncodeRequest{
		MessageIDOrName: uint32(100),
		Fields:          Value{},
		Protocol:        V1,
	})
	if !errors.Is(err, ErrBadProtocol) {
		t.Fatalf("err = %v, want ErrBadProtocol", err)
	}
}

// TestEncodeV2Truncation reproduces spec scenario 3: with every field
// zero, the trailing zero bytes of the v2 payload (the five uint8 fields
// and the upper three bytes of custom_mode, which leads in wire order)
// are dropped, leaving the 1-byte minimum.
func TestEncodeV2Truncation(t *testing.T) {
	cat := loadHeartbeatCatalog(t)
	enc := Encoder{Catalog: cat}

	frame, err := enc.Encode(EncodeRequest{
		MessageIDOrName: uint32(0),
		Fields: Value{
			"type":            uint8(0),
			"autopilot":       uint8(0),
			"base_mode":       uint8(0),
			"custom_mode":     uint32(0),
			"system_status":   uint8(0),
			"mavlink_version": uint8(0),
		},
		Protocol: V2,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Declared core length is 9; an all-zero payload truncates to 1 byte.
	payloadLen := int(frame[1])
	if payloadLen != 1 {
		t.Fatalf("v2 payload length = %d, want 1 for all-zero fields", payloadLen)
	}
}

func TestEncodeOverflowAllowsPayloadWithinLimit(t *testing.T) {
	const doc = `<mavlink><messages>
		<message id="0" name="BIG"><field type="uint8_t[250]" name="data"></field></message>
	</messages></mavlink>`
	cat, err := dialect.Compile(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	enc := Encoder{Catalog: cat}

	fits := make([]uint8, 250)
	if _, err := enc.Encode(EncodeRequest{
		MessageIDOrName: uint32(0),
		Fields:          Value{"data": fits},
		Protocol:        V1,
	}); err != nil {
		t.Fatalf("250-byte array should fit in a v1 payload: %v", err)
	}
}

func TestEncodeOverflowRejectsOversizedPayload(t *testing.T) {
	const doc = `<mavlink><messages>
		<message id="0" name="HUGE"><field type="uint8_t[255]" name="a"></field><field type="uint8_t[10]" name="b"></field></message>
	</messages></mavlink>`
	cat, err := dialect.Compile(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	enc := Encoder{Catalog: cat}

	_, err = enc.Encode(EncodeRequest{
		MessageIDOrName: uint32(0),
		Fields:          Value{"a": make([]uint8, 255), "b": make([]uint8, 10)},
		Protocol:        V1,
	})
	if !errors.Is(err, ErrEncodeOverflow) {
		t.Fatalf("err = %v, want ErrEncodeOverflow", err)
	}
}
