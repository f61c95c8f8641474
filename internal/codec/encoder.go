package codec

import (
	"fmt"

	"github.com/avionics-oss/go-mavlink/internal/crc"
	"github.com/avionics-oss/go-mavlink/internal/dialect"
)

const (
	startV1 = 0xFE
	startV2 = 0xFD

	incompatSigned = 0x01
)

// EncodeRequest is the input to Encoder.Encode: everything the caller
// supplies to produce one frame. ProtocolOverride, when non-nil, wins
// over the channel's current protocol.
type EncodeRequest struct {
	MessageIDOrName any // uint32 id, or string name
	Fields          Value

	ProtocolOverride *Protocol

	Protocol    Protocol
	Sequence    uint8
	SystemID    uint8
	ComponentID uint8

	// Signing, when non-nil, requests a v2 signing trailer.
	Signing *SigningParams
}

// SigningParams carries everything the encoder needs to append a v2
// signature trailer; Channel is the sole owner of key/timestamp state
// and fills this in immediately before calling Encode.
type SigningParams struct {
	Key       [32]byte
	LinkID    uint8
	Timestamp uint64 // 48-bit monotonic microseconds
}

// Encoder is a stateless value, like the teacher's cnl.Codec: all mutable
// per-endpoint state (sequence, signing key/timestamp) is supplied by the
// caller (Channel) on every call rather than owned here.
type Encoder struct {
	Catalog *dialect.Catalog
}

// Encode builds the wire frame for req, selecting the message by id or
// name, resolving the effective protocol, and appending checksum and
// (if requested) the v2 signing trailer.
func (e Encoder) Encode(req EncodeRequest) ([]byte, error) {
	msg, err := e.resolveMessage(req.MessageIDOrName)
	if err != nil {
		return nil, err
	}

	proto := req.Protocol
	if req.ProtocolOverride != nil {
		proto = *req.ProtocolOverride
	}
	if msg.HasExtensions && proto == V1 {
		return nil, fmt.Errorf("%w: message %q requires extensions, not available on v1", ErrBadProtocol, msg.Name)
	}

	payload, err := e.buildPayload(msg, req.Fields, proto)
	if err != nil {
		return nil, err
	}

	var frame []byte
	if proto == V2 {
		frame = e.encodeV2Header(msg, req, payload)
	} else {
		frame = e.encodeV1Header(msg, req, payload)
	}
	frame = append(frame, payload...)

	sum := crc.Init().UpdateBytes(frame[1:]).Finalize(msg.CRCExtra)
	b := crc.Bytes(sum)
	frame = append(frame, b[0], b[1])

	if proto == V2 && req.Signing != nil {
		frame = appendSignature(frame, *req.Signing)
	}

	return frame, nil
}

func (e Encoder) resolveMessage(key any) (*dialect.Message, error) {
	switch x := key.(type) {
	case uint32:
		if m, ok := e.Catalog.MessageByID(x); ok {
			return m, nil
		}
	case int:
		if m, ok := e.Catalog.MessageByID(uint32(x)); ok {
			return m, nil
		}
	case string:
		if m, ok := e.Catalog.MessageByName(x); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, key)
}

// buildPayload writes core fields in wire order, then (v2 only)
// extension fields in declaration order, then truncates trailing zero
// bytes for v2.
func (e Encoder) buildPayload(msg *dialect.Message, fields Value, proto Protocol) ([]byte, error) {
	buf := make([]byte, 0, msg.MaxLength())
	var err error
	for _, f := range msg.WireFields {
		if f.Extension && proto != V2 {
			continue
		}
		buf, err = encodeField(buf, e.Catalog, f, fields[f.Name])
		if err != nil {
			return nil, err
		}
	}
	if len(buf) > 255 {
		return nil, fmt.Errorf("%w: payload length %d exceeds 255", ErrEncodeOverflow, len(buf))
	}
	if proto == V2 {
		buf = truncateTrailingZeros(buf)
	}
	return buf, nil
}

// truncateTrailingZeros drops trailing zero bytes per the v2 payload
// truncation rule, never reducing length below 1.
func truncateTrailingZeros(buf []byte) []byte {
	n := len(buf)
	for n > 1 && buf[n-1] == 0 {
		n--
	}
	return buf[:n]
}

func (e Encoder) encodeV1Header(msg *dialect.Message, req EncodeRequest, payload []byte) []byte {
	h := make([]byte, 0, 6)
	h = append(h, startV1, byte(len(payload)), req.Sequence, req.SystemID, req.ComponentID, byte(msg.ID))
	return h
}

func (e Encoder) encodeV2Header(msg *dialect.Message, req EncodeRequest, payload []byte) []byte {
	var incompat byte
	if req.Signing != nil {
		incompat = incompatSigned
	}
	h := make([]byte, 0, 10)
	h = append(h, startV2, byte(len(payload)), incompat, 0, req.Sequence, req.SystemID, req.ComponentID,
		byte(msg.ID), byte(msg.ID>>8), byte(msg.ID>>16))
	return h
}

// appendSignature appends the 13-byte v2 signing trailer: link id, 6-byte
// little-endian timestamp, and the leading 6 bytes of SHA-256 over
// key || frame-through-checksum || link-id || timestamp.
func appendSignature(frame []byte, sp SigningParams) []byte {
	frame = append(frame, sp.LinkID)
	var ts [6]byte
	putUint48LE(ts[:], sp.Timestamp)
	frame = append(frame, ts[:]...)

	sig := computeSignature(sp.Key, frame)
	return append(frame, sig[:]...)
}

func putUint48LE(b []byte, v uint64) {
	for i := 0; i < 6; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func uint48LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 6; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}
