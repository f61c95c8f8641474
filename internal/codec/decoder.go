package codec

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/avionics-oss/go-mavlink/internal/crc"
	"github.com/avionics-oss/go-mavlink/internal/dialect"
)

// DecodeEvent is either a successfully decoded Frame or a recoverable
// framing error observed while draining the buffer.
type DecodeEvent struct {
	Frame *Frame
	Err   error
}

// AcceptSignaturePredicate is consulted when v2 signature verification
// fails (bad cryptographic signature or a non-monotonic timestamp);
// returning true emits the frame anyway with SignatureValid=false rather
// than discarding it, per the dual accept/flag-invalid behavior this
// decoder preserves.
type AcceptSignaturePredicate func(f *Frame) bool

// LastTimestampLookup and LastTimestampStore let the Decoder track, per
// (system, component, link), the highest accepted signing timestamp, so
// monotonicity can be enforced across calls without the Decoder owning
// that bookkeeping itself (Channel owns it, the same way it owns
// sequence numbers).
type LastTimestampLookup func(sysID, compID, linkID uint8) (uint64, bool)
type LastTimestampStore func(sysID, compID, linkID uint8, ts uint64)

// Decoder is a persistent byte-at-a-time state machine. Feed appends new
// bytes and drains as many complete frames as are currently available;
// partial frames are preserved in buf across calls, so interruption
// between Feed calls never loses data.
type Decoder struct {
	Catalog *dialect.Catalog

	// SigningKey, when set, enables cryptographic verification of v2
	// signed frames. A nil key means every signed frame is treated as a
	// signature mismatch, which AcceptSignature can still choose to let
	// through with SignatureValid=false.
	SigningKey *[32]byte

	AcceptSignature AcceptSignaturePredicate
	LookupLastTS    LastTimestampLookup
	StoreLastTS     LastTimestampStore

	buf bytes.Buffer
}

// Feed appends data to the decoder's internal buffer and drains every
// complete frame (or framing error) currently available.
func (d *Decoder) Feed(data []byte) []DecodeEvent {
	d.buf.Write(data)
	var events []DecodeEvent
	for {
		ev, ok := d.step()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

const (
	v1HeaderLen  = 4 // seq, sysid, compid, msgid(1)
	v2HeaderLen  = 8 // incompat, compat, seq, sysid, compid, msgid(3)
	v1FixedBytes = 2 + v1HeaderLen // start + len + header, before payload
	v2FixedBytes = 2 + v2HeaderLen // start + len + header, before payload
)

// step attempts to decode exactly one frame or error report from the
// front of the buffer. It returns ok=false when more bytes are needed.
func (d *Decoder) step() (DecodeEvent, bool) {
	compactBuffer(&d.buf)
	data := d.buf.Bytes()
	if len(data) == 0 {
		return DecodeEvent{}, false
	}

	switch data[0] {
	case startV1:
		return d.decodeV1(data)
	case startV2:
		return d.decodeV2(data)
	default:
		// Resync: find the next plausible start marker and discard the
		// garbage byte(s) before it, mirroring the teacher's
		// bytes.Index-based resync in serial/codec.go.
		idx := bytes.IndexAny(data[1:], string([]byte{startV1, startV2}))
		if idx < 0 {
			d.buf.Next(len(data))
			return DecodeEvent{}, false
		}
		d.buf.Next(idx + 1)
		return d.step()
	}
}

func (d *Decoder) decodeV1(data []byte) (DecodeEvent, bool) {
	if len(data) < 2 {
		return DecodeEvent{}, false
	}
	ln := int(data[1])
	total := v1FixedBytes + ln + 2 // + payload + crc
	if len(data) < total {
		return DecodeEvent{}, false
	}

	seq := data[2]
	sysID := data[3]
	compID := data[4]
	msgID := uint32(data[5])
	payload := data[6 : 6+ln]
	crcBytes := data[6+ln : 6+ln+2]

	msg, ok := d.Catalog.MessageByID(msgID)
	if !ok {
		d.buf.Next(total)
		return DecodeEvent{Err: fmt.Errorf("%w: id %d", ErrUnknownMessage, msgID)}, true
	}

	if ln != msg.CoreLength() {
		d.buf.Next(total)
		return DecodeEvent{Err: fmt.Errorf("%w: message %q expected %d bytes, got %d", ErrBadLength, msg.Name, msg.CoreLength(), ln)}, true
	}

	got := uint16(crcBytes[0]) | uint16(crcBytes[1])<<8
	want := crc.Init().UpdateBytes(data[1 : 6+ln]).Finalize(msg.CRCExtra)
	if got != want {
		d.buf.Next(1)
		return DecodeEvent{Err: ErrBadChecksum}, true
	}

	frame := &Frame{
		MessageID:   msgID,
		MessageName: msg.Name,
		Fields:      decodeFields(d.Catalog, msg, payload, false),
		Protocol:    V1,
		Sequence:    seq,
		SystemID:    sysID,
		ComponentID: compID,
	}
	d.buf.Next(total)
	return DecodeEvent{Frame: frame}, true
}

func (d *Decoder) decodeV2(data []byte) (DecodeEvent, bool) {
	if len(data) < v2FixedBytes {
		return DecodeEvent{}, false
	}
	ln := int(data[1])
	incompat := data[2]
	signed := incompat&incompatSigned != 0

	headerEnd := v2FixedBytes
	trailerLen := 2
	if signed {
		trailerLen += 13
	}
	total := headerEnd + ln + trailerLen
	if len(data) < total {
		return DecodeEvent{}, false
	}

	seq := data[5]
	sysID := data[6]
	compID := data[7]
	msgID := uint32(data[8]) | uint32(data[9])<<8 | uint32(data[10])<<16
	payload := data[headerEnd : headerEnd+ln]
	crcOffset := headerEnd + ln
	crcBytes := data[crcOffset : crcOffset+2]

	msg, ok := d.Catalog.MessageByID(msgID)
	if !ok {
		d.buf.Next(total)
		return DecodeEvent{Err: fmt.Errorf("%w: id %d", ErrUnknownMessage, msgID)}, true
	}

	maxLen := msg.MaxLength()
	if ln > maxLen {
		// Truncate to maximum; bytes beyond it are not part of any
		// field this dialect knows about.
		payload = payload[:maxLen]
	}

	got := uint16(crcBytes[0]) | uint16(crcBytes[1])<<8
	want := crc.Init().UpdateBytes(data[1:crcOffset]).Finalize(msg.CRCExtra)
	if got != want {
		d.buf.Next(1)
		return DecodeEvent{Err: ErrBadChecksum}, true
	}

	padded := padPayload(payload, maxLen)
	frame := &Frame{
		MessageID:   msgID,
		MessageName: msg.Name,
		Fields:      decodeFields(d.Catalog, msg, padded, true),
		Protocol:    V2,
		Sequence:    seq,
		SystemID:    sysID,
		ComponentID: compID,
	}

	if !signed {
		d.buf.Next(total)
		return DecodeEvent{Frame: frame}, true
	}

	sigOffset := crcOffset + 2
	linkID := data[sigOffset]
	tsBytes := data[sigOffset+1 : sigOffset+7]
	sigBytes := data[sigOffset+7 : sigOffset+13]
	ts := uint48LE(tsBytes)

	frame.Signed = true
	frame.LinkID = linkID

	ok = d.acceptSignature(data[:sigOffset+7], sigBytes, sysID, compID, linkID, ts)
	if !ok {
		if d.AcceptSignature != nil && d.AcceptSignature(frame) {
			frame.SignatureValid = false
			d.commitTimestamp(sysID, compID, linkID, ts)
			d.buf.Next(total)
			return DecodeEvent{Frame: frame}, true
		}
		d.buf.Next(total)
		return DecodeEvent{Err: ErrBadSignature}, true
	}

	frame.SignatureValid = true
	d.commitTimestamp(sysID, compID, linkID, ts)
	d.buf.Next(total)
	return DecodeEvent{Frame: frame}, true
}

// acceptSignature reports whether the frame's signature is both
// cryptographically valid and carries a monotonically increasing
// timestamp for its (system, component, link) tuple.
func (d *Decoder) acceptSignature(framePrefix, sigBytes []byte, sysID, compID, linkID uint8, ts uint64) bool {
	if d.LookupLastTS != nil {
		if last, ok := d.LookupLastTS(sysID, compID, linkID); ok && ts < last {
			return false
		}
	}
	if d.SigningKey == nil {
		return false
	}
	want := computeSignature(*d.SigningKey, framePrefix)
	return bytes.Equal(want[:], sigBytes)
}

func (d *Decoder) commitTimestamp(sysID, compID, linkID uint8, ts uint64) {
	if d.StoreLastTS != nil {
		d.StoreLastTS(sysID, compID, linkID, ts)
	}
}

// computeSignature returns the leading 6 bytes of SHA-256 over
// key || framePrefix, where framePrefix is already the concatenation of
// the frame through its checksum, the link id, and the timestamp (the
// wire layout places these in exactly that order, so no separate
// arguments are needed here).
func computeSignature(key [32]byte, framePrefix []byte) [6]byte {
	h := sha256.New()
	h.Write(key[:])
	h.Write(framePrefix)
	sum := h.Sum(nil)
	var out [6]byte
	copy(out[:], sum[:6])
	return out
}

// padPayload returns payload zero-extended to length n, copying only when
// extension is actually needed.
func padPayload(payload []byte, n int) []byte {
	if len(payload) >= n {
		return payload
	}
	out := make([]byte, n)
	copy(out, payload)
	return out
}

func decodeFields(cat *dialect.Catalog, msg *dialect.Message, payload []byte, includeExtensions bool) Value {
	v := make(Value, len(msg.WireFields))
	off := 0
	for _, f := range msg.WireFields {
		if f.Extension && !includeExtensions {
			continue
		}
		size := f.Size()
		if off+size > len(payload) {
			break
		}
		v[f.Name] = decodeField(payload[off:off+size], cat, f)
		off += size
	}
	return v
}

// compactBuffer reclaims consumed prefix capacity when the underlying
// buffer has grown large relative to its unread bytes, directly grounded
// on the teacher's serial.CompactBuffer.
func compactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < 1024 {
		return false
	}
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}
