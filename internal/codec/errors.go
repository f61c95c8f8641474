package codec

import "errors"

// Sentinel errors surfaced by the encoder and decoder. Callers classify
// with errors.Is; wrapping preserves context (message name, field name)
// while keeping the sentinel identity intact, the same pattern the
// teacher's server package uses for its own error classification.
var (
	ErrUnknownMessage  = errors.New("mavlink: unknown message")
	ErrBadProtocol     = errors.New("mavlink: bad protocol")
	ErrFieldOutOfRange = errors.New("mavlink: field out of range")
	ErrFieldUnknown    = errors.New("mavlink: field unknown")
	ErrEncodeOverflow  = errors.New("mavlink: encode overflow")

	ErrBadChecksum  = errors.New("mavlink: bad checksum")
	ErrBadLength    = errors.New("mavlink: bad length")
	ErrBadSignature = errors.New("mavlink: bad signature")
)
