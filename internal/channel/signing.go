package channel

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// signingInfo is the HKDF info string binding a derived key to its
// purpose, so the same passphrase used elsewhere in an application can't
// accidentally produce the same key material for an unrelated use.
const signingInfo = "mavlink2-signing"

// WithSigningPassphrase derives a 32-byte signing key from an arbitrary
// passphrase via HKDF-SHA256 (empty salt, the fixed signingInfo string)
// rather than requiring operators to generate and manage a raw key file.
// The signed wire format is unaffected; only how the key material is
// obtained differs from WithSigningKey.
func WithSigningPassphrase(passphrase string) Option {
	return func(c *Channel) {
		var key [32]byte
		r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(signingInfo))
		_, _ = io.ReadFull(r, key[:])
		c.signingKey = &key
	}
}

// nextSigningTimestamp returns the next monotonic 48-bit microsecond
// timestamp for this channel: the current wall clock in microseconds
// since epoch, or lastClockUS+1 if the clock has not advanced since the
// previous call. It persists across encodes for the channel's lifetime
// and is never reset by a protocol change.
func (c *Channel) nextSigningTimestamp() uint64 {
	now := uint64(c.clock().UnixMicro()) & 0xFFFFFFFFFFFF
	if now <= c.lastClockUS {
		now = c.lastClockUS + 1
	}
	c.lastClockUS = now
	return now
}
