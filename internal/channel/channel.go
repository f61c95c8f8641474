// Package channel owns per-endpoint MAVLink state — protocol version,
// sequence counter, system/component ids, signing key and timestamp, and
// statistics counters — and serializes encode and decode operations so
// those state transitions are race-free. Constructed with the same
// functional-options idiom the teacher's server.Server uses.
package channel

import (
	"sync"
	"time"

	"github.com/avionics-oss/go-mavlink/internal/codec"
	"github.com/avionics-oss/go-mavlink/internal/dialect"
)

// Statistics mirrors the read-only counters in Channel, returned by value
// so callers can snapshot them without holding a lock.
type Statistics struct {
	FramesDecoded  uint64
	BadChecksum    uint64
	BadLength      uint64
	BadSignature   uint64
	BadProtocol    uint64
	UnknownMessage uint64
	FramesEncoded  uint64
}

// tsKey identifies a (system, component, link) tuple for monotonic
// signing-timestamp tracking.
type tsKey struct {
	sysID, compID, linkID uint8
}

// Channel serializes encode/decode access to one MAVLink endpoint's
// mutable state. The dialect Catalog it's built with is shared, immutable
// state — the Channel never copies it.
type Channel struct {
	mu sync.Mutex

	catalog *dialect.Catalog
	encoder codec.Encoder
	decoder *codec.Decoder

	protocol    codec.Protocol
	seq         uint8
	systemID    uint8
	componentID uint8
	linkID      uint8

	signingKey  *[32]byte
	lastTSByKey map[tsKey]uint64
	clock       func() time.Time
	lastClockUS uint64

	acceptSig codec.AcceptSignaturePredicate

	stats Statistics
}

// Option configures a Channel at construction time.
type Option func(*Channel)

// WithProtocol sets the channel's initial protocol version.
func WithProtocol(p codec.Protocol) Option { return func(c *Channel) { c.protocol = p } }

// WithSystemID sets the outbound system id used on every Encode.
func WithSystemID(id uint8) Option { return func(c *Channel) { c.systemID = id } }

// WithComponentID sets the outbound component id used on every Encode.
func WithComponentID(id uint8) Option { return func(c *Channel) { c.componentID = id } }

// WithLinkID sets the link id used when signing outbound v2 frames.
func WithLinkID(id uint8) Option { return func(c *Channel) { c.linkID = id } }

// WithSigningKey enables v2 signing with a raw 32-byte key.
func WithSigningKey(key [32]byte) Option {
	return func(c *Channel) { c.signingKey = &key }
}

// WithAcceptSignaturePredicate installs the callback consulted when an
// inbound v2 signature fails cryptographic or monotonicity verification.
func WithAcceptSignaturePredicate(fn codec.AcceptSignaturePredicate) Option {
	return func(c *Channel) { c.acceptSig = fn }
}

// withClock overrides the wall-clock source; exposed unexported for tests
// that need deterministic, non-advancing time to exercise the strictly
// monotonic signing-timestamp bump.
func withClock(fn func() time.Time) Option {
	return func(c *Channel) { c.clock = fn }
}

// New constructs a Channel bound to catalog, applying opts in order.
func New(catalog *dialect.Catalog, opts ...Option) *Channel {
	c := &Channel{
		catalog:     catalog,
		protocol:    codec.V1,
		lastTSByKey: make(map[tsKey]uint64),
		clock:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.encoder = codec.Encoder{Catalog: catalog}
	c.decoder = &codec.Decoder{
		Catalog:         catalog,
		SigningKey:      c.signingKey,
		AcceptSignature: c.acceptSig,
		LookupLastTS:    c.lookupLastTS,
		StoreLastTS:     c.storeLastTS,
	}
	return c
}

// Statistics returns a snapshot of this channel's counters.
func (c *Channel) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Protocol returns the channel's current protocol version.
func (c *Channel) Protocol() codec.Protocol {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocol
}

// SetProtocol sets the channel's protocol. A downgrade from v2 to v1 is
// refused with codec.ErrBadProtocol and counted in BadProtocol; inbound v2
// traffic auto-upgrades the protocol on its own (see Feed) and does not
// need this.
func (c *Channel) SetProtocol(p codec.Protocol) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.protocol == codec.V2 && p == codec.V1 {
		c.stats.BadProtocol++
		return codec.ErrBadProtocol
	}
	c.protocol = p
	return nil
}

func (c *Channel) lookupLastTS(sysID, compID, linkID uint8) (uint64, bool) {
	v, ok := c.lastTSByKey[tsKey{sysID, compID, linkID}]
	return v, ok
}

func (c *Channel) storeLastTS(sysID, compID, linkID uint8, ts uint64) {
	c.lastTSByKey[tsKey{sysID, compID, linkID}] = ts
}
