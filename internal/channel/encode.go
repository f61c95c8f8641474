package channel

import (
	"errors"

	"github.com/avionics-oss/go-mavlink/internal/codec"
)

// Encode serializes message (identified by numeric id or name) with
// fields into a wire frame using the channel's current protocol, system
// id, component id, and (if configured) signing key, then advances the
// sequence counter modulo 256. protocolOverride, when non-nil, takes
// precedence over the channel's current protocol for this call only.
func (c *Channel) Encode(messageIDOrName any, fields codec.Value, protocolOverride *codec.Protocol) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := codec.EncodeRequest{
		MessageIDOrName:  messageIDOrName,
		Fields:           fields,
		ProtocolOverride: protocolOverride,
		Protocol:         c.protocol,
		Sequence:         c.seq,
		SystemID:         c.systemID,
		ComponentID:      c.componentID,
	}

	effective := c.protocol
	if protocolOverride != nil {
		effective = *protocolOverride
	}
	if effective == codec.V2 && c.signingKey != nil {
		req.Signing = &codec.SigningParams{
			Key:       *c.signingKey,
			LinkID:    c.linkID,
			Timestamp: c.nextSigningTimestamp(),
		}
	}

	frame, err := c.encoder.Encode(req)
	if err != nil {
		c.countEncodeError(err)
		return nil, err
	}

	c.stats.FramesEncoded++
	c.seq++
	return frame, nil
}

func (c *Channel) countEncodeError(err error) {
	switch {
	case errors.Is(err, codec.ErrUnknownMessage):
		c.stats.UnknownMessage++
	case errors.Is(err, codec.ErrBadProtocol):
		c.stats.BadProtocol++
	}
}
