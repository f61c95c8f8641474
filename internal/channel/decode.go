package channel

import (
	"errors"

	"github.com/avionics-oss/go-mavlink/internal/codec"
)

// Feed submits newly arrived bytes to the channel's decoder and returns
// every frame (or recoverable error) that became available. A successful
// v2 decode auto-upgrades the channel from v1 to v2; the reverse
// downgrade is never performed automatically, and SetProtocol refuses it
// when requested explicitly.
func (c *Channel) Feed(data []byte) []codec.DecodeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := c.decoder.Feed(data)
	for _, ev := range events {
		c.countDecodeEvent(ev)
		if ev.Frame != nil && ev.Frame.Protocol == codec.V2 && c.protocol == codec.V1 {
			c.protocol = codec.V2
		}
	}
	return events
}

func (c *Channel) countDecodeEvent(ev codec.DecodeEvent) {
	if ev.Frame != nil {
		c.stats.FramesDecoded++
		return
	}
	switch {
	case errors.Is(ev.Err, codec.ErrBadChecksum):
		c.stats.BadChecksum++
	case errors.Is(ev.Err, codec.ErrBadLength):
		c.stats.BadLength++
	case errors.Is(ev.Err, codec.ErrBadSignature):
		c.stats.BadSignature++
	case errors.Is(ev.Err, codec.ErrUnknownMessage):
		c.stats.UnknownMessage++
	}
}
