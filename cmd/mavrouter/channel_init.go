package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/avionics-oss/go-mavlink/internal/channel"
	"github.com/avionics-oss/go-mavlink/internal/codec"
	"github.com/avionics-oss/go-mavlink/internal/dialect"
)

// initChannel loads the configured dialect document and constructs the
// single Channel the router's serial backend and every TCP connection
// share, guarded by the Channel's own internal lock.
func initChannel(cfg *appConfig, l *slog.Logger) (*channel.Channel, error) {
	catalog, err := dialect.CompileFiles(cfg.dialectPath)
	if err != nil {
		return nil, fmt.Errorf("compile dialect: %w", err)
	}
	l.Info("dialect_loaded", "path", cfg.dialectPath, "messages", len(catalog.Messages()))

	proto := codec.V1
	if cfg.protocol == "v2" {
		proto = codec.V2
	}
	opts := []channel.Option{
		channel.WithProtocol(proto),
		channel.WithSystemID(uint8(cfg.systemID)),
		channel.WithComponentID(uint8(cfg.componentID)),
		channel.WithLinkID(uint8(cfg.linkID)),
	}
	if cfg.signingKeyHex != "" {
		raw, err := hex.DecodeString(cfg.signingKeyHex)
		if err != nil {
			return nil, fmt.Errorf("decode signing-key-hex: %w", err)
		}
		var key [32]byte
		copy(key[:], raw)
		opts = append(opts, channel.WithSigningKey(key))
		l.Info("signing_enabled", "link_id", cfg.linkID)
	}
	return channel.New(catalog, opts...), nil
}
