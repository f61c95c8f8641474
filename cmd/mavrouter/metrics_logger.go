package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avionics-oss/go-mavlink/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"frames_decoded", snap.FramesDecoded,
					"frames_encoded", snap.FramesEncoded,
					"bad_checksum", snap.BadChecksum,
					"bad_signature", snap.BadSignature,
					"unknown_message", snap.UnknownMessage,
					"tcp_rx", snap.TCPRx,
					"tcp_tx", snap.TCPTx,
					"hub_drops", snap.HubDrops,
					"hub_clients", snap.HubClients,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
