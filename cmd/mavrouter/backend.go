package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/avionics-oss/go-mavlink/internal/channel"
	"github.com/avionics-oss/go-mavlink/internal/codec"
	"github.com/avionics-oss/go-mavlink/internal/hub"
	"github.com/avionics-oss/go-mavlink/internal/metrics"
	"github.com/avionics-oss/go-mavlink/internal/serialio"
)

const (
	txQueueSize       = 1024
	serialReadBufSize = 4096
	rxBackoffMin      = 20 * time.Millisecond
	rxBackoffMax      = 500 * time.Millisecond
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// openSerialPort is a hook for tests.
var openSerialPort = serialio.Open

// initSerialBackend opens the serial port, starts its RX decode loop
// (feeding ch and broadcasting every decoded frame as JSON on h) and
// returns a TX writer for publisher-originated encode requests plus a
// cleanup function.
func initSerialBackend(ctx context.Context, cfg *appConfig, ch *channel.Channel, h *hub.Hub, l *slog.Logger, wg *sync.WaitGroup) (*serialio.TXWriter, func(), error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, func() {}, err
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)

	tx := serialio.NewTXWriter(ctx, sp, txQueueSize)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("serial_rx_end")
		buf := make([]byte, serialReadBufSize)
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := sp.Read(buf)
			if n > 0 {
				for _, ev := range ch.Feed(buf[:n]) {
					broadcastEvent(h, ev, l)
				}
				backoff = rxBackoffMin
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					return
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue
				}
				metrics.IncError(metrics.ErrSerialRead)
				l.Warn("serial_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
			}
		}
	}()
	return tx, func() { _ = sp.Close(); tx.Close() }, nil
}

func broadcastEvent(h *hub.Hub, ev codec.DecodeEvent, l *slog.Logger) {
	if ev.Frame == nil {
		if ev.Err != nil {
			switch {
			case errors.Is(ev.Err, codec.ErrBadChecksum):
				metrics.IncBadChecksum()
			case errors.Is(ev.Err, codec.ErrBadLength):
				metrics.IncBadLength()
			case errors.Is(ev.Err, codec.ErrBadSignature):
				metrics.IncBadSignature()
			case errors.Is(ev.Err, codec.ErrUnknownMessage):
				metrics.IncUnknownMessage()
			}
			l.Debug("decode_rejected", "error", ev.Err)
		}
		return
	}
	metrics.IncFramesDecoded()
	record, err := json.Marshal(ev.Frame)
	if err != nil {
		l.Warn("frame_marshal_failed", "error", err)
		return
	}
	h.Broadcast(record)
}
