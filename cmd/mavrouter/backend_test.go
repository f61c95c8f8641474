package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/avionics-oss/go-mavlink/internal/channel"
	"github.com/avionics-oss/go-mavlink/internal/codec"
	"github.com/avionics-oss/go-mavlink/internal/dialect"
	"github.com/avionics-oss/go-mavlink/internal/hub"
	"github.com/avionics-oss/go-mavlink/internal/metrics"
	"github.com/avionics-oss/go-mavlink/internal/serialio"
)

// fakeSerialPort implements serialio.Port for tests: it hands back a
// fixed sequence of read chunks, then blocks briefly and returns EOF
// repeatedly (mirroring a port with no further data).
type fakeSerialPort struct {
	mu    sync.Mutex
	reads [][]byte
	idx   int
}

func (f *fakeSerialPort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.reads) {
		time.Sleep(10 * time.Millisecond)
		return 0, io.EOF
	}
	chunk := f.reads[f.idx]
	f.idx++
	n := copy(p, chunk)
	return n, nil
}
func (f *fakeSerialPort) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeSerialPort) Close() error                { return nil }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func loadTestCatalog(t *testing.T) *dialect.Catalog {
	t.Helper()
	cat, err := dialect.CompileFiles("../../testdata/dialects/heartbeat.xml")
	if err != nil {
		t.Fatalf("compile dialect: %v", err)
	}
	return cat
}

// TestInitSerialBackendDecodesAndBroadcasts feeds one wire-encoded
// HEARTBEAT frame through the RX loop and confirms it is decoded and
// broadcast to a hub subscriber as JSON.
func TestInitSerialBackendDecodesAndBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := loadTestCatalog(t)
	encodeCh := channel.New(cat, channel.WithSystemID(9), channel.WithComponentID(1))
	wireFrame, err := encodeCh.Encode("HEARTBEAT", codec.Value{
		"type": uint8(1), "autopilot": uint8(1), "base_mode": uint8(0),
		"custom_mode": uint32(0), "system_status": uint8(0), "mavlink_version": uint8(3),
	}, nil)
	if err != nil {
		t.Fatalf("encode fixture frame: %v", err)
	}

	openSerialPort = func(name string, baud int, to time.Duration) (serialio.Port, error) {
		return &fakeSerialPort{reads: [][]byte{wireFrame}}, nil
	}
	defer func() { openSerialPort = serialio.Open }()

	decodeCh := channel.New(cat)
	h := hub.New()
	cl := &hub.Client{Out: make(chan []byte, 4), Closed: make(chan struct{})}
	h.Add(cl)

	cfg := &appConfig{serialDev: "fake", baud: 57600, serialReadTO: 20 * time.Millisecond}
	var wg sync.WaitGroup
	tx, cleanup, err := initSerialBackend(ctx, cfg, decodeCh, h, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initSerialBackend: %v", err)
	}
	defer cleanup()
	if tx == nil {
		t.Fatal("expected non-nil TX writer")
	}

	select {
	case record := <-cl.Out:
		if len(record) == 0 {
			t.Fatal("expected non-empty broadcast record")
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for broadcast frame")
	}

	snap := metrics.Snap()
	if snap.FramesDecoded == 0 {
		t.Fatalf("expected FramesDecoded > 0")
	}
}

// TestInitSerialBackendOpenError propagates a port-open failure instead
// of starting the RX loop.
func TestInitSerialBackendOpenError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wantErr := io.ErrClosedPipe
	openSerialPort = func(name string, baud int, to time.Duration) (serialio.Port, error) {
		return nil, wantErr
	}
	defer func() { openSerialPort = serialio.Open }()

	cat := loadTestCatalog(t)
	ch := channel.New(cat)
	h := hub.New()
	cfg := &appConfig{serialDev: "fake", baud: 57600, serialReadTO: 20 * time.Millisecond}
	var wg sync.WaitGroup
	_, _, err := initSerialBackend(ctx, cfg, ch, h, testLogger(), &wg)
	if err == nil {
		t.Fatal("expected error from port open failure")
	}
}
