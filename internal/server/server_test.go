package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avionics-oss/go-mavlink/internal/channel"
	"github.com/avionics-oss/go-mavlink/internal/codec"
	"github.com/avionics-oss/go-mavlink/internal/dialect"
	"github.com/avionics-oss/go-mavlink/internal/hub"
	"github.com/avionics-oss/go-mavlink/internal/serialio"
)

func loadHeartbeatCatalog(t *testing.T) *dialect.Catalog {
	t.Helper()
	f, err := os.Open("../../testdata/dialects/heartbeat.xml")
	if err != nil {
		t.Fatalf("open dialect: %v", err)
	}
	defer f.Close()
	cat, err := dialect.Compile(f)
	if err != nil {
		t.Fatalf("compile dialect: %v", err)
	}
	return cat
}

// fakePort is an in-memory serialio.Port that records every Write and
// never produces inbound data.
type fakePort struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	<-make(chan struct{}) // never returns; RX loop is not exercised by server tests
	return 0, nil
}
func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	p.written = append(p.written, cp)
	return len(b), nil
}
func (p *fakePort) Close() error { p.mu.Lock(); defer p.mu.Unlock(); p.closed = true; return nil }
func (p *fakePort) writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.written))
	copy(out, p.written)
	return out
}

func dialAndHandshake(t *testing.T, addr string, role Role) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	hello, _ := json.Marshal(map[string]Role{"role": role})
	if _, err := conn.Write(append(hello, '\n')); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	return conn
}

func TestSubscriberReceivesBroadcastFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.New()
	srv := NewServer(WithHub(h), WithListenAddr(":0"), WithHandshakeTimeout(time.Second))
	go srv.Serve(ctx)
	<-srv.Ready()

	conn := dialAndHandshake(t, srv.Addr(), RoleSubscriber)
	defer conn.Close()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && h.Count() == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	if h.Count() != 1 {
		t.Fatalf("expected subscriber registered, hub count=%d", h.Count())
	}

	record, _ := json.Marshal(codec.Frame{MessageID: 0, MessageName: "HEARTBEAT"})
	h.Broadcast(record)

	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read subscriber stream: %v", err)
	}
	var fr codec.Frame
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &fr); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if fr.MessageName != "HEARTBEAT" {
		t.Fatalf("MessageName = %q, want HEARTBEAT", fr.MessageName)
	}
}

func TestPublisherEncodesAndWritesToSerial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := loadHeartbeatCatalog(t)
	ch := channel.New(cat, channel.WithSystemID(1), channel.WithComponentID(1))
	port := &fakePort{}
	tx := serialio.NewTXWriter(ctx, port, 16)
	defer tx.Close()

	srv := NewServer(WithChannel(ch), WithTXWriter(tx), WithListenAddr(":0"), WithHandshakeTimeout(time.Second))
	go srv.Serve(ctx)
	<-srv.Ready()

	conn := dialAndHandshake(t, srv.Addr(), RolePublisher)
	defer conn.Close()

	req := map[string]any{
		"message": "HEARTBEAT",
		"fields": map[string]any{
			"type":            1,
			"autopilot":       1,
			"base_mode":       0,
			"custom_mode":     0,
			"system_status":   0,
			"mavlink_version": 3,
		},
	}
	line, _ := json.Marshal(req)
	if _, err := conn.Write(append(line, '\n')); err != nil {
		t.Fatalf("write encode request: %v", err)
	}

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) && len(port.writes()) == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	writes := port.writes()
	if len(writes) != 1 {
		t.Fatalf("expected exactly one serial write, got %d", len(writes))
	}
	if writes[0][0] != 0xFE {
		t.Fatalf("expected v1 start marker, got 0x%X", writes[0][0])
	}
}

func TestHandshakeRejectsUnknownRole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.New()
	srv := NewServer(WithHub(h), WithListenAddr(":0"), WithHandshakeTimeout(200*time.Millisecond))
	go srv.Serve(ctx)
	<-srv.Ready()

	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(`{"role":"observer"}` + "\n")); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 8)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected connection closed after bad handshake")
	}
}

func TestMaxClientsRejectsExtra(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.New()
	srv := NewServer(WithHub(h), WithListenAddr(":0"), WithHandshakeTimeout(time.Second), WithMaxClients(1))
	go srv.Serve(ctx)
	<-srv.Ready()

	c1 := dialAndHandshake(t, srv.Addr(), RoleSubscriber)
	defer c1.Close()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && h.Count() == 0 {
		time.Sleep(2 * time.Millisecond)
	}

	c2 := dialAndHandshake(t, srv.Addr(), RoleSubscriber)
	defer c2.Close()
	_ = c2.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 8)
	if _, err := c2.Read(buf); err == nil {
		t.Fatalf("expected second subscriber to be rejected over max-clients")
	}
}

func TestGracefulShutdownClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.New()
	srv := NewServer(WithHub(h), WithListenAddr(":0"), WithHandshakeTimeout(time.Second))
	go srv.Serve(ctx)
	<-srv.Ready()

	c1 := dialAndHandshake(t, srv.Addr(), RoleSubscriber)
	c2 := dialAndHandshake(t, srv.Addr(), RoleSubscriber)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && h.Count() < 2 {
		time.Sleep(2 * time.Millisecond)
	}

	sdCtx, sdCancel := context.WithTimeout(context.Background(), time.Second)
	defer sdCancel()
	if err := srv.Shutdown(sdCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_ = c1.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	buf := make([]byte, 8)
	if _, err := c1.Read(buf); err == nil {
		t.Fatalf("expected c1 read to fail after shutdown")
	}
	_ = c2.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, err := c2.Read(buf); err == nil {
		t.Fatalf("expected c2 read to fail after shutdown")
	}
}
