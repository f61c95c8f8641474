// Package metrics exposes Prometheus counters for the MAVLink codec and
// router, mirrored into cheap local atomics so cmd/mavrouter can log a
// periodic summary without round-tripping through the Prometheus
// registry.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/avionics-oss/go-mavlink/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	FramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mavlink_frames_decoded_total",
		Help: "Total MAVLink frames successfully decoded.",
	})
	FramesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mavlink_frames_encoded_total",
		Help: "Total MAVLink frames successfully encoded.",
	})
	BadChecksum = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mavlink_bad_checksum_total",
		Help: "Total frames rejected for checksum mismatch.",
	})
	BadLength = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mavlink_bad_length_total",
		Help: "Total v1 frames rejected for a declared length mismatch.",
	})
	BadSignature = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mavlink_bad_signature_total",
		Help: "Total v2 signed frames rejected for signature or timestamp failure.",
	})
	BadProtocol = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mavlink_bad_protocol_total",
		Help: "Total encode attempts refused due to a protocol version mismatch.",
	})
	UnknownMessage = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mavlink_unknown_message_total",
		Help: "Total encode/decode attempts referencing a message id absent from the catalog.",
	})
	TCPRxMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_tcp_rx_messages_total",
		Help: "Total encode requests received from TCP publisher clients.",
	})
	TCPTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_tcp_tx_frames_total",
		Help: "Total decoded frames sent to TCP subscriber clients.",
	})
	HubDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_hub_dropped_frames_total",
		Help: "Total decoded frames dropped by the hub due to slow subscribers.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_hub_kicked_clients_total",
		Help: "Total subscribers disconnected due to backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_hub_rejected_clients_total",
		Help: "Total client connection attempts rejected (e.g., max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "router_hub_active_clients",
		Help: "Current number of active connected clients.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPRead     = "tcp_read"
	ErrTCPWrite    = "tcp_write"
	ErrHandshake   = "handshake"
	ErrSerialWrite = "serial_write"
	ErrSerialRead  = "serial_read"
)

// StartHTTP serves Prometheus metrics at /metrics on a new mux, along
// with a /ready endpoint governed by the registered readiness function.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localFramesDecoded   uint64
	localFramesEncoded   uint64
	localBadChecksum     uint64
	localBadLength       uint64
	localBadSignature    uint64
	localBadProtocol     uint64
	localUnknownMessage  uint64
	localTCPRx           uint64
	localTCPTx           uint64
	localHubDrop         uint64
	localHubKick         uint64
	localHubReject       uint64
	localErrors          uint64
	localHubClients      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	FramesDecoded  uint64
	FramesEncoded  uint64
	BadChecksum    uint64
	BadLength      uint64
	BadSignature   uint64
	BadProtocol    uint64
	UnknownMessage uint64
	TCPRx          uint64
	TCPTx          uint64
	HubDrops       uint64
	HubKicks       uint64
	HubRejects     uint64
	Errors         uint64
	HubClients     uint64
}

func Snap() Snapshot {
	return Snapshot{
		FramesDecoded:  atomic.LoadUint64(&localFramesDecoded),
		FramesEncoded:  atomic.LoadUint64(&localFramesEncoded),
		BadChecksum:    atomic.LoadUint64(&localBadChecksum),
		BadLength:      atomic.LoadUint64(&localBadLength),
		BadSignature:   atomic.LoadUint64(&localBadSignature),
		BadProtocol:    atomic.LoadUint64(&localBadProtocol),
		UnknownMessage: atomic.LoadUint64(&localUnknownMessage),
		TCPRx:          atomic.LoadUint64(&localTCPRx),
		TCPTx:          atomic.LoadUint64(&localTCPTx),
		HubDrops:       atomic.LoadUint64(&localHubDrop),
		HubKicks:       atomic.LoadUint64(&localHubKick),
		HubRejects:     atomic.LoadUint64(&localHubReject),
		Errors:         atomic.LoadUint64(&localErrors),
		HubClients:     atomic.LoadUint64(&localHubClients),
	}
}

// IncFramesDecoded increments the decoded-frame counters.
func IncFramesDecoded() {
	FramesDecoded.Inc()
	atomic.AddUint64(&localFramesDecoded, 1)
}

func IncFramesEncoded() {
	FramesEncoded.Inc()
	atomic.AddUint64(&localFramesEncoded, 1)
}

func IncBadChecksum() {
	BadChecksum.Inc()
	atomic.AddUint64(&localBadChecksum, 1)
}

func IncBadLength() {
	BadLength.Inc()
	atomic.AddUint64(&localBadLength, 1)
}

func IncBadSignature() {
	BadSignature.Inc()
	atomic.AddUint64(&localBadSignature, 1)
}

func IncBadProtocol() {
	BadProtocol.Inc()
	atomic.AddUint64(&localBadProtocol, 1)
}

func IncUnknownMessage() {
	UnknownMessage.Inc()
	atomic.AddUint64(&localUnknownMessage, 1)
}

func IncTCPRx() {
	TCPRxMessages.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func AddTCPTx(n int) {
	TCPTxFrames.Add(float64(n))
	atomic.AddUint64(&localTCPTx, uint64(n))
}

func IncHubDrop() {
	HubDroppedFrames.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func IncHubReject() {
	HubRejectedClients.Inc()
	atomic.AddUint64(&localHubReject, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrTCPRead, ErrTCPWrite, ErrHandshake, ErrSerialWrite, ErrSerialRead} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
