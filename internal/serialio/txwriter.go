package serialio

import (
	"context"
	"errors"

	"github.com/avionics-oss/go-mavlink/internal/logging"
	"github.com/avionics-oss/go-mavlink/internal/metrics"
	"github.com/avionics-oss/go-mavlink/internal/transport"
)

// ErrTxOverflow is returned (via the async hooks) when the serial write
// queue is full and a frame had to be dropped rather than written.
var ErrTxOverflow = errors.New("serial tx overflow")

// TXWriter funnels every serial write through one goroutine, so that one
// contended port never blocks the many publisher connections encoding
// frames onto it.
type TXWriter struct{ base *transport.AsyncTx }

// NewTXWriter creates a serial TXWriter with a buffered channel of size buf.
func NewTXWriter(parent context.Context, sp Port, buf int) *TXWriter {
	send := func(data []byte) error {
		_, err := sp.Write(data)
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrSerialWrite)
			logging.L().Error("serial_write_error", "error", err)
		},
		OnDrop: func() error {
			metrics.IncError(metrics.ErrSerialWrite)
			return ErrTxOverflow
		},
	}
	return &TXWriter{base: transport.NewAsyncTx(parent, buf, send, hooks)}
}

// SendFrame queues a raw wire frame for asynchronous write (returns
// ErrTxOverflow if the buffer is full).
func (w *TXWriter) SendFrame(data []byte) error { return w.base.SendRecord(data) }

// Close stops the writer and waits for the pending goroutine to exit.
func (w *TXWriter) Close() { w.base.Close() }
