// Package serialio opens the physical serial link a Channel talks over
// and funnels outbound frame writes through a single goroutine so one
// slow port never blocks the encoders feeding it.
package serialio

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens the named serial device at baud, with the given read
// timeout governing how long a Read call blocks waiting for bytes.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
