package server

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/avionics-oss/go-mavlink/internal/hub"
	"github.com/avionics-oss/go-mavlink/internal/metrics"
)

// startSubscriberWriter streams JSON-encoded decoded frames from the
// hub client's queue to the connection, one newline-delimited record at
// a time.
func (s *Server) startSubscriberWriter(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			if s.Hub != nil {
				s.Hub.Remove(cl)
			}
			s.totalDisconnected.Add(1)
			logger.Info("subscriber_disconnected")
		}()
		for {
			select {
			case record := <-cl.Out:
				_ = conn.SetWriteDeadline(time.Now().Add(s.readDeadline))
				line := make([]byte, len(record)+1)
				copy(line, record)
				line[len(record)] = '\n'
				if _, err := conn.Write(line); err != nil {
					wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
					metrics.IncError(mapErrToMetric(wrap))
					s.setError(wrap)
					return
				}
				metrics.AddTCPTx(1)
			case <-cl.Closed:
				return
			case <-ctxDone:
				return
			}
		}
	}()
}
