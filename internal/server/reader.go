package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/avionics-oss/go-mavlink/internal/codec"
	"github.com/avionics-oss/go-mavlink/internal/hub"
	"github.com/avionics-oss/go-mavlink/internal/metrics"
	"github.com/avionics-oss/go-mavlink/internal/serialio"
)

// startSubscriberReader only watches for connection close; subscribers
// never send application data, but the socket must still be read so a
// client-initiated close (or half-close) is observed promptly instead of
// lingering until the next failed write.
func (s *Server) startSubscriberReader(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		scratch := make([]byte, 256)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			if _, err := conn.Read(scratch); err != nil {
				cl.Close()
				return
			}
			select {
			case <-ctxDone:
				cl.Close()
				return
			default:
			}
		}
	}()
}

// encodeRequest is the newline-delimited JSON a publisher sends: message
// identifies the MAVLink message by numeric id or name, fields carries
// the field map in the same dynamic shape codec.Value accepts.
type encodeRequest struct {
	Message any         `json:"message"`
	Fields  codec.Value `json:"fields"`
}

// startPublisherReader decodes newline-delimited JSON encode requests and
// writes the resulting wire frame out the serial link.
func (s *Server) startPublisherReader(ctxDone <-chan struct{}, conn net.Conn, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			s.totalDisconnected.Add(1)
			logger.Info("publisher_disconnected")
		}()
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 4096), 1<<20)
		for scanner.Scan() {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var req encodeRequest
			if err := json.Unmarshal(line, &req); err != nil {
				logger.Warn("publisher_bad_request", "error", err)
				continue
			}
			metrics.IncTCPRx()
			s.handleEncodeRequest(req, logger)

			select {
			case <-ctxDone:
				return
			default:
			}
		}
		if err := scanner.Err(); err != nil {
			wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
			metrics.IncError(mapErrToMetric(wrap))
			s.setError(wrap)
		}
	}()
}

func (s *Server) handleEncodeRequest(req encodeRequest, logger *slog.Logger) {
	if s.Channel == nil {
		return
	}
	frame, err := s.Channel.Encode(req.Message, req.Fields, nil)
	if err != nil {
		switch {
		case errors.Is(err, codec.ErrUnknownMessage):
			metrics.IncUnknownMessage()
		case errors.Is(err, codec.ErrBadProtocol):
			metrics.IncBadProtocol()
		}
		logger.Warn("publisher_encode_failed", "message", req.Message, "error", err)
		return
	}
	metrics.IncFramesEncoded()
	if s.TX == nil {
		return
	}
	if err := s.TX.SendFrame(frame); err != nil {
		if errors.Is(err, serialio.ErrTxOverflow) {
			s.totalTxOverflow.Add(1)
			logger.Debug("serial_tx_overflow_drop", "message", req.Message)
		} else {
			s.totalTxErrors.Add(1)
			logger.Error("serial_tx_error", "error", err, "message", req.Message)
		}
	}
}
