package server

import (
	"context"
	"errors"
	"net"
	"strings"

	"go.uber.org/zap"
)

var _ Server = (*UDPServer)(nil)

// maxDatagram bounds a single request datagram.
const maxDatagram = 64 * 1024

// UDPServer answers each request datagram with one response datagram sent
// back to its origin.  A datagram may carry several newline-separated
// requests; the reply then holds one response line per request.  Nothing is
// kept between datagrams.
type UDPServer struct {
	conn    net.PacketConn
	handler *Handler
	logger  *zap.Logger
}

// ListenUDP binds address.
func ListenUDP(address string, h *Handler, logger *zap.Logger) (*UDPServer, error) {
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UDPServer{conn: conn, handler: h, logger: logger.With(zap.String("transport", "udp"))}, nil
}

// Addr returns the bound address.
func (s *UDPServer) Addr() net.Addr { return s.conn.LocalAddr() }

// Serve runs the datagram loop until ctx is cancelled.
func (s *UDPServer) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		s.conn.Close()
	}()

	s.logger.Info("agency server listening", zap.Stringer("addr", s.Addr()))
	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("read datagram", zap.Error(err))
			continue
		}
		resp, ok := s.handleDatagram(ctx, string(buf[:n]))
		if !ok {
			continue
		}
		if _, err := s.conn.WriteTo([]byte(resp+"\n"), addr); err != nil {
			s.logger.Warn("write response", zap.Stringer("peer", addr), zap.Error(err))
		}
	}
}

// handleDatagram answers every request line in payload, in order, and joins
// the responses into one reply.  It reports false when the datagram holds
// no request at all.
func (s *UDPServer) handleDatagram(ctx context.Context, payload string) (string, bool) {
	var resps []string
	for _, line := range strings.Split(payload, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		resps = append(resps, s.handler.Handle(ctx, line))
	}
	return strings.Join(resps, "\n"), len(resps) > 0
}
