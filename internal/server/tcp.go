package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var _ Server = (*TCPServer)(nil)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// TCPServer accepts agency connections and runs one worker goroutine per
// connection.  Requests on a connection are newline-terminated; each gets
// exactly one newline-terminated response.
type TCPServer struct {
	listener net.Listener
	handler  *Handler
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// ListenTCP binds address (e.g. ":8080"; ":0" picks a free port).
func ListenTCP(address string, h *Handler, logger *zap.Logger) (*TCPServer, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TCPServer{
		listener: ln,
		handler:  h,
		logger:   logger.With(zap.String("transport", "tcp")),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the bound address.
func (s *TCPServer) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until ctx is cancelled, then closes the
// listener and every open connection and waits for the workers to exit.
func (s *TCPServer) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		s.listener.Close()
		s.closeConns()
	}()
	defer func() {
		close(stop)
		s.wg.Wait()
	}()

	s.logger.Info("agency server listening", zap.Stringer("addr", s.Addr()))
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// Back off on persistent failures such as EMFILE.
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.logger.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			continue
		}
		delay = 0
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *TCPServer) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *TCPServer) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	log := s.logger.With(zap.Stringer("peer", conn.RemoteAddr()))
	log.Debug("agency connected")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		// The engine lock is already released here: a slow peer only
		// stalls its own worker.
		resp := s.handler.Handle(ctx, line)
		if _, err := io.WriteString(conn, resp+"\n"); err != nil {
			if !isExpectedCloseError(err) {
				log.Warn("write response", zap.Error(err))
			}
			return
		}
	}
	if err := sc.Err(); err != nil && !isExpectedCloseError(err) {
		log.Warn("read request", zap.Error(err))
	}
	log.Debug("agency disconnected")
}
