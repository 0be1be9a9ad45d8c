package server

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/flight-seat-reservation/internal/catalog"
	"github.com/iliyamo/flight-seat-reservation/internal/client"
	"github.com/iliyamo/flight-seat-reservation/internal/engine"
	"github.com/iliyamo/flight-seat-reservation/internal/ledger"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/txlog"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cat, err := catalog.New([]model.Flight{
		{Ref: 101, Destination: "Paris", Seats: 10, Price: 100},
		{Ref: 102, Destination: "Tokyo", Seats: 5, Price: 900},
	})
	require.NoError(t, err)
	l, err := txlog.Open(filepath.Join(t.TempDir(), "histo.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return engine.New(cat, ledger.New(100), l)
}

func TestHandle(t *testing.T) {
	h := NewHandler(newEngine(t), zaptest.NewLogger(t))
	ctx := context.Background()

	steps := []struct{ req, resp string }{
		{"RESERVE 101 5 11", "FAILURE"},
		{"RESERVE 101 5 3", "SUCCESS"},
		{"INVOICE 5", "INVOICE 300.00"},
		{"CANCEL 101 5 3", "SUCCESS"},
		{"INVOICE 5", "INVOICE 30.00"},
		{"RESERVE 999 1 1", "FAILURE"},
		{"RESERVE 101 500 1", "INVALID_COMMAND"},
		{"RESERVE 101 5", "INVALID_COMMAND"},
		{"HELLO", "UNKNOWN_COMMAND"},
		{"", "UNKNOWN_COMMAND"},
		{"CONSULT", "101 Paris 10 100\n102 Tokyo 5 900"},
	}
	for _, s := range steps {
		assert.Equal(t, s.resp, h.Handle(ctx, s.req), s.req)
	}
}

func startServer(t *testing.T, transport string) (addr string, eng *engine.Engine) {
	t.Helper()
	eng = newEngine(t)
	h := NewHandler(eng, zaptest.NewLogger(t))
	var (
		srv Server
		err error
	)
	if transport == "udp" {
		srv, err = ListenUDP("127.0.0.1:0", h, zaptest.NewLogger(t))
	} else {
		srv, err = ListenTCP("127.0.0.1:0", h, zaptest.NewLogger(t))
	}
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv.Addr().String(), eng
}

func TestTransports(t *testing.T) {
	for _, transport := range []string{"tcp", "udp"} {
		t.Run(transport, func(t *testing.T) {
			addr, _ := startServer(t, transport)
			c, err := client.New(transport, addr, 5)
			require.NoError(t, err)
			ctx := context.Background()

			require.NoError(t, c.Reserve(ctx, 101, 3))
			assert.ErrorIs(t, c.Reserve(ctx, 101, 8), client.ErrFailure)

			amt, err := c.Invoice(ctx)
			require.NoError(t, err)
			assert.Equal(t, "300.00", amt.StringFixed(2))

			flights, err := c.Consult(ctx)
			require.NoError(t, err)
			require.Len(t, flights, 2)
			assert.Equal(t, 7, flights[0].Seats)

			resp, err := c.Do(ctx, "NONSENSE")
			require.NoError(t, err)
			assert.Equal(t, "UNKNOWN_COMMAND", resp)
		})
	}
}

func TestTCPPipelinedRequests(t *testing.T) {
	addr, _ := startServer(t, "tcp")
	c, err := client.New("tcp", addr, 1)
	require.NoError(t, err)

	// Several lines on one connection get one response line each, blank
	// lines skipped.
	resp, err := c.Do(context.Background(), "RESERVE 102 1 1\n\nINVOICE 1\nCANCEL 102 1 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SUCCESS", "INVOICE 900.00", "SUCCESS"}, strings.Split(resp, "\n"))
}

func TestTCPConcurrentAgencies(t *testing.T) {
	addr, eng := startServer(t, "tcp")
	const agencies = 20
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := range agencies {
		wg.Add(1)
		go func(agency int) {
			defer wg.Done()
			c, err := client.New("tcp", addr, agency)
			if !assert.NoError(t, err) {
				return
			}
			if c.Reserve(context.Background(), 102, 1) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, ok)
	f, _ := eng.Flight(102)
	assert.Equal(t, 0, f.Seats)
}

func TestUDPDatagramWithSeveralRequests(t *testing.T) {
	addr, _ := startServer(t, "udp")
	c, err := client.New("udp", addr, 5)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), "RESERVE 101 5 3\n\nINVOICE 5\nBOGUS")
	require.NoError(t, err)
	assert.Equal(t, []string{"SUCCESS", "INVOICE 300.00", "UNKNOWN_COMMAND"}, strings.Split(resp, "\n"))
}

// flakyListener fails Accept a fixed number of times, then reports closed.
type flakyListener struct {
	mu       sync.Mutex
	failures int
	calls    int
	stamps   []time.Time
}

func (l *flakyListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.stamps = append(l.stamps, time.Now())
	if l.calls <= l.failures {
		return nil, errors.New("accept: too many open files")
	}
	return nil, net.ErrClosed
}

func (l *flakyListener) Close() error   { return nil }
func (l *flakyListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestTCPAcceptErrorsBackOff(t *testing.T) {
	ln := &flakyListener{failures: 4}
	s := &TCPServer{listener: ln, logger: zaptest.NewLogger(t), conns: make(map[net.Conn]struct{})}

	start := time.Now()
	require.NoError(t, s.Serve(context.Background()))

	assert.Equal(t, 5, ln.calls)
	// 5ms + 10ms + 20ms + 40ms between the five calls.
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
	require.Len(t, ln.stamps, 5)
	assert.GreaterOrEqual(t, ln.stamps[4].Sub(ln.stamps[3]), 40*time.Millisecond)
}

func TestTCPAcceptBackoffStopsOnCancel(t *testing.T) {
	ln := &flakyListener{failures: 1 << 30}
	s := &TCPServer{listener: ln, logger: zaptest.NewLogger(t), conns: make(map[net.Conn]struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, s.Serve(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	// Without backoff the loop would have spun far more often.
	assert.Less(t, ln.calls, 20)
}
