// Package client is a one-shot agency client for the reservation server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/protocol"
)

// DefaultTimeout bounds a request when ctx carries no deadline.
const DefaultTimeout = 5 * time.Second

// ErrFailure is returned for a FAILURE response.
var ErrFailure = errors.New("request refused by server")

// Client sends requests to one server address.
type Client struct {
	Transport string // "tcp" or "udp"
	Addr      string
	Agency    int
}

// New returns a client for agency talking to addr over transport.
func New(transport, addr string, agency int) (*Client, error) {
	switch transport {
	case "tcp", "udp":
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
	return &Client{Transport: transport, Addr: addr, Agency: agency}, nil
}

// Do sends line and returns the raw response with its trailing newline
// removed.
//
// Over TCP each call uses its own connection: the request is written, the
// write side is shut down, and everything until EOF is the response.  That
// keeps multi-line CONSULT answers unambiguous.  Over UDP the response is
// the single datagram that comes back.
func (c *Client) Do(ctx context.Context, line string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, c.Transport, c.Addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return "", err
	}

	var resp []byte
	switch tc := conn.(type) {
	case *net.TCPConn:
		if err := tc.CloseWrite(); err != nil {
			return "", err
		}
		if resp, err = io.ReadAll(tc); err != nil {
			return "", err
		}
	default:
		buf := make([]byte, 64*1024)
		n, err := conn.Read(buf)
		if err != nil {
			return "", err
		}
		resp = buf[:n]
	}
	return strings.TrimSuffix(string(resp), "\n"), nil
}

// Reserve books seats on flight ref.
func (c *Client) Reserve(ctx context.Context, ref, seats int) error {
	return c.mutate(ctx, protocol.Request{Verb: protocol.VerbReserve, Ref: ref, Agency: c.Agency, Seats: seats})
}

// Cancel returns seats on flight ref.
func (c *Client) Cancel(ctx context.Context, ref, seats int) error {
	return c.mutate(ctx, protocol.Request{Verb: protocol.VerbCancel, Ref: ref, Agency: c.Agency, Seats: seats})
}

func (c *Client) mutate(ctx context.Context, req protocol.Request) error {
	resp, err := c.Do(ctx, req.String())
	if err != nil {
		return err
	}
	switch resp {
	case protocol.Success:
		return nil
	case protocol.Failure:
		return ErrFailure
	}
	return fmt.Errorf("server answered %q", resp)
}

// Invoice returns what the agency owes.
func (c *Client) Invoice(ctx context.Context) (decimal.Decimal, error) {
	resp, err := c.Do(ctx, protocol.Request{Verb: protocol.VerbInvoice, Agency: c.Agency}.String())
	if err != nil {
		return decimal.Zero, err
	}
	return protocol.ParseInvoice(resp)
}

// Consult lists the flights.
func (c *Client) Consult(ctx context.Context) ([]model.Flight, error) {
	resp, err := c.Do(ctx, protocol.VerbConsult)
	if err != nil {
		return nil, err
	}
	return protocol.ParseConsult(resp)
}
