// Package protocol is the agency wire format: one text request per line or
// datagram, one text response back.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Verbs.
const (
	VerbReserve = "RESERVE"
	VerbCancel  = "CANCEL"
	VerbInvoice = "INVOICE"
	VerbConsult = "CONSULT"
)

// Fixed responses.
const (
	Success        = "SUCCESS"
	Failure        = "FAILURE"
	InvalidCommand = "INVALID_COMMAND"
	UnknownCommand = "UNKNOWN_COMMAND"
	ServerError    = "SERVER_ERROR"
)

var (
	// ErrUnknownCommand is returned for an empty request or unknown verb.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidCommand is returned for a known verb with bad arguments.
	ErrInvalidCommand = errors.New("invalid command")
)

// Request is a parsed agency request.  Fields not used by the verb are zero.
type Request struct {
	Verb   string
	Ref    int
	Agency int
	Seats  int
}

// String renders the request in wire form, without a line terminator.
func (r Request) String() string {
	switch r.Verb {
	case VerbReserve, VerbCancel:
		return fmt.Sprintf("%s %d %d %d", r.Verb, r.Ref, r.Agency, r.Seats)
	case VerbInvoice:
		return fmt.Sprintf("%s %d", r.Verb, r.Agency)
	}
	return r.Verb
}

// Parse decodes one request line.
func Parse(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, ErrUnknownCommand
	}
	req := Request{Verb: fields[0]}
	args := fields[1:]
	switch req.Verb {
	case VerbReserve, VerbCancel:
		n, err := ints(args, 3)
		if err != nil {
			return Request{}, err
		}
		req.Ref, req.Agency, req.Seats = n[0], n[1], n[2]
	case VerbInvoice:
		n, err := ints(args, 1)
		if err != nil {
			return Request{}, err
		}
		req.Agency = n[0]
	case VerbConsult:
		if len(args) != 0 {
			return Request{}, fmt.Errorf("%w: CONSULT takes no arguments", ErrInvalidCommand)
		}
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Verb)
	}
	return req, nil
}

func ints(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", ErrInvalidCommand, want, len(args))
	}
	out := make([]int, want)
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidCommand, a)
		}
		out[i] = n
	}
	return out, nil
}

// FormatInvoice renders an INVOICE response.
func FormatInvoice(amount decimal.Decimal) string {
	return VerbInvoice + " " + amount.StringFixed(2)
}

// FormatConsult renders the flight list, one "ref destination seats price"
// line per flight.
func FormatConsult(flights []model.Flight) string {
	var b strings.Builder
	for i, f := range flights {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d %s %d %d", f.Ref, f.Destination, f.Seats, f.Price)
	}
	return b.String()
}

// ParseInvoice extracts the amount from an INVOICE response.
func ParseInvoice(resp string) (decimal.Decimal, error) {
	amount, ok := strings.CutPrefix(strings.TrimSpace(resp), VerbInvoice+" ")
	if !ok {
		return decimal.Zero, fmt.Errorf("not an invoice response: %q", resp)
	}
	return decimal.NewFromString(amount)
}

// ParseConsult decodes a CONSULT response.
func ParseConsult(resp string) ([]model.Flight, error) {
	var flights []model.Flight
	for _, line := range strings.Split(strings.TrimSpace(resp), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("bad flight line %q", line)
		}
		var (
			f   = model.Flight{Destination: fields[1]}
			err error
		)
		if f.Ref, err = strconv.Atoi(fields[0]); err != nil {
			return nil, err
		}
		if f.Seats, err = strconv.Atoi(fields[2]); err != nil {
			return nil, err
		}
		if f.Price, err = strconv.Atoi(fields[3]); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, nil
}
