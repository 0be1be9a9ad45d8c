// Package console is the operator's stdin console: read-only inspection of
// flights, invoices and the transaction log, plus a shutdown command.
package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// ErrExit is returned by Run when the operator types "exit".
var ErrExit = errors.New("console: exit requested")

const help = "Unknown command. Options: flight <ref>, invoice <agency_id>, history, exit"

// Inspector is what the console reads.  Each call goes through the engine
// lock, so the console never sees a half-applied transaction.
type Inspector interface {
	Flight(ref int) (model.Flight, bool)
	Invoice(agency int) (decimal.Decimal, error)
	History(w io.Writer) error
}

// Console executes operator commands.
type Console struct {
	insp   Inspector
	out    io.Writer
	prompt string
}

// New returns a console writing to out.
func New(insp Inspector, out io.Writer) *Console {
	return &Console{insp: insp, out: out, prompt: "admin> "}
}

// Run reads commands from in until EOF, ctx cancellation or "exit".  It
// returns ErrExit for "exit" and nil at end of input.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, c.prompt)
		if !sc.Scan() {
			return sc.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.Exec(sc.Text()); err != nil {
			return err
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "flight":
		ref, ok := intArg(fields)
		if !ok {
			fmt.Fprintln(c.out, "usage: flight <ref>")
			return nil
		}
		f, found := c.insp.Flight(ref)
		if !found {
			fmt.Fprintf(c.out, "Flight %d not found\n", ref)
			return nil
		}
		fmt.Fprintf(c.out, "Flight %d: %s, %d seats, %d/seat\n", f.Ref, f.Destination, f.Seats, f.Price)
	case "invoice":
		agency, ok := intArg(fields)
		if !ok {
			fmt.Fprintln(c.out, "usage: invoice <agency_id>")
			return nil
		}
		amount, err := c.insp.Invoice(agency)
		if err != nil {
			fmt.Fprintf(c.out, "Invoice agency %d: %v\n", agency, err)
			return nil
		}
		fmt.Fprintf(c.out, "Invoice agency %d: %s\n", agency, amount.StringFixed(2))
	case "history":
		var buf bytes.Buffer
		if err := c.insp.History(&buf); err != nil || buf.Len() == 0 {
			fmt.Fprintln(c.out, "History not found")
			return nil
		}
		_, _ = buf.WriteTo(c.out)
	case "exit":
		fmt.Fprintln(c.out, "Shutting down")
		return ErrExit
	default:
		fmt.Fprintln(c.out, help)
	}
	return nil
}

func intArg(fields []string) (int, bool) {
	if len(fields) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	return n, err == nil
}
