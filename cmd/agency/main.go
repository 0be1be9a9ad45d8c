// Command agency sends one request to the reservation server.
//
//	agency [--transport tcp|udp] [--addr host:port] --agency N reserve <ref> <seats>
//	agency ... cancel <ref> <seats>
//	agency ... invoice
//	agency ... consult
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/iliyamo/flight-seat-reservation/internal/client"
)

func main() {
	fs := pflag.NewFlagSet("agency", pflag.ExitOnError)
	transport := fs.StringP("transport", "t", "tcp", "tcp or udp")
	addr := fs.StringP("addr", "a", "127.0.0.1:8080", "server address")
	agency := fs.IntP("agency", "i", 0, "agency id")
	timeout := fs.Duration("timeout", client.DefaultTimeout, "request timeout")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: agency [flags] reserve <ref> <seats> | cancel <ref> <seats> | invoice | consult")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	c, err := client.New(*transport, *addr, *agency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, c, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("bad arguments")

func run(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "reserve", "cancel":
		if len(args) != 3 {
			return errUsage
		}
		ref, err1 := strconv.Atoi(args[1])
		seats, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			return errUsage
		}
		op := c.Reserve
		if args[0] == "cancel" {
			op = c.Cancel
		}
		if err := op(ctx, ref, seats); err != nil {
			return err
		}
		fmt.Println("SUCCESS")
	case "invoice":
		amount, err := c.Invoice(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("agency %d owes %s\n", c.Agency, amount.StringFixed(2))
	case "consult":
		flights, err := c.Consult(ctx)
		if err != nil {
			return err
		}
		for _, f := range flights {
			fmt.Printf("%-6d %-20s %5d seats %6d/seat\n", f.Ref, f.Destination, f.Seats, f.Price)
		}
	default:
		return errUsage
	}
	return nil
}
