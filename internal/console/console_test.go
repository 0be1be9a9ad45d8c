package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

type fakeInspector struct {
	flights map[int]model.Flight
	history string
}

func (f fakeInspector) Flight(ref int) (model.Flight, bool) {
	fl, ok := f.flights[ref]
	return fl, ok
}

func (f fakeInspector) Invoice(agency int) (decimal.Decimal, error) {
	if agency > 100 {
		return decimal.Zero, errors.New("agency id out of range")
	}
	return decimal.RequireFromString("30"), nil
}

func (f fakeInspector) History(w io.Writer) error {
	_, err := io.WriteString(w, f.history)
	return err
}

func newConsole(history string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	insp := fakeInspector{
		flights: map[int]model.Flight{101: {Ref: 101, Destination: "Paris", Seats: 7, Price: 100}},
		history: history,
	}
	return New(insp, &out), &out
}

func TestExec(t *testing.T) {
	cases := []struct{ line, want string }{
		{"flight 101", "Flight 101: Paris, 7 seats, 100/seat\n"},
		{"flight 5", "Flight 5 not found\n"},
		{"flight", "usage: flight <ref>\n"},
		{"flight x", "usage: flight <ref>\n"},
		{"invoice 5", "Invoice agency 5: 30.00\n"},
		{"invoice 500", "Invoice agency 500: agency id out of range\n"},
		{"history", "101 5 reservation-request 3 succeeded\n"},
		{"bogus", help + "\n"},
		{"", ""},
	}
	for _, tc := range cases {
		c, out := newConsole("101 5 reservation-request 3 succeeded\n")
		require.NoError(t, c.Exec(tc.line), tc.line)
		assert.Equal(t, tc.want, out.String(), tc.line)
	}
}

func TestEmptyHistory(t *testing.T) {
	c, out := newConsole("")
	require.NoError(t, c.Exec("history"))
	assert.Equal(t, "History not found\n", out.String())
}

func TestRunUntilExit(t *testing.T) {
	c, out := newConsole("")
	err := c.Run(context.Background(), strings.NewReader("flight 101\nexit\nflight 101\n"))
	assert.ErrorIs(t, err, ErrExit)
	assert.Equal(t, 1, strings.Count(out.String(), "Flight 101:"))
	assert.Contains(t, out.String(), "Shutting down")
}

func TestRunEndOfInput(t *testing.T) {
	c, out := newConsole("")
	require.NoError(t, c.Run(context.Background(), strings.NewReader("flight 101\n")))
	assert.True(t, strings.HasPrefix(out.String(), "admin> "))
}
