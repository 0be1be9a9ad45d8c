// Package ledger keeps the running amount each agency owes.  Like the
// catalog it is driven exclusively by the transaction engine, which holds
// the global lock around every call.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/fsutil"
)

// ErrAgencyOutOfRange is returned for agency ids outside 0..max.
var ErrAgencyOutOfRange = errors.New("agency id out of range")

// Balance is one agency's amount owed, as listed in the invoice snapshot.
type Balance struct {
	Agency int
	Amount decimal.Decimal
}

// Ledger maps agency ids to balances.  Unknown ids read as zero.
type Ledger struct {
	max      int
	balances map[int]decimal.Decimal
}

// New returns an empty ledger accepting agency ids 0..maxAgency.
func New(maxAgency int) *Ledger {
	return &Ledger{max: maxAgency, balances: make(map[int]decimal.Decimal)}
}

// Max reports the largest accepted agency id.
func (l *Ledger) Max() int { return l.max }

// Check reports whether agency is within the accepted range.
func (l *Ledger) Check(agency int) error {
	if agency < 0 || agency > l.max {
		return fmt.Errorf("%w: %d", ErrAgencyOutOfRange, agency)
	}
	return nil
}

// Credit adds amount to an agency's balance.
func (l *Ledger) Credit(agency int, amount decimal.Decimal) error {
	if err := l.Check(agency); err != nil {
		return err
	}
	l.balances[agency] = l.balances[agency].Add(amount)
	return nil
}

// Debit subtracts amount from an agency's balance.  Balances may go
// negative; a cancellation is never checked against earlier reservations.
func (l *Ledger) Debit(agency int, amount decimal.Decimal) error {
	if err := l.Check(agency); err != nil {
		return err
	}
	l.balances[agency] = l.balances[agency].Sub(amount)
	return nil
}

// BalanceOf returns the agency's balance, zero if never touched.
func (l *Ledger) BalanceOf(agency int) decimal.Decimal {
	return l.balances[agency]
}

// Balances lists the non-zero balances ordered by agency id.
func (l *Ledger) Balances() []Balance {
	out := make([]Balance, 0, len(l.balances))
	for id, amt := range l.balances {
		if amt.IsZero() {
			continue
		}
		out = append(out, Balance{Agency: id, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agency < out[j].Agency })
	return out
}

// WriteTo writes the invoice snapshot: "agencyId amount" per line, two
// decimals, zero balances omitted.
func (l *Ledger) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, b := range l.Balances() {
		n, err := fmt.Fprintf(w, "%d %s\n", b.Agency, b.Amount.StringFixed(2))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSnapshot atomically rewrites the invoice file at path.
func (l *Ledger) WriteSnapshot(path string) error {
	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := l.WriteTo(w)
		return err
	})
}

// Load reads an invoice snapshot written by WriteSnapshot into a new ledger
// accepting ids 0..maxAgency.  A missing file yields an empty ledger.
func Load(path string, maxAgency int) (*Ledger, error) {
	l := New(maxAgency)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	balances, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, b := range balances {
		if err := l.Credit(b.Agency, b.Amount); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return l, nil
}

// Parse decodes "agencyId amount" lines.  Blank lines are skipped.
func Parse(r io.Reader) ([]Balance, error) {
	var out []Balance
	seen := make(map[int]bool)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want 2 fields, got %d", line, len(fields))
		}
		agency, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: agency: %w", line, err)
		}
		if seen[agency] {
			return nil, fmt.Errorf("line %d: duplicate agency %d", line, agency)
		}
		seen[agency] = true
		amount, err := decimal.NewFromString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: amount: %w", line, err)
		}
		out = append(out, Balance{Agency: agency, Amount: amount})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
