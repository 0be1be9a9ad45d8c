// Package catalog owns the flight table: the fixed set of flights loaded at
// startup together with their remaining seats.  The Store is not safe for
// concurrent use on its own; the transaction engine serializes every call.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/iliyamo/flight-seat-reservation/internal/fsutil"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// ErrFlightNotFound is returned when a reference is not in the catalog.
var ErrFlightNotFound = errors.New("flight not found")

// ErrInsufficientSeats is returned by Decrement when fewer seats remain than
// requested.  The store is left untouched.
var ErrInsufficientSeats = errors.New("insufficient seats")

// ErrNegativeSeats is returned when a seat delta is negative.
var ErrNegativeSeats = errors.New("negative seat count")

// Store is the in-memory flight table.  Flights are kept in load order so
// that listings are stable; index maps a reference to its slot.
type Store struct {
	flights []model.Flight
	index   map[int]int
}

// New builds a store from flights in the given order.  Duplicate references
// are rejected.
func New(flights []model.Flight) (*Store, error) {
	s := &Store{
		flights: make([]model.Flight, 0, len(flights)),
		index:   make(map[int]int, len(flights)),
	}
	for _, f := range flights {
		if _, dup := s.index[f.Ref]; dup {
			return nil, fmt.Errorf("duplicate flight reference %d", f.Ref)
		}
		if f.Seats < 0 || f.Price < 0 {
			return nil, fmt.Errorf("flight %d: seats and price must be non-negative", f.Ref)
		}
		s.index[f.Ref] = len(s.flights)
		s.flights = append(s.flights, f)
	}
	return s, nil
}

// Load reads a catalog file.  Each non-blank line holds
// "ref destination seats price".
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	flights, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(flights)
}

// Parse decodes catalog lines from r.
func Parse(r io.Reader) ([]model.Flight, error) {
	var flights []model.Flight
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: want 4 fields, got %d", line, len(fields))
		}
		var (
			fl  = model.Flight{Destination: fields[1]}
			err error
		)
		if fl.Ref, err = strconv.Atoi(fields[0]); err != nil {
			return nil, fmt.Errorf("line %d: ref: %w", line, err)
		}
		if fl.Seats, err = strconv.Atoi(fields[2]); err != nil {
			return nil, fmt.Errorf("line %d: seats: %w", line, err)
		}
		if fl.Price, err = strconv.Atoi(fields[3]); err != nil {
			return nil, fmt.Errorf("line %d: price: %w", line, err)
		}
		flights = append(flights, fl)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return flights, nil
}

// Find returns the flight with the given reference.
func (s *Store) Find(ref int) (model.Flight, bool) {
	i, ok := s.index[ref]
	if !ok {
		return model.Flight{}, false
	}
	return s.flights[i], true
}

// Decrement takes n seats from a flight.
func (s *Store) Decrement(ref, n int) error {
	if n < 0 {
		return ErrNegativeSeats
	}
	i, ok := s.index[ref]
	if !ok {
		return ErrFlightNotFound
	}
	if s.flights[i].Seats < n {
		return ErrInsufficientSeats
	}
	s.flights[i].Seats -= n
	return nil
}

// Increment gives n seats back to a flight.  There is no upper bound: a
// cancellation may return more seats than were ever reserved.
func (s *Store) Increment(ref, n int) error {
	if n < 0 {
		return ErrNegativeSeats
	}
	i, ok := s.index[ref]
	if !ok {
		return ErrFlightNotFound
	}
	s.flights[i].Seats += n
	return nil
}

// Flights returns a copy of the table in load order.
func (s *Store) Flights() []model.Flight {
	out := make([]model.Flight, len(s.flights))
	copy(out, s.flights)
	return out
}

// Len reports the number of flights.
func (s *Store) Len() int { return len(s.flights) }

// WriteTo writes the table in catalog file format.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, f := range s.flights {
		n, err := fmt.Fprintf(w, "%d %s %d %d\n", f.Ref, f.Destination, f.Seats, f.Price)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSnapshot atomically rewrites path with the current table.
func (s *Store) WriteSnapshot(path string) error {
	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := s.WriteTo(w)
		return err
	})
}
