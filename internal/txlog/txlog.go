// Package txlog is the append-only transaction log.  Every line records one
// reservation or cancellation attempt; the file is the authoritative history
// from which the catalog and ledger are rebuilt at startup.
package txlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("transaction log closed")

// Log appends entries to a file, syncing each one to stable storage before
// Append returns.  It is not safe for concurrent use; the engine serializes
// access.
type Log struct {
	path string
	f    *os.File
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transaction log: %w", err)
	}
	return &Log{path: path, f: f}, nil
}

// Path returns the file backing the log.
func (l *Log) Path() string { return l.path }

// Append writes one entry and fsyncs the file.
func (l *Log) Append(e model.Entry) error {
	if l.f == nil {
		return ErrClosed
	}
	if _, err := l.f.WriteString(e.String() + "\n"); err != nil {
		return fmt.Errorf("append %q: %w", e, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync transaction log: %w", err)
	}
	return nil
}

// Close releases the file.
func (l *Log) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Entries returns the log in append order.  The sequence re-reads the file
// on every iteration, so it can be ranged over more than once.  A missing
// file yields nothing.  Iteration stops after the first error.
func (l *Log) Entries() iter.Seq2[model.Entry, error] {
	return ReadFile(l.path)
}

// ReadFile iterates the entries of the log file at path.
func ReadFile(path string) iter.Seq2[model.Entry, error] {
	return func(yield func(model.Entry, error) bool) {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			yield(model.Entry{}, err)
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		line := 0
		for sc.Scan() {
			line++
			if strings.TrimSpace(sc.Text()) == "" {
				continue
			}
			e, err := ParseEntry(sc.Text())
			if err != nil {
				yield(model.Entry{}, fmt.Errorf("%s:%d: %w", path, line, err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(model.Entry{}, err)
		}
	}
}

// ParseEntry decodes one log line: "ref agency operation seats result".
func ParseEntry(s string) (model.Entry, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return model.Entry{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}
	var (
		e   model.Entry
		err error
	)
	if e.Ref, err = strconv.Atoi(fields[0]); err != nil {
		return model.Entry{}, fmt.Errorf("ref: %w", err)
	}
	if e.Agency, err = strconv.Atoi(fields[1]); err != nil {
		return model.Entry{}, fmt.Errorf("agency: %w", err)
	}
	if e.Op, err = model.ParseOperation(fields[2]); err != nil {
		return model.Entry{}, err
	}
	if e.Seats, err = strconv.Atoi(fields[3]); err != nil {
		return model.Entry{}, fmt.Errorf("seats: %w", err)
	}
	e.Result = model.ParseResult(fields[4])
	return e, nil
}

// WriteTo copies the raw log file to w.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}
