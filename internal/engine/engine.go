// Package engine is the transaction engine: the single critical section in
// which requests are validated against the catalog, written to the
// transaction log, applied to the catalog and ledger, and mirrored to the
// snapshot files.
//
// One mutex covers the whole sequence for every operation, reads included,
// so the visible state is linearizable.  Observers are notified after the
// lock is released.
package engine

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/flight-seat-reservation/internal/catalog"
	"github.com/iliyamo/flight-seat-reservation/internal/ledger"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Journal is the durable log the engine appends to.  *txlog.Log is the
// production implementation.
type Journal interface {
	Append(model.Entry) error
	Entries() iter.Seq2[model.Entry, error]
	WriteTo(io.Writer) (int64, error)
}

// Record describes a logged transaction for observers.
type Record struct {
	Entry   model.Entry
	Price   int             // per-seat price of the flight
	Seats   int             // seats left on the flight afterwards
	Balance decimal.Decimal // agency balance afterwards

	// At is stamped under the lock and strictly increases from one record
	// to the next, so consumers can drop out-of-order deliveries.
	At time.Time
}

// Observer is told about every logged transaction, outside the lock.
type Observer interface {
	Observe(ctx context.Context, rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec Record)

func (f ObserverFunc) Observe(ctx context.Context, rec Record) { f(ctx, rec) }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.  The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSnapshots sets the files rewritten after every mutation.  An empty
// path disables that snapshot.
func WithSnapshots(catalogPath, invoicePath string) Option {
	return func(e *Engine) {
		e.catalogSnapshot = catalogPath
		e.invoiceSnapshot = invoicePath
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithClock overrides time.Now for records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the catalog, the ledger and the journal.
type Engine struct {
	mu      sync.Mutex
	catalog *catalog.Store
	ledger  *ledger.Ledger
	journal Journal

	catalogSnapshot string
	invoiceSnapshot string

	observers []Observer
	logger    *zap.Logger
	now       func() time.Time
	lastAt    time.Time
}

// New returns an engine over the given state.  The caller must not touch
// cat, led or j afterwards.
func New(cat *catalog.Store, led *ledger.Ledger, j Journal, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		ledger:  led,
		journal: j,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reserve books seats on a flight for an agency.
//
// An unknown flight is rejected without being logged.  A known flight with
// a non-positive or too large seat count is logged as failed and rejected.
// Otherwise the reservation is logged, applied and snapshotted.
func (e *Engine) Reserve(ctx context.Context, ref, agency, seats int) error {
	rec, logged, err := e.reserve(ref, agency, seats)
	if logged {
		e.notify(ctx, rec)
	}
	return err
}

func (e *Engine) reserve(ref, agency, seats int) (Record, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.Check(agency); err != nil {
		return Record{}, false, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	f, ok := e.catalog.Find(ref)
	if !ok {
		return Record{}, false, fmt.Errorf("%w: %w: %d", ErrRejected, catalog.ErrFlightNotFound, ref)
	}

	en := model.Entry{Ref: ref, Agency: agency, Op: model.OpReserve, Seats: seats, Result: model.Succeeded}
	var reason error
	switch {
	case seats <= 0:
		reason = fmt.Errorf("%w: %d", catalog.ErrNegativeSeats, seats)
	case f.Seats < seats:
		reason = fmt.Errorf("%w: want %d, have %d", catalog.ErrInsufficientSeats, seats, f.Seats)
	}
	if reason != nil {
		en.Result = model.Failed
	}
	return e.commit(en, f, reason)
}

// Cancel returns seats on a flight for an agency and refunds 90% of their
// price.  The count is not checked against what the agency reserved.
func (e *Engine) Cancel(ctx context.Context, ref, agency, seats int) error {
	rec, logged, err := e.cancel(ref, agency, seats)
	if logged {
		e.notify(ctx, rec)
	}
	return err
}

func (e *Engine) cancel(ref, agency, seats int) (Record, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.Check(agency); err != nil {
		return Record{}, false, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	f, ok := e.catalog.Find(ref)
	if !ok {
		return Record{}, false, fmt.Errorf("%w: %w: %d", ErrRejected, catalog.ErrFlightNotFound, ref)
	}
	// Every logged cancellation is applied on replay, so a bad count must
	// be turned away before it reaches the log.
	if seats <= 0 {
		return Record{}, false, fmt.Errorf("%w: %w: %d", ErrRejected, catalog.ErrNegativeSeats, seats)
	}
	en := model.Entry{Ref: ref, Agency: agency, Op: model.OpCancel, Seats: seats, Result: model.Succeeded}
	return e.commit(en, f, nil)
}

// commit appends en, applies it when it mutates, and rewrites the
// snapshots.  reason is the rejection cause of a failed entry.  The
// returned bool reports whether en reached the log.  Caller holds e.mu.
func (e *Engine) commit(en model.Entry, f model.Flight, reason error) (Record, bool, error) {
	if err := e.journal.Append(en); err != nil {
		e.logger.Error("transaction log append failed", zap.Stringer("entry", en), zap.Error(err))
		return Record{}, false, fmt.Errorf("%w: %w", ErrDurability, err)
	}
	if mutates(en) {
		if err := e.apply(en, f.Price); err != nil {
			// Validation above makes this unreachable; the entry is already
			// durable, so replay will hit the same error at next start.
			e.logger.Error("apply logged entry", zap.Stringer("entry", en), zap.Error(err))
			return Record{}, true, fmt.Errorf("%w: %w", ErrDurability, err)
		}
	}
	rec := e.record(en, f.Price)
	if reason != nil {
		return rec, true, fmt.Errorf("%w: %w", ErrRejected, reason)
	}
	if err := e.writeSnapshots(); err != nil {
		e.logger.Error("snapshot write failed", zap.Stringer("entry", en), zap.Error(err))
		return rec, true, fmt.Errorf("%w: %w", ErrDurability, err)
	}
	e.logger.Debug("transaction committed", zap.Stringer("entry", en),
		zap.Int("seats_left", rec.Seats), zap.String("balance", rec.Balance.StringFixed(2)))
	return rec, true, nil
}

func (e *Engine) record(en model.Entry, price int) Record {
	f, _ := e.catalog.Find(en.Ref)
	// Wall clock only; the stamp must survive serialization.
	at := e.now().Round(0)
	if !at.After(e.lastAt) {
		at = e.lastAt.Add(time.Nanosecond)
	}
	e.lastAt = at
	return Record{
		Entry:   en,
		Price:   price,
		Seats:   f.Seats,
		Balance: e.ledger.BalanceOf(en.Agency),
		At:      at,
	}
}

func (e *Engine) writeSnapshots() error {
	if e.catalogSnapshot != "" {
		if err := e.catalog.WriteSnapshot(e.catalogSnapshot); err != nil {
			return fmt.Errorf("catalog snapshot: %w", err)
		}
	}
	if e.invoiceSnapshot != "" {
		if err := e.ledger.WriteSnapshot(e.invoiceSnapshot); err != nil {
			return fmt.Errorf("invoice snapshot: %w", err)
		}
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, rec Record) {
	for _, o := range e.observers {
		o.Observe(ctx, rec)
	}
}

// Invoice returns what an agency owes.
func (e *Engine) Invoice(agency int) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.Check(agency); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return e.ledger.BalanceOf(agency), nil
}

// Consult lists every flight in catalog order.
func (e *Engine) Consult() []model.Flight {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Flights()
}

// Flight looks up a single flight.
func (e *Engine) Flight(ref int) (model.Flight, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Find(ref)
}

// History copies the raw transaction log to w.
func (e *Engine) History(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.journal.WriteTo(w)
	return err
}
