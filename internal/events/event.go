// Package events publishes a message for every logged transaction so that
// downstream consumers (audit trails, dashboards) can follow the server
// without reading its files.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/engine"
)

// TransactionRecordedEvent is published after a reservation or cancellation
// attempt has been written to the transaction log.
type TransactionRecordedEvent struct {
	EventID    string          `json:"event_id"`
	FlightRef  int             `json:"flight_ref"`
	AgencyID   int             `json:"agency_id"`
	Operation  string          `json:"operation"`
	Seats      int             `json:"seats"`
	Result     string          `json:"result"`
	Price      int             `json:"price"`
	SeatsLeft  int             `json:"seats_left"`
	Balance    decimal.Decimal `json:"balance"`
	RecordedAt string          `json:"recorded_at"`
}

// FromRecord builds the event for an engine record.
func FromRecord(rec engine.Record) TransactionRecordedEvent {
	return TransactionRecordedEvent{
		EventID:    uuid.NewString(),
		FlightRef:  rec.Entry.Ref,
		AgencyID:   rec.Entry.Agency,
		Operation:  rec.Entry.Op.String(),
		Seats:      rec.Entry.Seats,
		Result:     rec.Entry.Result.String(),
		Price:      rec.Price,
		SeatsLeft:  rec.Seats,
		Balance:    rec.Balance,
		RecordedAt: rec.At.UTC().Format(time.RFC3339Nano),
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev TransactionRecordedEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// Publish drops ev.
func (Nop) Publish(context.Context, TransactionRecordedEvent) error {
	return nil
}

// Close does nothing.
func (Nop) Close() error {
	return nil
}
