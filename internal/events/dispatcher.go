package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/flight-seat-reservation/internal/engine"
)

var _ engine.Observer = (*Dispatcher)(nil)

// publishTimeout bounds a single broker round trip.
const publishTimeout = 5 * time.Second

// Dispatcher is an engine observer that hands events to a Publisher from a
// background goroutine.  Observe never blocks: when the queue is full the
// event is dropped and logged, so a slow broker cannot stall agencies.
type Dispatcher struct {
	pub    Publisher
	logger *zap.Logger

	mu     sync.RWMutex
	queue  chan TransactionRecordedEvent
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher holding up to buffer pending events.
func NewDispatcher(pub Publisher, buffer int, logger *zap.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		pub:    pub,
		logger: logger,
		queue:  make(chan TransactionRecordedEvent, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Observe queues the event for rec.
func (d *Dispatcher) Observe(_ context.Context, rec engine.Record) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	ev := FromRecord(rec)
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("event queue full, event dropped",
			zap.String("event_id", ev.EventID), zap.Int("flight_ref", ev.FlightRef))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.pub.Publish(ctx, ev); err != nil {
			d.logger.Warn("publish event", zap.String("event_id", ev.EventID), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events, drains the queue and closes the publisher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return d.pub.Close()
}
