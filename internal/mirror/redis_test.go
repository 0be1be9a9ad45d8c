package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/flight-seat-reservation/internal/engine"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func record(result model.Result, balance string, at time.Time) engine.Record {
	return engine.Record{
		Entry:   model.Entry{Ref: 101, Agency: 5, Op: model.OpReserve, Seats: 3, Result: result},
		Balance: decimal.RequireFromString(balance),
		At:      at,
	}
}

func newMirror(t *testing.T) (*InvoiceMirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewInvoiceMirror(rdb, "invoices", zaptest.NewLogger(t)), mr
}

func TestInvoiceMirror(t *testing.T) {
	m, mr := newMirror(t)
	ctx := context.Background()

	m.Observe(ctx, record(model.Succeeded, "300", base))
	assert.Equal(t, "300.00", mr.HGet("invoices", "5"))

	m.Observe(ctx, record(model.Succeeded, "30", base.Add(time.Second)))
	assert.Equal(t, "30.00", mr.HGet("invoices", "5"))

	m.Observe(ctx, record(model.Failed, "999", base.Add(2*time.Second)))
	assert.Equal(t, "30.00", mr.HGet("invoices", "5"))
}

func TestInvoiceMirrorIgnoresStaleRecords(t *testing.T) {
	m, mr := newMirror(t)
	ctx := context.Background()

	// Delivered out of order: the later balance wins.
	m.Observe(ctx, record(model.Succeeded, "600", base.Add(time.Nanosecond)))
	m.Observe(ctx, record(model.Succeeded, "300", base))
	assert.Equal(t, "600.00", mr.HGet("invoices", "5"))
	require.NotEmpty(t, mr.HGet("invoices:version", "5"))
}

func TestInvoiceMirrorSwallowsErrors(t *testing.T) {
	m, mr := newMirror(t)
	mr.Close()
	assert.NotPanics(t, func() {
		m.Observe(context.Background(), record(model.Succeeded, "300", base))
	})
}
