// Package mirror copies agency balances into Redis so that other services
// can read invoices without talking to the reservation server.
package mirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/flight-seat-reservation/internal/engine"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

var _ redis.Scripter = (*redis.Client)(nil)

const writeTimeout = 500 * time.Millisecond

// setIfNewer writes ARGV[2] under field ARGV[1] of hash KEYS[1] unless the
// version stored for that field in KEYS[2] is at least ARGV[3].  Versions
// are fixed-width decimal strings, so string order is numeric order.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[2], ARGV[1])
if current and current >= ARGV[3] then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
return 1
`)

// InvoiceMirror writes the balance of the agency named by each committed
// transaction into a Redis hash keyed by agency id.  A companion hash
// "<key>:version" holds the record stamp of each value, and older records
// never overwrite newer ones even when observers run concurrently.  Failed
// attempts leave balances unchanged and are skipped.  Errors are logged,
// never returned: Redis is a read replica, not a source of truth.
type InvoiceMirror struct {
	rdb    redis.Scripter
	key    string
	logger *zap.Logger
}

// NewInvoiceMirror returns a mirror writing to the hash at key.
func NewInvoiceMirror(rdb redis.Scripter, key string, logger *zap.Logger) *InvoiceMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceMirror{rdb: rdb, key: key, logger: logger}
}

// Observe implements engine.Observer.
func (m *InvoiceMirror) Observe(ctx context.Context, rec engine.Record) {
	if rec.Entry.Result != model.Succeeded {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	agency := strconv.Itoa(rec.Entry.Agency)
	version := fmt.Sprintf("%020d", rec.At.UnixNano())
	err := setIfNewer.Run(ctx, m.rdb, []string{m.key, m.key + ":version"},
		agency, rec.Balance.StringFixed(2), version).Err()
	if err != nil {
		m.logger.Warn("mirror invoice to redis", zap.String("agency", agency), zap.Error(err))
	}
}
