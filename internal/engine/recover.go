package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RecoverStats summarizes a replay.
type RecoverStats struct {
	Entries int // lines read
	Applied int // entries that changed state
	Skipped int // entries naming a flight that is not in the catalog
}

// Recover rebuilds the catalog and ledger from the journal.  It must run
// once, on the freshly loaded catalog and an empty ledger, before any
// request is served.  Any unreadable or inapplicable entry aborts the
// replay: starting from a state the log does not explain would make the
// next append lie.
func (e *Engine) Recover(ctx context.Context) (RecoverStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var st RecoverStats
	for en, err := range e.journal.Entries() {
		if err != nil {
			return st, fmt.Errorf("read transaction log: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Entries++
		f, ok := e.catalog.Find(en.Ref)
		if !ok {
			st.Skipped++
			e.logger.Warn("replay: unknown flight, entry skipped", zap.Stringer("entry", en))
			continue
		}
		if !mutates(en) {
			continue
		}
		if err := e.apply(en, f.Price); err != nil {
			return st, fmt.Errorf("replay entry %d (%s): %w", st.Entries, en, err)
		}
		st.Applied++
	}
	if err := e.writeSnapshots(); err != nil {
		return st, fmt.Errorf("%w: %w", ErrDurability, err)
	}
	e.logger.Info("transaction log replayed",
		zap.Int("entries", st.Entries), zap.Int("applied", st.Applied), zap.Int("skipped", st.Skipped))
	return st, nil
}
