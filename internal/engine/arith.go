package engine

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// refundRate is the share of the ticket price returned on cancellation; the
// remaining 10% is kept as a penalty.
var refundRate = decimal.RequireFromString("0.9")

func charge(seats, price int) decimal.Decimal {
	return decimal.NewFromInt(int64(seats)).Mul(decimal.NewFromInt(int64(price)))
}

func refund(seats, price int) decimal.Decimal {
	return charge(seats, price).Mul(refundRate)
}

// apply performs the state change an entry stands for.  It is the only place
// seats and balances move, for live requests and replay alike.  Failed
// reservations change nothing; cancellations always apply, whatever their
// recorded result.
func (e *Engine) apply(en model.Entry, price int) error {
	if err := e.ledger.Check(en.Agency); err != nil {
		return err
	}
	switch en.Op {
	case model.OpReserve:
		if en.Result != model.Succeeded {
			return nil
		}
		if err := e.catalog.Decrement(en.Ref, en.Seats); err != nil {
			return err
		}
		return e.ledger.Credit(en.Agency, charge(en.Seats, price))
	case model.OpCancel:
		if err := e.catalog.Increment(en.Ref, en.Seats); err != nil {
			return err
		}
		return e.ledger.Debit(en.Agency, refund(en.Seats, price))
	}
	return nil
}

// mutates reports whether applying en changes state.
func mutates(en model.Entry) bool {
	return en.Op == model.OpCancel || en.Result == model.Succeeded
}
