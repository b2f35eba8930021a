package spot

import (
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
)

// queueFeeBuy records a fee collected in token for conversion into the
// native token. Without a (native, token) pair the fee simply stays with
// the system account.
func (tx *txn) queueFeeBuy(token assets.Token, amount uint64, channelName string) error {
	if amount == 0 {
		return nil
	}
	pair, ok, err := tx.Pairs.Find(tx.e.assets.Native(), token)
	if err != nil {
		return err
	}
	if !ok {
		tx.onCommit(func() {
			tx.e.logger.Debug("fee kept without conversion pair", zap.String("token", string(token)), zap.Uint64("amount", amount))
		})
		return nil
	}
	st, err := tx.Prices.Get(pair)
	if err != nil {
		return err
	}

	ticket := &FeeBuyTicket{Pair: pair, Amount: amount, Price: st.Last, Channel: channelName}
	if _, err := tx.Tickets.Push(ticket); err != nil {
		return err
	}
	p := pair
	t := *ticket
	tx.emit(Event{Kind: EventFeeBuyQueued, Pair: &p, Ticket: &t, Value: amount})
	tx.onCommit(func() { tx.e.metrics.ObserveFeeBuy("queued") })
	return nil
}

// ReplayFeeBuyTickets turns every queued fee-buy ticket into a buy order
// placed by the system account, then clears the queue. Tickets that cannot
// be placed (no price yet, dust, insufficient funds) are dropped and their
// funds stay with the system account. It returns the number of orders placed.
func (e *Engine) ReplayFeeBuyTickets() (int, error) {
	placed := 0
	err := e.update("replay_fee_buy", func(tx *txn) error {
		placed = 0
		tickets, err := tx.Tickets.List()
		if err != nil {
			return err
		}
		for _, t := range tickets {
			if tx.replayTicket(t) {
				placed++
			}
		}
		return tx.Tickets.Clear()
	})
	return placed, err
}

func (tx *txn) replayTicket(t *FeeBuyTicket) bool {
	drop := func(reason string, err error) bool {
		tx.onCommit(func() {
			tx.e.metrics.ObserveFeeBuy("dropped")
			tx.e.logger.Info("fee-buy ticket dropped",
				zap.Uint64("ticket", t.ID),
				zap.Stringer("pair", t.Pair),
				zap.Uint64("amount", t.Amount),
				zap.String("reason", reason),
				zap.Error(err))
		})
		return false
	}

	price := t.Price
	if price == 0 {
		st, err := tx.Prices.Get(t.Pair)
		if err != nil {
			return drop("price lookup", err)
		}
		price = st.Last
	}
	if price == 0 {
		return drop("no price", nil)
	}

	precision, err := tx.e.assets.Precision(t.Pair.First)
	if err != nil {
		return drop("precision", err)
	}
	unit, err := pow10(precision)
	if err != nil {
		return drop("precision", err)
	}
	amount, err := mulDiv(t.Amount, unit, price)
	if err != nil {
		return drop("amount", err)
	}
	if amount == 0 {
		return drop("dust", nil)
	}

	err = tx.nested(func(child *txn) error {
		_, err := child.placeOrder(tx.e.accounts.System, t.Pair, Buy, amount, price, t.Channel)
		return err
	})
	if err != nil {
		return drop("place order", err)
	}
	tx.onCommit(func() { tx.e.metrics.ObserveFeeBuy("placed") })
	return true
}
