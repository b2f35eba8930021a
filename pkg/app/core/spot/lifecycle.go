package spot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/app/core/channel"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
)

// PlaceOrder reserves funds for a new limit order and asks the matcher to
// match it. Placing the same request twice creates two orders.
func (e *Engine) PlaceOrder(account common.Address, pair market.Pair, side Side, amount, price uint64, channelName string) (OrderID, error) {
	var id OrderID
	err := e.update("place_order", func(tx *txn) error {
		var err error
		id, err = tx.placeOrder(account, pair, side, amount, price, channelName)
		return err
	})
	return id, err
}

func (tx *txn) placeOrder(account common.Address, pair market.Pair, side Side, amount, price uint64, channelName string) (OrderID, error) {
	if _, err := tx.Pairs.Detail(pair); err != nil {
		return OrderID{}, err
	}
	if amount == 0 {
		return OrderID{}, ErrZeroAmount
	}
	if price == 0 {
		return OrderID{}, ErrZeroPrice
	}
	if len(channelName) > channel.MaxNameLen {
		return OrderID{}, fmt.Errorf("%w: %d bytes", ErrChannelTooLong, len(channelName))
	}
	if side != Buy && side != Sell {
		return OrderID{}, fmt.Errorf("invalid side %d", side)
	}

	firstPrecision, err := tx.e.assets.Precision(pair.First)
	if err != nil {
		return OrderID{}, err
	}
	quote, err := quoteAmount(amount, price, firstPrecision)
	if err != nil {
		return OrderID{}, err
	}
	// Sells are checked too: a sell worth nothing in the second token
	// could never be settled.
	if quote == 0 {
		return OrderID{}, fmt.Errorf("%w: %d*%d", ErrAmountTooSmall, amount, price)
	}

	order := &Order{
		Account:   account,
		Pair:      pair,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Channel:   channelName,
		Status:    FillNone,
		CreatedAt: tx.height,
		UpdatedAt: tx.height,
	}
	order.ReservedRemaining = amount
	if side == Buy {
		order.ReservedRemaining = quote
	}

	if err := tx.Ledger.Reserve(account, order.ReserveToken(), order.ReservedRemaining); err != nil {
		return OrderID{}, err
	}

	seq, err := tx.Orders.NextSeq(account, pair)
	if err != nil {
		return OrderID{}, err
	}
	order.Seq = seq
	if err := tx.Orders.Put(order); err != nil {
		return OrderID{}, err
	}

	tx.emit(orderEvent(EventOrderPlaced, order))
	tx.emit(orderEvent(EventOrderUpdated, order))

	if _, err := tx.Outbox.Append(Command{Account: account, Pair: pair, Seq: seq, Kind: CommandMatch}); err != nil {
		return OrderID{}, err
	}

	tx.onCommit(func() {
		tx.e.metrics.ObserveOrderPlaced(pair.String(), side.String())
		tx.e.logger.Debug("order placed",
			zap.String("account", account.Hex()),
			zap.Stringer("pair", pair),
			zap.Uint64("seq", seq),
			zap.Stringer("side", side),
			zap.Uint64("amount", amount),
			zap.Uint64("price", price),
			zap.Uint64("reserved", order.ReservedRemaining))
	})
	return order.ID(), nil
}

// CancelOrder refunds the unfilled part of an order and tells the matcher
// to drop it. caller must own the order.
func (e *Engine) CancelOrder(caller common.Address, id OrderID) error {
	return e.update("cancel_order", func(tx *txn) error {
		return tx.cancelOrder(caller, id)
	})
}

func (tx *txn) cancelOrder(caller common.Address, id OrderID) error {
	order, err := tx.Orders.Get(id)
	if err != nil {
		return err
	}
	if order.Account != caller {
		return fmt.Errorf("%w: %s", ErrNotOwner, id)
	}
	if order.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, order.Status)
	}

	// Sells refund the unfilled quantity; buys refund whatever is still
	// reserved, which includes any price improvement left over from fills.
	refund := order.ReservedRemaining
	if order.Side == Sell {
		refund = order.Remaining()
	}
	if refund > order.ReservedRemaining {
		return fmt.Errorf("%w: refund %d, reserved %d", ErrReserveUnderflow, refund, order.ReservedRemaining)
	}

	if err := tx.Ledger.Unreserve(order.Account, order.ReserveToken(), refund); err != nil {
		return err
	}

	order.ReservedRemaining -= refund
	if order.FilledAmount > 0 {
		order.Status = FillPartAndCancelled
	} else {
		order.Status = Cancelled
	}
	order.UpdatedAt = tx.height
	if err := tx.Orders.Put(order); err != nil {
		return err
	}
	tx.emit(orderEvent(EventOrderUpdated, order))

	if _, err := tx.Outbox.Append(Command{Account: order.Account, Pair: order.Pair, Seq: order.Seq, Kind: CommandCancel}); err != nil {
		return err
	}
	tx.emit(orderEvent(EventOrderCancelled, order))

	tx.onCommit(func() {
		tx.e.metrics.ObserveOrderCancelled(order.Pair.String())
		tx.e.logger.Debug("order cancelled", zap.Stringer("order", id), zap.Uint64("refund", refund))
	})
	return nil
}
