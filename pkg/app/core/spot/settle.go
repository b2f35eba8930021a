package spot

import (
	"fmt"

	"go.uber.org/zap"
)

// FillOrder settles one match decided by the matcher: both orders advance,
// reserved funds change hands with fees charged, the fill is recorded and
// the pair's prices are updated. Any error leaves the ledger untouched.
func (e *Engine) FillOrder(req FillRequest) (*Fill, error) {
	var fill *Fill
	err := e.update("fill_order", func(tx *txn) error {
		var err error
		fill, err = tx.fillOrder(req)
		return err
	})
	return fill, err
}

func (tx *txn) fillOrder(req FillRequest) (*Fill, error) {
	makerID := OrderID{Account: req.Maker, Pair: req.Pair, Seq: req.MakerSeq}
	takerID := OrderID{Account: req.Taker, Pair: req.Pair, Seq: req.TakerSeq}
	if makerID == takerID {
		return nil, fmt.Errorf("%w: %s", ErrSameOrder, makerID)
	}

	maker, err := tx.Orders.Get(makerID)
	if err != nil {
		return nil, fmt.Errorf("maker: %w", err)
	}
	taker, err := tx.Orders.Get(takerID)
	if err != nil {
		return nil, fmt.Errorf("taker: %w", err)
	}
	if maker.Side == taker.Side {
		return nil, fmt.Errorf("%w: both %s", ErrSideMismatch, maker.Side)
	}

	if err := tx.advance(maker, req.Amount); err != nil {
		return nil, fmt.Errorf("maker %s: %w", makerID, err)
	}
	if err := tx.advance(taker, req.Amount); err != nil {
		return nil, fmt.Errorf("taker %s: %w", takerID, err)
	}

	firstPrecision, err := tx.e.assets.Precision(req.Pair.First)
	if err != nil {
		return nil, err
	}
	quote, err := quoteAmount(req.Amount, req.Price, firstPrecision)
	if err != nil {
		return nil, err
	}

	sell, buy := maker, taker
	sellFee, buyFee := req.MakerFee, req.TakerFee
	if maker.Side == Buy {
		sell, buy = taker, maker
		sellFee, buyFee = req.TakerFee, req.MakerFee
	}
	if err := consumeReserve(sell, req.Amount); err != nil {
		return nil, fmt.Errorf("sell order %s: %w", sell.ID(), err)
	}
	if err := consumeReserve(buy, quote); err != nil {
		return nil, fmt.Errorf("buy order %s: %w", buy.ID(), err)
	}
	// The seller receives the second token, so its fee converts at the fill price.
	sellFeeQuote, err := quoteAmount(sellFee, req.Price, firstPrecision)
	if err != nil {
		return nil, err
	}

	// The maker's funds are released first.
	baseLeg := func() (FeeCharge, error) {
		return tx.settleLeg(req.Pair.First, req.Amount, buyFee, sell.Account, buy.Account, sell.Channel)
	}
	quoteLeg := func() (FeeCharge, error) {
		return tx.settleLeg(req.Pair.Second, quote, sellFeeQuote, buy.Account, sell.Account, buy.Channel)
	}
	var buyCharge, sellCharge FeeCharge
	if maker == sell {
		if buyCharge, err = baseLeg(); err == nil {
			sellCharge, err = quoteLeg()
		}
	} else {
		if sellCharge, err = quoteLeg(); err == nil {
			buyCharge, err = baseLeg()
		}
	}
	if err != nil {
		return nil, err
	}

	fill := &Fill{
		Pair:     req.Pair,
		Maker:    req.Maker,
		MakerSeq: req.MakerSeq,
		Taker:    req.Taker,
		TakerSeq: req.TakerSeq,
		Price:    req.Price,
		Amount:   req.Amount,
		Height:   tx.height,
	}
	if maker == sell {
		fill.MakerFee, fill.TakerFee = sellCharge, buyCharge
	} else {
		fill.MakerFee, fill.TakerFee = buyCharge, sellCharge
	}
	idx, err := tx.Fills.Append(fill)
	if err != nil {
		return nil, err
	}

	if err := tx.recordTrade(req.Pair, req.Price, req.Amount); err != nil {
		return nil, err
	}

	for _, o := range []*Order{maker, taker} {
		o.FillHistory = append(o.FillHistory, idx)
		o.UpdatedAt = tx.height
		if err := tx.releaseResidue(o); err != nil {
			return nil, err
		}
		if err := tx.Orders.Put(o); err != nil {
			return nil, err
		}
		tx.emit(orderEvent(EventOrderUpdated, o))
	}

	f := *fill
	p := fill.Pair
	tx.emit(Event{Kind: EventFillRecorded, Pair: &p, Fill: &f})

	tx.onCommit(func() {
		tx.e.metrics.ObserveFill(req.Pair.String(), req.Amount)
		tx.e.logger.Debug("fill recorded",
			zap.Stringer("pair", req.Pair),
			zap.Uint64("index", idx),
			zap.Uint64("price", req.Price),
			zap.Uint64("amount", req.Amount))
	})
	return fill, nil
}

// advance adds amount to the order's filled quantity and moves its status.
func (tx *txn) advance(o *Order, amount uint64) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, o.Status)
	}
	filled, err := addChecked(o.FilledAmount, amount)
	if err != nil {
		return err
	}
	if filled > o.Amount {
		return fmt.Errorf("%w: filled %d + %d > %d", ErrOverFill, o.FilledAmount, amount, o.Amount)
	}
	o.FilledAmount = filled
	switch {
	case filled == o.Amount:
		o.Status = FillAll
	case filled > 0:
		o.Status = FillPart
	}
	return nil
}

func consumeReserve(o *Order, amount uint64) error {
	if amount > o.ReservedRemaining {
		return fmt.Errorf("%w: need %d, reserved %d", ErrReserveUnderflow, amount, o.ReservedRemaining)
	}
	o.ReservedRemaining -= amount
	return nil
}

// releaseResidue refunds what a fully filled order still holds, e.g. a buy
// that filled below its limit price.
func (tx *txn) releaseResidue(o *Order) error {
	if o.Status != FillAll || o.ReservedRemaining == 0 {
		return nil
	}
	if err := tx.Ledger.Unreserve(o.Account, o.ReserveToken(), o.ReservedRemaining); err != nil {
		return fmt.Errorf("release residue of %s: %w", o.ID(), err)
	}
	o.ReservedRemaining = 0
	return nil
}
