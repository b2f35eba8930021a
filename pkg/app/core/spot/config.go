package spot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
)

// Privileged operations. Callers are expected to have checked the origin.

// AddPair registers a trading pair. Both tokens must be known assets. It
// reports false when the pair already exists.
func (e *Engine) AddPair(pair market.Pair, precision uint32) (bool, error) {
	var added bool
	err := e.update("add_pair", func(tx *txn) error {
		var err error
		added, err = tx.addPair(pair, precision)
		return err
	})
	return added, err
}

func (tx *txn) addPair(pair market.Pair, precision uint32) (bool, error) {
	for _, t := range []assets.Token{pair.First, pair.Second} {
		if !tx.e.assets.Exists(t) {
			return false, fmt.Errorf("%w: %s", ErrUnknownAsset, t)
		}
	}
	added, err := tx.Pairs.Add(pair, precision)
	if err != nil || !added {
		return false, err
	}
	p := pair
	tx.emit(Event{Kind: EventPairAdded, Pair: &p, Value: uint64(precision)})
	tx.onCommit(func() {
		tx.e.logger.Info("pair added", zap.Stringer("pair", pair), zap.Uint32("precision", precision))
	})
	return true, nil
}

// SetOrderFee stores the fee rate the matcher quotes fills with.
func (e *Engine) SetOrderFee(v uint64) error {
	return e.update("set_order_fee", func(tx *txn) error {
		cfg, err := tx.Config.Get()
		if err != nil {
			return err
		}
		cfg.OrderFee = v
		if err := tx.Config.Put(cfg); err != nil {
			return err
		}
		tx.emit(Event{Kind: EventFeeUpdated, Value: v})
		return nil
	})
}

// SetAveragePriceWindow sets the weight, in whole units of the second
// token, that the previous average carries against each new fill.
func (e *Engine) SetAveragePriceWindow(v uint64) error {
	return e.update("set_average_price_window", func(tx *txn) error {
		cfg, err := tx.Config.Get()
		if err != nil {
			return err
		}
		cfg.AveragePriceWindow = v
		if err := tx.Config.Put(cfg); err != nil {
			return err
		}
		tx.emit(Event{Kind: EventWindowUpdated, Value: v})
		return nil
	})
}

func (e *Engine) RegisterChannel(name string, account common.Address) error {
	return e.update("register_channel", func(tx *txn) error {
		return tx.Channels.Register(name, account)
	})
}

// Deposit credits free balance, e.g. from a bridge.
func (e *Engine) Deposit(account common.Address, token assets.Token, amount uint64) error {
	return e.update("deposit", func(tx *txn) error {
		if !tx.e.assets.Exists(token) {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, token)
		}
		return tx.Ledger.Deposit(account, token, amount)
	})
}
