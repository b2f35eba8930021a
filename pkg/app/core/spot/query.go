package spot

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
)

// Read-only queries against committed state.

func (e *Engine) Order(id OrderID) (*Order, error) {
	var o *Order
	err := e.view(func(s *State) error {
		var err error
		o, err = s.Orders.Get(id)
		return err
	})
	return o, err
}

// OrderList returns account's orders on pair, newest first.
func (e *Engine) OrderList(account common.Address, pair market.Pair) ([]*Order, error) {
	var out []*Order
	err := e.view(func(s *State) error {
		var err error
		out, err = s.Orders.List(account, pair)
		return err
	})
	return out, err
}

func (e *Engine) Fill(pair market.Pair, idx uint64) (*Fill, bool, error) {
	var (
		f  *Fill
		ok bool
	)
	err := e.view(func(s *State) error {
		var err error
		f, ok, err = s.Fills.Get(pair, idx)
		return err
	})
	return f, ok, err
}

func (e *Engine) Fills(pair market.Pair, from uint64, limit int) ([]*Fill, error) {
	var out []*Fill
	err := e.view(func(s *State) error {
		var err error
		out, err = s.Fills.Page(pair, from, limit)
		return err
	})
	return out, err
}

func (e *Engine) LastFillIndex(pair market.Pair) (uint64, error) {
	var idx uint64
	err := e.view(func(s *State) error {
		var err error
		idx, err = s.Fills.LastIndex(pair)
		return err
	})
	return idx, err
}

func (e *Engine) Prices(pair market.Pair) (PriceState, error) {
	var st PriceState
	err := e.view(func(s *State) error {
		var err error
		st, err = s.Prices.Get(pair)
		return err
	})
	return st, err
}

func (e *Engine) NativePrice(token assets.Token) (uint64, error) {
	var p uint64
	err := e.view(func(s *State) error {
		var err error
		p, err = s.Prices.NativePrice(token)
		return err
	})
	return p, err
}

// PendingCommands lists the outbox without draining it.
func (e *Engine) PendingCommands() ([]Command, error) {
	var out []Command
	err := e.view(func(s *State) error {
		var err error
		out, err = s.Outbox.Pending()
		return err
	})
	return out, err
}

func (e *Engine) Tickets() ([]*FeeBuyTicket, error) {
	var out []*FeeBuyTicket
	err := e.view(func(s *State) error {
		var err error
		out, err = s.Tickets.List()
		return err
	})
	return out, err
}

func (e *Engine) Config() (Config, error) {
	var c Config
	err := e.view(func(s *State) error {
		var err error
		c, err = s.Config.Get()
		return err
	})
	return c, err
}

func (e *Engine) Pairs() ([]market.Detail, error) {
	var out []market.Detail
	err := e.view(func(s *State) error {
		var err error
		out, err = s.Pairs.List()
		return err
	})
	return out, err
}

func (e *Engine) Balance(account common.Address, token assets.Token) (assets.Balance, error) {
	var b assets.Balance
	err := e.view(func(s *State) error {
		var err error
		b, err = s.Ledger.Balance(account, token)
		return err
	})
	return b, err
}

// DrainCommands hands every pending command to the matcher side and empties
// the outbox.
func (e *Engine) DrainCommands() ([]Command, error) {
	var out []Command
	err := e.update("drain_commands", func(tx *txn) error {
		var err error
		out, err = tx.Outbox.Drain()
		return err
	})
	return out, err
}

// UpdateCommandPayload attaches matcher data to a pending command.
func (e *Engine) UpdateCommandPayload(id uint64, payload []byte) error {
	return e.update("update_command", func(tx *txn) error {
		return tx.Outbox.UpdatePayload(id, payload)
	})
}
