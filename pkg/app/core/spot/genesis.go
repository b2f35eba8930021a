package spot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
)

type GenesisPair struct {
	Pair      market.Pair
	Precision uint32
}

type GenesisChannel struct {
	Name    string
	Account common.Address
}

type GenesisBalance struct {
	Account common.Address
	Token   assets.Token
	Amount  uint64
}

type Genesis struct {
	Config   Config
	Pairs    []GenesisPair
	Channels []GenesisChannel
	Balances []GenesisBalance
}

// InitGenesis writes the initial pairs, config, channels and balances in
// one commit.
func (e *Engine) InitGenesis(g Genesis) error {
	return e.update("init_genesis", func(tx *txn) error {
		if err := tx.Config.Put(g.Config); err != nil {
			return err
		}
		for _, p := range g.Pairs {
			if _, err := tx.addPair(p.Pair, p.Precision); err != nil {
				return fmt.Errorf("genesis pair %s: %w", p.Pair, err)
			}
		}
		for _, c := range g.Channels {
			if err := tx.Channels.Register(c.Name, c.Account); err != nil {
				return fmt.Errorf("genesis channel %q: %w", c.Name, err)
			}
		}
		for _, b := range g.Balances {
			if !e.assets.Exists(b.Token) {
				return fmt.Errorf("genesis balance: %w: %s", ErrUnknownAsset, b.Token)
			}
			if err := tx.Ledger.Deposit(b.Account, b.Token, b.Amount); err != nil {
				return fmt.Errorf("genesis balance %s: %w", b.Account.Hex(), err)
			}
		}
		return nil
	})
}
