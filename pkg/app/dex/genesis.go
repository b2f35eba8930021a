package dex

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperspot/params"
	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

// Setup is a genesis file resolved into engine types.
type Setup struct {
	Assets   *assets.Registry
	Accounts spot.Accounts
	Genesis  spot.Genesis
	Admin    common.Address
	Matcher  common.Address
}

func NewSetup(g params.Genesis) (*Setup, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	var nativePrecision uint32
	for _, a := range g.Assets {
		if a.Token == g.NativeToken {
			nativePrecision = a.Precision
		}
	}
	reg, err := assets.NewRegistry(assets.Token(g.NativeToken), nativePrecision)
	if err != nil {
		return nil, err
	}
	for _, a := range g.Assets {
		if err := reg.Register(assets.Token(a.Token), a.Precision); err != nil {
			return nil, err
		}
	}

	s := &Setup{
		Assets: reg,
		Accounts: spot.Accounts{
			System: optionalAddress(g.SystemAccount),
			Burn:   optionalAddress(g.BurnAccount),
		},
		Admin:   optionalAddress(g.Admin),
		Matcher: optionalAddress(g.Matcher),
		Genesis: spot.Genesis{
			Config: spot.Config{OrderFee: g.OrderFee, AveragePriceWindow: g.AveragePriceWindow},
		},
	}
	for _, p := range g.Pairs {
		s.Genesis.Pairs = append(s.Genesis.Pairs, spot.GenesisPair{
			Pair:      market.NewPair(assets.Token(p.First), assets.Token(p.Second)),
			Precision: p.Precision,
		})
	}
	for _, c := range g.Channels {
		if !common.IsHexAddress(c.Account) {
			return nil, fmt.Errorf("channel %q: bad account %q", c.Name, c.Account)
		}
		s.Genesis.Channels = append(s.Genesis.Channels, spot.GenesisChannel{
			Name:    c.Name,
			Account: common.HexToAddress(c.Account),
		})
	}
	for _, b := range g.Balances {
		if !common.IsHexAddress(b.Account) {
			return nil, fmt.Errorf("balance: bad account %q", b.Account)
		}
		s.Genesis.Balances = append(s.Genesis.Balances, spot.GenesisBalance{
			Account: common.HexToAddress(b.Account),
			Token:   assets.Token(b.Token),
			Amount:  b.Amount,
		})
	}
	return s, nil
}

func optionalAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

var errStoreNotEmpty = errors.New("store not empty")

// InitChain writes genesis into an empty store. A store that already holds
// state is left alone and reports false.
func InitChain(store storage.Iterable, engine *spot.Engine, g spot.Genesis) (bool, error) {
	err := store.Iterate(nil, func(_, _ []byte) error { return errStoreNotEmpty })
	if errors.Is(err, errStoreNotEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := engine.InitGenesis(g); err != nil {
		return false, err
	}
	return true, nil
}
