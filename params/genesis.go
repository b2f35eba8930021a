package params

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type GenesisAsset struct {
	Token     string `mapstructure:"token"`
	Precision uint32 `mapstructure:"precision"`
}

type GenesisPair struct {
	First     string `mapstructure:"first"`
	Second    string `mapstructure:"second"`
	Precision uint32 `mapstructure:"precision"`
}

type GenesisChannel struct {
	Name    string `mapstructure:"name"`
	Account string `mapstructure:"account"`
}

type GenesisBalance struct {
	Account string `mapstructure:"account"`
	Token   string `mapstructure:"token"`
	Amount  uint64 `mapstructure:"amount"`
}

// Genesis is the initial state of the exchange as written in the genesis
// file.
type Genesis struct {
	NativeToken        string           `mapstructure:"native_token"`
	Assets             []GenesisAsset   `mapstructure:"assets"`
	Pairs              []GenesisPair    `mapstructure:"pairs"`
	OrderFee           uint64           `mapstructure:"order_fee"`
	AveragePriceWindow uint64           `mapstructure:"average_price_window"`
	Channels           []GenesisChannel `mapstructure:"channels"`
	Balances           []GenesisBalance `mapstructure:"balances"`

	// Reserved identities. Empty fields use the engine defaults.
	SystemAccount string `mapstructure:"system_account"`
	BurnAccount   string `mapstructure:"burn_account"`
	// Admin may submit privileged transactions; Matcher may submit fills.
	Admin   string `mapstructure:"admin"`
	Matcher string `mapstructure:"matcher"`
}

// Devnet keys for the default admin and matcher. Never use outside a
// local network.
const (
	DevAdminKey   = "0000000000000000000000000000000000000000000000000000000000000001"
	DevMatcherKey = "0000000000000000000000000000000000000000000000000000000000000002"
)

func DefaultGenesis() Genesis {
	return Genesis{
		NativeToken: "PCX",
		Assets: []GenesisAsset{
			{Token: "PCX", Precision: 8},
			{Token: "BTC", Precision: 8},
			{Token: "USDT", Precision: 6},
		},
		Pairs: []GenesisPair{
			{First: "BTC", Second: "USDT", Precision: 2},
			{First: "PCX", Second: "BTC", Precision: 8},
			{First: "PCX", Second: "USDT", Precision: 4},
		},
		AveragePriceWindow: 100,
		Admin:              "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
		Matcher:            "0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF",
	}
}

// LoadGenesis reads a YAML or JSON genesis file. The native token, the
// price window and the admin and matcher identities fall back to
// DefaultGenesis when missing; lists never do.
func LoadGenesis(path string) (Genesis, error) {
	d := DefaultGenesis()
	if path == "" {
		return d, nil
	}

	v := viper.New()
	v.SetDefault("native_token", d.NativeToken)
	v.SetDefault("average_price_window", d.AveragePriceWindow)
	v.SetDefault("admin", d.Admin)
	v.SetDefault("matcher", d.Matcher)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Genesis{}, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := v.Unmarshal(&g); err != nil {
		return Genesis{}, fmt.Errorf("unmarshal genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return Genesis{}, err
	}
	return g, nil
}

// Validate checks references between sections. Numeric limits are left to
// the registries that enforce them.
func (g Genesis) Validate() error {
	var errs []error

	known := make(map[string]bool, len(g.Assets))
	for _, a := range g.Assets {
		if known[a.Token] {
			errs = append(errs, fmt.Errorf("asset %s listed twice", a.Token))
		}
		known[a.Token] = true
	}
	if !known[g.NativeToken] {
		errs = append(errs, fmt.Errorf("native token %q is not a listed asset", g.NativeToken))
	}
	for _, p := range g.Pairs {
		if !known[p.First] || !known[p.Second] {
			errs = append(errs, fmt.Errorf("pair %s/%s uses an unlisted asset", p.First, p.Second))
		}
	}
	for _, b := range g.Balances {
		if !known[b.Token] {
			errs = append(errs, fmt.Errorf("balance of %s uses unlisted asset %s", b.Account, b.Token))
		}
	}

	addrs := map[string]string{
		"admin":   g.Admin,
		"matcher": g.Matcher,
		"system":  g.SystemAccount,
		"burn":    g.BurnAccount,
	}
	for name, a := range addrs {
		if a != "" && !common.IsHexAddress(a) {
			errs = append(errs, fmt.Errorf("%s account %q is not an address", name, a))
		}
	}
	for _, c := range g.Channels {
		if !common.IsHexAddress(c.Account) {
			errs = append(errs, fmt.Errorf("channel %s account %q is not an address", c.Name, c.Account))
		}
	}
	for _, b := range g.Balances {
		if !common.IsHexAddress(b.Account) {
			errs = append(errs, fmt.Errorf("balance account %q is not an address", b.Account))
		}
	}
	if g.SystemAccount != "" && g.SystemAccount == g.BurnAccount {
		errs = append(errs, errors.New("system and burn accounts must differ"))
	}

	return errors.Join(errs...)
}
