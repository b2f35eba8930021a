package dex

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
	"github.com/uhyunpark/hyperspot/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperspot/pkg/crypto"
)

// FeederConfig controls the devnet order generator.
type FeederConfig struct {
	Interval    time.Duration // how often a batch is pushed
	BatchSize   int
	NumAccounts int    // simulated traders
	Funding     uint64 // deposited per trader and asset before trading
	// CancelRatio is the share of generated txs that cancel an earlier order.
	CancelRatio float64
}

func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		Interval:    100 * time.Millisecond,
		BatchSize:   10,
		NumAccounts: 20,
		Funding:     1_000_000_000_000,
		CancelRatio: 0.1,
	}
}

// Feeder produces signed place and cancel transactions from a fixed set
// of funded traders. It is not safe for concurrent use.
type Feeder struct {
	cfg      FeederConfig
	verifier *transaction.Verifier
	admin    *crypto.Signer
	traders  []*crypto.Signer
	pairs    []market.Detail
	rng      *rand.Rand
	nonces   map[common.Address]uint64
	placed   map[common.Address]map[market.Pair]uint64
}

func NewFeeder(cfg FeederConfig, verifier *transaction.Verifier, admin *crypto.Signer, pairs []market.Detail, seed int64) (*Feeder, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("feeder: no pairs to trade")
	}
	if cfg.NumAccounts <= 0 {
		return nil, fmt.Errorf("feeder: need at least one account")
	}
	f := &Feeder{
		cfg:      cfg,
		verifier: verifier,
		admin:    admin,
		pairs:    pairs,
		rng:      rand.New(rand.NewSource(seed)),
		nonces:   make(map[common.Address]uint64),
		placed:   make(map[common.Address]map[market.Pair]uint64),
	}
	for i := 0; i < cfg.NumAccounts; i++ {
		s, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		f.traders = append(f.traders, s)
		f.placed[s.Address()] = make(map[market.Pair]uint64)
	}
	return f, nil
}

func (f *Feeder) Traders() []*crypto.Signer { return f.traders }

// SetNonce seeds the next nonce of a signer whose history predates the
// feeder, such as the admin on a restarted node.
func (f *Feeder) SetNonce(account common.Address, last uint64) { f.nonces[account] = last }

func (f *Feeder) sign(s *crypto.Signer, typ transaction.TxType, payload any) ([]byte, error) {
	addr := s.Address()
	f.nonces[addr]++
	tx, err := transaction.NewTransaction(typ, addr, f.nonces[addr], payload)
	if err != nil {
		return nil, err
	}
	if err := f.verifier.Sign(tx, s); err != nil {
		return nil, err
	}
	return tx.Serialize()
}

// FundingTxs returns admin deposits of cfg.Funding in every token for
// every trader.
func (f *Feeder) FundingTxs(tokens []assets.Token) ([][]byte, error) {
	var out [][]byte
	for _, t := range f.traders {
		for _, token := range tokens {
			raw, err := f.sign(f.admin, transaction.TxDeposit, transaction.DepositPayload{
				Account: t.Address().Hex(),
				Token:   string(token),
				Amount:  f.cfg.Funding,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

// Batch generates n transactions.
func (f *Feeder) Batch(n int) ([][]byte, error) {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		raw, err := f.next()
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (f *Feeder) next() ([]byte, error) {
	trader := f.traders[f.rng.Intn(len(f.traders))]
	pair := f.pairs[f.rng.Intn(len(f.pairs))].Pair

	if last := f.placed[trader.Address()][pair]; last > 0 && f.rng.Float64() < f.cfg.CancelRatio {
		return f.sign(trader, transaction.TxCancel, transaction.CancelPayload{
			Pair: pair.String(),
			Seq:  uint64(f.rng.Int63n(int64(last))) + 1,
		})
	}

	side := "buy"
	if f.rng.Intn(2) == 1 {
		side = "sell"
	}
	// Around 1000 with ±5% spread; amounts between 0.01 and 1 unit at
	// 8 decimals.
	price := uint64(950 + f.rng.Intn(101))
	amount := uint64(1_000_000 + f.rng.Int63n(99_000_000))

	f.placed[trader.Address()][pair]++
	return f.sign(trader, transaction.TxPlace, transaction.PlacePayload{
		Pair:   pair.String(),
		Side:   side,
		Amount: amount,
		Price:  price,
	})
}

// StartFeeder funds the traders and then pushes a batch every interval
// until ctx is done. The returned function stops it early.
func StartFeeder(ctx context.Context, app *App, f *Feeder, logger *zap.Logger) (context.CancelFunc, error) {
	last, err := app.Nonce(f.admin.Address())
	if err != nil {
		return nil, err
	}
	f.SetNonce(f.admin.Address(), last)

	funding, err := f.FundingTxs(app.Engine().Assets().List())
	if err != nil {
		return nil, err
	}
	for _, raw := range funding {
		app.PushTx(raw)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(f.cfg.Interval)
		defer ticker.Stop()

		start := time.Now()
		total := 0
		logger.Info("feeder started",
			zap.Int("accounts", len(f.traders)),
			zap.Int("batch", f.cfg.BatchSize),
			zap.Duration("interval", f.cfg.Interval))

		for {
			select {
			case <-feedCtx.Done():
				elapsed := time.Since(start)
				logger.Info("feeder stopped",
					zap.Int("txs", total),
					zap.Float64("tx_per_sec", float64(total)/elapsed.Seconds()))
				return
			case <-ticker.C:
				batch, err := f.Batch(f.cfg.BatchSize)
				if err != nil {
					logger.Error("feeder batch failed", zap.Error(err))
					continue
				}
				for _, raw := range batch {
					app.PushTx(raw)
				}
				total += len(batch)
			}
		}
	}()
	return cancel, nil
}
