package spot

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

// Reserved identities.
var (
	// DefaultSystemAccount collects fees that could not be charged in the
	// native token and owns the synthetic fee-buy orders.
	DefaultSystemAccount = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	// DefaultBurnAccount receives the destroyed share of every fee.
	DefaultBurnAccount = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

type Accounts struct {
	System common.Address
	Burn   common.Address
}

type Options struct {
	Store    storage.Batcher
	Assets   *assets.Registry
	Accounts Accounts // zero fields fall back to the defaults
	Sink     EventSink
	Metrics  *Metrics
	Logger   *zap.Logger
}

// Engine is the pending-order ledger of the spot exchange. Every mutating
// call runs in its own overlay and either commits completely or leaves the
// store untouched. Calls are serialized.
type Engine struct {
	mu       sync.RWMutex
	store    storage.Batcher
	assets   *assets.Registry
	accounts Accounts
	sink     EventSink
	metrics  *Metrics
	logger   *zap.Logger
	height   uint64
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("spot engine: nil store")
	}
	if opts.Assets == nil {
		return nil, fmt.Errorf("spot engine: nil asset registry")
	}
	acc := opts.Accounts
	if acc.System == (common.Address{}) {
		acc.System = DefaultSystemAccount
	}
	if acc.Burn == (common.Address{}) {
		acc.Burn = DefaultBurnAccount
	}
	if acc.System == acc.Burn {
		return nil, fmt.Errorf("spot engine: system and burn accounts must differ")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    opts.Store,
		assets:   opts.Assets,
		accounts: acc,
		sink:     opts.Sink,
		metrics:  opts.Metrics,
		logger:   logger.Named("spot"),
	}, nil
}

// SetHeight sets the block height stamped on orders, fills and events.
func (e *Engine) SetHeight(h uint64) {
	e.mu.Lock()
	e.height = h
	e.mu.Unlock()
}

func (e *Engine) Height() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.height
}

func (e *Engine) Accounts() Accounts        { return e.accounts }
func (e *Engine) Assets() *assets.Registry { return e.assets }

// SetSink replaces the event sink. Used when the sink is built after the engine.
func (e *Engine) SetSink(s EventSink) {
	e.mu.Lock()
	e.sink = s
	e.mu.Unlock()
}

type txn struct {
	*State
	e      *Engine
	height uint64
	events []Event
	after  []func()
}

func (e *Engine) newTxn(kv storage.KV) *txn {
	return &txn{State: NewState(kv), e: e, height: e.height}
}

func (tx *txn) emit(ev Event) {
	ev.Height = tx.height
	tx.events = append(tx.events, ev)
}

// onCommit defers fn until the enclosing operation commits.
func (tx *txn) onCommit(fn func()) {
	tx.after = append(tx.after, fn)
}

// nested runs fn in a child overlay of tx. A failing fn leaves tx unchanged.
func (tx *txn) nested(fn func(child *txn) error) error {
	ov := storage.NewOverlay(tx.kv)
	child := tx.e.newTxn(ov)
	child.height = tx.height
	if err := fn(child); err != nil {
		ov.Discard()
		return err
	}
	if err := ov.Commit(); err != nil {
		return err
	}
	tx.events = append(tx.events, child.events...)
	tx.after = append(tx.after, child.after...)
	return nil
}

// update runs fn atomically against the committed store.
func (e *Engine) update(op string, fn func(tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ov := storage.NewOverlay(e.store)
	tx := e.newTxn(ov)
	if err := fn(tx); err != nil {
		ov.Discard()
		e.metrics.ObserveRejection(op, err)
		e.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
		return err
	}
	if err := ov.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	for _, fn := range tx.after {
		fn()
	}
	if e.sink != nil && len(tx.events) > 0 {
		e.sink.Publish(tx.events)
	}
	return nil
}

// view runs fn against the committed store.
func (e *Engine) view(fn func(s *State) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(NewState(e.store))
}
