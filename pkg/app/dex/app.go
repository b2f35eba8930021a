package dex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/abci"
	"github.com/uhyunpark/hyperspot/pkg/app/core/mempool"
	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
	"github.com/uhyunpark/hyperspot/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

type Options struct {
	Engine   *spot.Engine
	Store    storage.Batcher // the engine's committed store
	Verifier *transaction.Verifier
	Admin    common.Address
	Matcher  common.Address
	// Commands receives the drained outbox at the end of every block.
	Commands CommandHandler
	Logger   *zap.Logger
}

// App is the block application of the spot exchange. It decodes and
// authenticates transactions and drives the spot engine; all settlement
// rules live in the engine.
type App struct {
	mu       sync.Mutex
	engine   *spot.Engine
	store    storage.Batcher
	mempool  *mempool.Mempool
	verifier *transaction.Verifier
	admin    common.Address
	matcher  common.Address
	commands CommandHandler
	logger   *zap.Logger

	nonces   *nonceTable
	results  *resultLog
	height   uint64
	lastHash abci.Hash
}

func NewApp(opts Options) (*App, error) {
	if opts.Engine == nil || opts.Store == nil {
		return nil, fmt.Errorf("dex app: engine and store are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("dex")
	verifier := opts.Verifier
	if verifier == nil {
		verifier = transaction.NewVerifier("")
	}
	commands := opts.Commands
	if commands == nil {
		commands = LogCommands{Logger: logger}
	}
	return &App{
		engine:   opts.Engine,
		store:    opts.Store,
		mempool:  mempool.NewMempool(),
		verifier: verifier,
		admin:    opts.Admin,
		matcher:  opts.Matcher,
		commands: commands,
		logger:   logger,
		nonces:   &nonceTable{kv: opts.Store},
		results:  newResultLog(defaultResultLogSize),
	}, nil
}

func (a *App) Engine() *spot.Engine { return a.engine }

// PushTx enqueues raw bytes without checking them.
func (a *App) PushTx(b []byte) { a.mempool.PushRaw(b) }

// CheckTx validates the envelope and signature and enqueues the
// transaction. It returns the hash results are later recorded under.
func (a *App) CheckTx(b []byte) (common.Hash, error) {
	tx, err := transaction.ParseTransaction(b)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	if _, err := a.verifier.Verify(tx); err != nil {
		return common.Hash{}, err
	}
	a.mempool.PushRaw(b)
	return TxHash(b), nil
}

func (a *App) MempoolSize() int { return a.mempool.Len() }

// TxHash identifies a raw transaction.
func TxHash(b []byte) common.Hash { return ethCrypto.Keccak256Hash(b) }

// Result returns the delivery outcome of a recent transaction.
func (a *App) Result(h common.Hash) (abci.TxResult, bool) {
	return a.results.get(h)
}

func (a *App) Nonce(account common.Address) (uint64, error) {
	return a.nonces.get(account)
}

// Status reports the last finalized height and app hash.
func (a *App) Status() (uint64, abci.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.height, a.lastHash
}

// PrepareProposal takes the next batch from the mempool, leaving out
// bytes that do not decode as transactions. The mempool's bucket order is
// kept, except that each sender's transactions are delivered in nonce order.
func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	selected := a.mempool.SelectForProposal(req.MaxTxBytes)
	txs := make([]pendingTx, 0, len(selected))
	for _, raw := range selected {
		tx, err := transaction.ParseTransaction(raw)
		if err != nil {
			a.logger.Debug("dropping undecodable tx", zap.Int64("height", req.Height), zap.Error(err))
			continue
		}
		txs = append(txs, pendingTx{raw: raw, from: tx.Sender(), nonce: tx.Nonce})
	}
	return abci.ResponsePrepareProposal{Txs: orderByNonce(txs)}
}

type pendingTx struct {
	raw   []byte
	from  common.Address
	nonce uint64
}

// orderByNonce sorts every sender's transactions by nonce within the slots
// that sender already occupies. Without it a cancel, which the mempool
// schedules ahead of places, would burn the nonce of an earlier place.
func orderByNonce(txs []pendingTx) [][]byte {
	slots := make(map[common.Address][]int)
	for i, tx := range txs {
		slots[tx.from] = append(slots[tx.from], i)
	}
	out := make([][]byte, len(txs))
	for _, idx := range slots {
		mine := make([]pendingTx, len(idx))
		for j, i := range idx {
			mine[j] = txs[i]
		}
		sort.SliceStable(mine, func(x, y int) bool { return mine[x].nonce < mine[y].nonce })
		for j, i := range idx {
			out[i] = mine[j].raw
		}
	}
	return out
}

// ProcessProposal rejects blocks carrying bytes that are not transactions
// at all. Signature and state checks happen on delivery.
func (a *App) ProcessProposal(req abci.RequestProcessProposal) abci.ResponseProcessProposal {
	for _, raw := range req.Txs {
		if _, err := transaction.ParseTransaction(raw); err != nil {
			a.logger.Warn("proposal rejected", zap.Int64("height", req.Height), zap.Error(err))
			return abci.ResponseProcessProposal{Accept: false}
		}
	}
	return abci.ResponseProcessProposal{Accept: true}
}

// FinalizeBlock delivers the block's transactions in order, converts the
// fees collected during the block, hands the outbox to the matcher and
// computes the app hash.
func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	a.mu.Lock()
	defer a.mu.Unlock()

	height := uint64(req.Height)
	a.engine.SetHeight(height)

	results := make([]abci.TxResult, 0, len(req.Txs))
	failed := 0
	for _, raw := range req.Txs {
		res := a.deliver(raw)
		if !res.OK() {
			failed++
		}
		results = append(results, res)
		a.results.add(TxHash(raw), res)
	}

	placed, err := a.engine.ReplayFeeBuyTickets()
	if err != nil {
		a.logger.Error("fee-buy replay failed", zap.Uint64("height", height), zap.Error(err))
	}

	cmds, err := a.engine.DrainCommands()
	if err != nil {
		a.logger.Error("drain outbox failed", zap.Uint64("height", height), zap.Error(err))
	} else if len(cmds) > 0 {
		a.commands.HandleCommands(height, cmds)
	}

	appHash, err := stateHash(a.store, req.Height, req.Timestamp)
	if err != nil {
		a.logger.Error("state hash failed", zap.Uint64("height", height), zap.Error(err))
	}
	a.height = height
	a.lastHash = appHash

	if len(req.Txs) > 0 || placed > 0 {
		a.logger.Info("block finalized",
			zap.Uint64("height", height),
			zap.Int("txs", len(req.Txs)),
			zap.Int("failed", failed),
			zap.Int("fee_buy_orders", placed),
			zap.Int("commands", len(cmds)),
			zap.Stringer("app_hash", appHash))
	}

	return abci.ResponseFinalizeBlock{
		Events:    []string{"commit"},
		TxResults: results,
		AppHash:   appHash,
	}
}

var _ abci.Application = (*App)(nil)
