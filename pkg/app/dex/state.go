package dex

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperspot/pkg/abci"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

// nonceTable keeps the last accepted nonce per sender. Nonces must strictly
// increase but may skip values.
type nonceTable struct {
	kv storage.KV
}

func nonceKey(account common.Address) []byte { return storage.Key("nonce:", account.Hex()) }

func (t *nonceTable) get(account common.Address) (uint64, error) {
	return storage.GetUint64(t.kv, nonceKey(account))
}

func (t *nonceTable) consume(account common.Address, nonce uint64) error {
	last, err := t.get(account)
	if err != nil {
		return err
	}
	if nonce <= last {
		return fmt.Errorf("%w: got %d, last %d", ErrStaleNonce, nonce, last)
	}
	return storage.PutUint64(t.kv, nonceKey(account), nonce)
}

const defaultResultLogSize = 100_000

// resultLog remembers the outcome of the most recent transactions so that
// clients can poll for them by hash.
type resultLog struct {
	mu    sync.RWMutex
	limit int
	order []common.Hash
	byTx  map[common.Hash]abci.TxResult
}

func newResultLog(limit int) *resultLog {
	return &resultLog{limit: limit, byTx: make(map[common.Hash]abci.TxResult)}
}

func (l *resultLog) add(h common.Hash, r abci.TxResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byTx[h]; !ok {
		l.order = append(l.order, h)
	}
	l.byTx[h] = r
	for len(l.order) > l.limit {
		delete(l.byTx, l.order[0])
		l.order = l.order[1:]
	}
}

func (l *resultLog) get(h common.Hash) (abci.TxResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byTx[h]
	return r, ok
}

// stateHash commits to the height, the block time and every key in the
// store in ascending order. Keys and values are length-prefixed.
func stateHash(store storage.Iterable, height, timestamp int64) (abci.Hash, error) {
	h := ethCrypto.NewKeccakState()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(timestamp))
	h.Write(buf[:])

	err := store.Iterate(nil, func(k, v []byte) error {
		binary.BigEndian.PutUint64(buf[:], uint64(len(k)))
		h.Write(buf[:])
		h.Write(k)
		binary.BigEndian.PutUint64(buf[:], uint64(len(v)))
		h.Write(buf[:])
		h.Write(v)
		return nil
	})

	var out abci.Hash
	copy(out[:], h.Sum(nil))
	return out, err
}
