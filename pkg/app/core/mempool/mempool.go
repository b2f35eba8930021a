package mempool

import (
	"encoding/json"
	"sync"
)

// TxType is the proposal bucket a transaction lands in.
type TxType int

const (
	TxNonOrder TxType = iota
	TxCancel
	TxOrder
)

// ClassifyRaw buckets a raw transaction by its envelope type:
//
//	fill, deposit, admin updates -> TxNonOrder
//	cancel                       -> TxCancel
//	place and anything else      -> TxOrder
//
// Malformed bytes go to the order bucket; the app rejects them on delivery.
func ClassifyRaw(b []byte) TxType {
	if len(b) == 0 || b[0] != '{' {
		return TxOrder
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return TxOrder
	}

	switch envelope.Type {
	case "fill", "deposit", "add_pair", "set_order_fee", "set_average_price_window", "register_channel":
		return TxNonOrder
	case "cancel":
		return TxCancel
	default:
		return TxOrder
	}
}

// Mempool keeps three FIFO queues drained in order: non-order, cancel,
// then place. Fills therefore settle before cancels can pull the
// liquidity they were matched against.
type Mempool struct {
	mu       sync.Mutex
	nonOrder [][]byte
	cancel   [][]byte
	orders   [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a copy of b.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ClassifyRaw(b) {
	case TxNonOrder:
		m.nonOrder = append(m.nonOrder, cp)
	case TxCancel:
		m.cancel = append(m.cancel, cp)
	default:
		m.orders = append(m.orders, cp)
	}
}

// SelectForProposal removes and returns up to maxBytes of transactions.
// A non-positive maxBytes takes everything.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64
	full := false

	pull := func(q *[][]byte) {
		for !full && len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				full = true
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	pull(&m.nonOrder)
	pull(&m.cancel)
	pull(&m.orders)

	return out
}

func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nonOrder) + len(m.cancel) + len(m.orders)
}
