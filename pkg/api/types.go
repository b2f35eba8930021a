package api

import "github.com/uhyunpark/hyperspot/pkg/app/core/spot"

// API response types for REST endpoints and WebSocket messages. Order,
// fill, command and ticket bodies use the engine's own JSON encoding.

// ==============================
// REST Response Types
// ==============================

// PairInfo describes a trading pair and its current prices
type PairInfo struct {
	Pair         string `json:"pair"`   // e.g., "BTC/USDT"
	First        string `json:"first"`  // traded asset
	Second       string `json:"second"` // pricing asset
	Precision    uint32 `json:"precision"`
	LastPrice    uint64 `json:"lastPrice"`
	AveragePrice uint64 `json:"averagePrice"`
	LastFill     uint64 `json:"lastFill"` // index of the newest fill, 0 if none
}

type BalanceInfo struct {
	Address  string `json:"address"`
	Token    string `json:"token"`
	Free     uint64 `json:"free"`
	Reserved uint64 `json:"reserved"`
	Total    uint64 `json:"total"`
}

type NonceInfo struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"` // last accepted; the next tx must use a larger one
}

// ConfigInfo is the engine configuration plus the reserved identities
type ConfigInfo struct {
	OrderFee           uint64 `json:"orderFee"`
	AveragePriceWindow uint64 `json:"averagePriceWindow"`
	NativeToken        string `json:"nativeToken"`
	SystemAccount      string `json:"systemAccount"`
	BurnAccount        string `json:"burnAccount"`
}

// ChainStatus is the node's view of the chain
type ChainStatus struct {
	Height      uint64 `json:"height"`
	AppHash     string `json:"appHash"`
	MempoolSize int    `json:"mempoolSize"`
}

// TxStatus is the delivery outcome of a submitted transaction
type TxStatus struct {
	Hash   string `json:"hash"`
	Status string `json:"status"` // "accepted" | "pending" | "committed" | "failed"
	Code   string `json:"code,omitempty"`
	Log    string `json:"log,omitempty"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["pair:BTC/USDT", "account:0x...", "blocks"]
}

// EventUpdate carries one engine event
type EventUpdate struct {
	Type  string     `json:"type"` // "event"
	Event spot.Event `json:"event"`
}

// BlockUpdate is broadcast after every committed block
type BlockUpdate struct {
	Type    string `json:"type"` // "block"
	Height  uint64 `json:"height"`
	AppHash string `json:"appHash"`
	Txs     int    `json:"txs"`
	Failed  int    `json:"failed"`
}
