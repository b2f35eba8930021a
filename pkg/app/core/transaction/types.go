package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TxType is the envelope discriminator.
type TxType string

const (
	TxPlace  TxType = "place"
	TxCancel TxType = "cancel"
	// Sent by the matcher.
	TxFill TxType = "fill"
	// Admin only.
	TxDeposit               TxType = "deposit"
	TxAddPair               TxType = "add_pair"
	TxSetOrderFee           TxType = "set_order_fee"
	TxSetAveragePriceWindow TxType = "set_average_price_window"
	TxRegisterChannel       TxType = "register_channel"
)

// SignedTransaction is the wire format accepted by the node:
//
//	{"type":"place","from":"0x..","nonce":3,"payload":{...},"signature":"0x.."}
//
// The signature covers type, from, nonce and the payload bytes as sent.
type SignedTransaction struct {
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

type PlacePayload struct {
	Pair    string `json:"pair"` // "BTC/PCX"
	Side    string `json:"side"` // "buy" | "sell"
	Amount  uint64 `json:"amount"`
	Price   uint64 `json:"price"`
	Channel string `json:"channel,omitempty"`
}

// CancelPayload names the order to cancel. Account defaults to the sender.
type CancelPayload struct {
	Account string `json:"account,omitempty"`
	Pair    string `json:"pair"`
	Seq     uint64 `json:"seq"`
}

type FillPayload struct {
	Pair     string `json:"pair"`
	Maker    string `json:"maker"`
	MakerSeq uint64 `json:"maker_seq"`
	Taker    string `json:"taker"`
	TakerSeq uint64 `json:"taker_seq"`
	Price    uint64 `json:"price"`
	Amount   uint64 `json:"amount"`
	MakerFee uint64 `json:"maker_fee"`
	TakerFee uint64 `json:"taker_fee"`
}

type DepositPayload struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  uint64 `json:"amount"`
}

type AddPairPayload struct {
	Pair      string `json:"pair"`
	Precision uint32 `json:"precision"`
}

// ValuePayload carries set_order_fee and set_average_price_window.
type ValuePayload struct {
	Value uint64 `json:"value"`
}

type RegisterChannelPayload struct {
	Name    string `json:"name"`
	Account string `json:"account"`
}

// NewTransaction builds an unsigned transaction around payload.
func NewTransaction(typ TxType, from common.Address, nonce uint64, payload any) (*SignedTransaction, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &SignedTransaction{Type: typ, From: from.Hex(), Nonce: nonce, Payload: body}, nil
}

func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Sender is the claimed origin; Verify checks it against the signature.
func (tx *SignedTransaction) Sender() common.Address {
	return common.HexToAddress(tx.From)
}

// DecodePayload unmarshals the payload into v.
func (tx *SignedTransaction) DecodePayload(v any) error {
	if err := json.Unmarshal(tx.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", tx.Type, err)
	}
	return nil
}

func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Validate checks the envelope structure, not the signature.
func (tx *SignedTransaction) Validate() error {
	switch tx.Type {
	case TxPlace, TxCancel, TxFill, TxDeposit, TxAddPair,
		TxSetOrderFee, TxSetAveragePriceWindow, TxRegisterChannel:
	case "":
		return fmt.Errorf("missing transaction type")
	default:
		return fmt.Errorf("unknown transaction type: %s", tx.Type)
	}
	if !common.IsHexAddress(tx.From) {
		return fmt.Errorf("invalid sender %q", tx.From)
	}
	if len(tx.Payload) == 0 {
		return fmt.Errorf("missing payload")
	}
	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	return nil
}

// ParseTransaction deserializes and validates raw bytes.
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	tx, err := Deserialize(data)
	if err != nil {
		return nil, err
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}
