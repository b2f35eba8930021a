package abci

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Hash is a 32-byte application state hash.
type Hash [32]byte

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(b), "0x"))
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	if len(raw) != len(h) {
		return fmt.Errorf("invalid hash length %d", len(raw))
	}
	copy(h[:], raw)
	return nil
}

// Block is what the producer hands to the application once decided.
type Block struct {
	Height  uint64
	Time    time.Time
	Payload []byte
}

type RequestPrepareProposal struct{ Height, MaxTxBytes int64 }
type ResponsePrepareProposal struct{ Txs [][]byte }
type RequestProcessProposal struct {
	Height int64
	Txs    [][]byte
}
type ResponseProcessProposal struct{ Accept bool }
type RequestFinalizeBlock struct {
	Height    int64
	Timestamp int64 // Unix seconds
	Txs       [][]byte
}

// TxResult is the outcome of one delivered transaction. Code is empty on
// success and a short reason otherwise.
type TxResult struct {
	Code string `json:"code,omitempty"`
	Log  string `json:"log,omitempty"`
}

func (r TxResult) OK() bool { return r.Code == "" }

type ResponseFinalizeBlock struct {
	Events    []string
	TxResults []TxResult
	AppHash   Hash
}

type Application interface {
	PrepareProposal(RequestPrepareProposal) ResponsePrepareProposal
	ProcessProposal(RequestProcessProposal) ResponseProcessProposal
	FinalizeBlock(RequestFinalizeBlock) ResponseFinalizeBlock
}

// DefaultMaxTxBytes bounds a block payload when none is configured.
const DefaultMaxTxBytes = 1 << 24

type Bridge struct {
	App        Application
	MaxTxBytes int64
}

// PreparePayload asks the app for the next block's transactions and joins
// them with a 0x00 delimiter.
func (b *Bridge) PreparePayload(next uint64) []byte {
	max := b.MaxTxBytes
	if max <= 0 {
		max = DefaultMaxTxBytes
	}
	resp := b.App.PrepareProposal(RequestPrepareProposal{Height: int64(next), MaxTxBytes: max})

	var payload []byte
	for _, tx := range resp.Txs {
		payload = append(payload, tx...)
		payload = append(payload, 0x00)
	}
	return payload
}

func (b *Bridge) ValidatePayload(height uint64, payload []byte) bool {
	resp := b.App.ProcessProposal(RequestProcessProposal{Height: int64(height), Txs: splitPayload(payload)})
	return resp.Accept
}

func (b *Bridge) OnCommit(committed Block) ResponseFinalizeBlock {
	return b.App.FinalizeBlock(RequestFinalizeBlock{
		Height:    int64(committed.Height),
		Timestamp: committed.Time.Unix(),
		Txs:       splitPayload(committed.Payload),
	})
}

func splitPayload(p []byte) [][]byte {
	var out [][]byte
	cur := make([]byte, 0, len(p))
	for _, b := range p {
		if b == 0x00 {
			if len(cur) > 0 {
				out = append(out, append([]byte(nil), cur...))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, b)
	}
	if len(cur) > 0 {
		out = append(out, append([]byte(nil), cur...))
	}
	return out
}
