package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/abci"
	"github.com/uhyunpark/hyperspot/pkg/util"
)

var ErrPayloadRejected = errors.New("payload rejected by application")

// Chain is the application side of block production.
type Chain interface {
	PreparePayload(next uint64) []byte
	ValidatePayload(height uint64, payload []byte) bool
	OnCommit(committed abci.Block) abci.ResponseFinalizeBlock
}

// Producer drives a single-node chain: at most one block per MinBlockTime,
// each one proposed, validated and committed locally.
type Producer struct {
	chain        Chain
	blocks       *BlockStore
	clock        util.Clock
	minBlockTime time.Duration
	logger       *zap.SugaredLogger

	// OnCommit runs after every stored block.
	OnCommit func(Header)
	// LogEvery throttles progress logs to one per N blocks.
	LogEvery uint64

	tip Header
}

func NewProducer(chain Chain, blocks *BlockStore, clock util.Clock, minBlockTime time.Duration, logger *zap.Logger) (*Producer, error) {
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tip, _, err := blocks.Last()
	if err != nil {
		return nil, fmt.Errorf("load chain tip: %w", err)
	}
	return &Producer{
		chain:        chain,
		blocks:       blocks,
		clock:        clock,
		minBlockTime: minBlockTime,
		logger:       logger.Named("producer").Sugar(),
		LogEvery:     100,
		tip:          tip,
	}, nil
}

// Tip is the last produced block. Its height is 0 before the first one.
func (p *Producer) Tip() Header { return p.tip }

// Step produces one block.
func (p *Producer) Step() (Header, error) {
	next := p.tip.Height + 1
	payload := p.chain.PreparePayload(next)
	if !p.chain.ValidatePayload(next, payload) {
		return Header{}, fmt.Errorf("height %d: %w", next, ErrPayloadRejected)
	}

	blk := abci.Block{Height: next, Time: p.clock.Now().UTC(), Payload: payload}
	resp := p.chain.OnCommit(blk)

	h := Header{
		Height:  next,
		Time:    blk.Time,
		Parent:  p.tip.AppHash,
		AppHash: resp.AppHash,
		Txs:     len(resp.TxResults),
	}
	for _, r := range resp.TxResults {
		if !r.OK() {
			h.Failed++
		}
	}
	if err := p.blocks.Save(h); err != nil {
		return Header{}, fmt.Errorf("save block %d: %w", next, err)
	}
	p.tip = h

	if p.OnCommit != nil {
		p.OnCommit(h)
	}
	if h.Height <= 5 || (p.LogEvery > 0 && h.Height%p.LogEvery == 0) {
		p.logger.Infow("block_committed",
			"height", h.Height,
			"txs", h.Txs,
			"failed", h.Failed,
			"app_hash", h.AppHash.String())
	}
	return h, nil
}

// Run produces blocks until ctx is done. A rejected payload is dropped
// and the height is retried next round.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Infow("producer_starting",
		"height", p.tip.Height,
		"min_block_time_ms", p.minBlockTime.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := p.Step(); err != nil {
			if !errors.Is(err, ErrPayloadRejected) {
				return err
			}
			p.logger.Warnw("payload_rejected", "height", p.tip.Height+1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(p.minBlockTime):
		}
	}
}
