package node

import (
	"time"

	"github.com/uhyunpark/hyperspot/pkg/abci"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

// Header records a produced block. Payloads are not kept.
type Header struct {
	Height  uint64    `json:"height"`
	Time    time.Time `json:"time"`
	Parent  abci.Hash `json:"parent"`
	AppHash abci.Hash `json:"app_hash"`
	Txs     int       `json:"txs"`
	Failed  int       `json:"failed"`
}

var lastBlockKey = []byte("blk:last")

func blockKey(height uint64) []byte { return storage.Key("blk:", storage.Seq(height)) }

// BlockStore keeps block headers next to the application state so a
// restarted node resumes at the right height.
type BlockStore struct {
	kv storage.Batcher
}

func NewBlockStore(kv storage.Batcher) *BlockStore { return &BlockStore{kv: kv} }

// Save writes h and moves the tip to it in one batch.
func (s *BlockStore) Save(h Header) error {
	ov := storage.NewOverlay(s.kv)
	if err := storage.PutJSON(ov, blockKey(h.Height), h); err != nil {
		return err
	}
	if err := storage.PutUint64(ov, lastBlockKey, h.Height); err != nil {
		return err
	}
	return ov.Commit()
}

func (s *BlockStore) Get(height uint64) (Header, bool, error) {
	var h Header
	found, err := storage.GetJSON(s.kv, blockKey(height), &h)
	return h, found, err
}

// Last returns the tip, or false before the first block.
func (s *BlockStore) Last() (Header, bool, error) {
	height, err := storage.GetUint64(s.kv, lastBlockKey)
	if err != nil || height == 0 {
		return Header{}, false, err
	}
	return s.Get(height)
}
