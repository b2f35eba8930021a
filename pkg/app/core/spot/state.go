package spot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/channel"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

// State groups every table the engine touches, all bound to one KV.
// Binding State to an overlay gives an operation its own scratch copy of
// the ledger that is either committed or dropped as a whole.
type State struct {
	kv storage.KV

	Ledger   *assets.Ledger
	Pairs    *market.Registry
	Channels *channel.Directory
	Orders   *OrderTable
	Fills    *FillTable
	Outbox   Outbox
	Tickets  *TicketQueue
	Prices   *PriceTable
	Config   *ConfigTable
}

func NewState(kv storage.KV) *State {
	return &State{
		kv:       kv,
		Ledger:   assets.NewLedger(kv),
		Pairs:    market.NewRegistry(kv),
		Channels: channel.NewDirectory(kv),
		Orders:   &OrderTable{kv: kv},
		Fills:    &FillTable{kv: kv},
		Outbox:   NewKVOutbox(kv),
		Tickets:  &TicketQueue{kv: kv},
		Prices:   &PriceTable{kv: kv},
		Config:   &ConfigTable{kv: kv},
	}
}

// ---- orders ----

type OrderTable struct {
	kv storage.KV
}

func orderKey(id OrderID) []byte {
	return storage.Key("ord:", id.Account.Hex(), id.Pair.String(), storage.Seq(id.Seq))
}

func orderSeqKey(account common.Address, pair market.Pair) []byte {
	return storage.Key("ordseq:", account.Hex(), pair.String())
}

func (t *OrderTable) Get(id OrderID) (*Order, error) {
	var o Order
	found, err := storage.GetJSON(t.kv, orderKey(id), &o)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return &o, nil
}

func (t *OrderTable) Put(o *Order) error {
	return storage.PutJSON(t.kv, orderKey(o.ID()), o)
}

func (t *OrderTable) LastSeq(account common.Address, pair market.Pair) (uint64, error) {
	return storage.GetUint64(t.kv, orderSeqKey(account, pair))
}

// NextSeq allocates the next per-(account, pair) sequence.
func (t *OrderTable) NextSeq(account common.Address, pair market.Pair) (uint64, error) {
	last, err := t.LastSeq(account, pair)
	if err != nil {
		return 0, err
	}
	next, err := addChecked(last, 1)
	if err != nil {
		return 0, err
	}
	return next, storage.PutUint64(t.kv, orderSeqKey(account, pair), next)
}

// List returns every order of account on pair, newest first.
func (t *OrderTable) List(account common.Address, pair market.Pair) ([]*Order, error) {
	last, err := t.LastSeq(account, pair)
	if err != nil {
		return nil, err
	}
	out := make([]*Order, 0, last)
	for seq := last; seq > 0; seq-- {
		o, err := t.Get(OrderID{Account: account, Pair: pair, Seq: seq})
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// ---- fills ----

type FillTable struct {
	kv storage.KV
}

func fillKey(pair market.Pair, idx uint64) []byte {
	return storage.Key("fill:", pair.String(), storage.Seq(idx))
}

func fillIndexKey(pair market.Pair) []byte { return storage.Key("fillidx:", pair.String()) }

func (t *FillTable) LastIndex(pair market.Pair) (uint64, error) {
	return storage.GetUint64(t.kv, fillIndexKey(pair))
}

// Append assigns f the next per-pair index and stores it.
func (t *FillTable) Append(f *Fill) (uint64, error) {
	last, err := t.LastIndex(f.Pair)
	if err != nil {
		return 0, err
	}
	idx, err := addChecked(last, 1)
	if err != nil {
		return 0, err
	}
	f.Index = idx
	if err := storage.PutJSON(t.kv, fillKey(f.Pair, idx), f); err != nil {
		return 0, err
	}
	return idx, storage.PutUint64(t.kv, fillIndexKey(f.Pair), idx)
}

func (t *FillTable) Get(pair market.Pair, idx uint64) (*Fill, bool, error) {
	var f Fill
	found, err := storage.GetJSON(t.kv, fillKey(pair, idx), &f)
	if err != nil || !found {
		return nil, false, err
	}
	return &f, true, nil
}

// Page returns up to limit fills starting at index from (1-based), oldest first.
func (t *FillTable) Page(pair market.Pair, from uint64, limit int) ([]*Fill, error) {
	last, err := t.LastIndex(pair)
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	var out []*Fill
	for idx := from; idx <= last && len(out) < limit; idx++ {
		f, ok, err := t.Get(pair, idx)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// ---- fee-buy tickets ----

var ticketMaxKey = []byte("fbt:max")

func ticketKey(id uint64) []byte { return storage.Key("fbt:", storage.Seq(id)) }

type TicketQueue struct {
	kv storage.KV
}

func (q *TicketQueue) Push(t *FeeBuyTicket) (uint64, error) {
	last, err := storage.GetUint64(q.kv, ticketMaxKey)
	if err != nil {
		return 0, err
	}
	id, err := addChecked(last, 1)
	if err != nil {
		return 0, err
	}
	t.ID = id
	if err := storage.PutJSON(q.kv, ticketKey(id), t); err != nil {
		return 0, err
	}
	return id, storage.PutUint64(q.kv, ticketMaxKey, id)
}

func (q *TicketQueue) List() ([]*FeeBuyTicket, error) {
	last, err := storage.GetUint64(q.kv, ticketMaxKey)
	if err != nil {
		return nil, err
	}
	var out []*FeeBuyTicket
	for id := uint64(1); id <= last; id++ {
		var t FeeBuyTicket
		found, err := storage.GetJSON(q.kv, ticketKey(id), &t)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, &t)
		}
	}
	return out, nil
}

// Clear removes every ticket and restarts ids at 1.
func (q *TicketQueue) Clear() error {
	last, err := storage.GetUint64(q.kv, ticketMaxKey)
	if err != nil {
		return err
	}
	for id := uint64(1); id <= last; id++ {
		if err := q.kv.Delete(ticketKey(id)); err != nil {
			return err
		}
	}
	return q.kv.Delete(ticketMaxKey)
}

// ---- prices ----

type PriceTable struct {
	kv storage.KV
}

func lastPriceKey(pair market.Pair) []byte    { return storage.Key("px:last:", pair.String()) }
func averagePriceKey(pair market.Pair) []byte { return storage.Key("px:avg:", pair.String()) }
func nativePriceKey(token assets.Token) []byte {
	return storage.Key("px:native:", string(token))
}

func (t *PriceTable) Get(pair market.Pair) (PriceState, error) {
	last, err := storage.GetUint64(t.kv, lastPriceKey(pair))
	if err != nil {
		return PriceState{}, err
	}
	avg, err := storage.GetUint64(t.kv, averagePriceKey(pair))
	if err != nil {
		return PriceState{}, err
	}
	return PriceState{Last: last, Average: avg}, nil
}

func (t *PriceTable) Put(pair market.Pair, st PriceState) error {
	if err := storage.PutUint64(t.kv, lastPriceKey(pair), st.Last); err != nil {
		return err
	}
	return storage.PutUint64(t.kv, averagePriceKey(pair), st.Average)
}

// NativePrice is the reference price of token in native units, published
// from the (native, token) pair's rolling average. Zero means unknown.
func (t *PriceTable) NativePrice(token assets.Token) (uint64, error) {
	return storage.GetUint64(t.kv, nativePriceKey(token))
}

func (t *PriceTable) SetNativePrice(token assets.Token, price uint64) error {
	return storage.PutUint64(t.kv, nativePriceKey(token), price)
}

// ---- config ----

var configKey = []byte("cfg:engine")

type ConfigTable struct {
	kv storage.KV
}

func (t *ConfigTable) Get() (Config, error) {
	var c Config
	_, err := storage.GetJSON(t.kv, configKey, &c)
	return c, err
}

func (t *ConfigTable) Put(c Config) error {
	return storage.PutJSON(t.kv, configKey, c)
}
