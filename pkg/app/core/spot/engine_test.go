package spot

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

const (
	pcx assets.Token = "PCX" // native, precision 8
	btc assets.Token = "BTC" // precision 1
	usd assets.Token = "USD" // precision 2
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")

	btcPcx = market.NewPair(btc, pcx)
	pcxBtc = market.NewPair(pcx, btc)
	btcUsd = market.NewPair(btc, usd)
)

type harness struct {
	*Engine
	store   *storage.MemStore
	metrics *Metrics
	events  []Event
}

func newHarness(t *testing.T, pairs ...market.Pair) *harness {
	t.Helper()

	reg, err := assets.NewRegistry(pcx, 8)
	require.NoError(t, err)
	require.NoError(t, reg.Register(btc, 1))
	require.NoError(t, reg.Register(usd, 2))

	h := &harness{
		store:   storage.NewMemStore(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	e, err := NewEngine(Options{
		Store:   h.store,
		Assets:  reg,
		Metrics: h.metrics,
		Logger:  zaptest.NewLogger(t),
		Sink:    EventSinkFunc(func(evs []Event) { h.events = append(h.events, evs...) }),
	})
	require.NoError(t, err)
	h.Engine = e

	for _, p := range pairs {
		added, err := e.AddPair(p, 2)
		require.NoError(t, err)
		require.True(t, added)
	}
	require.NoError(t, e.SetAveragePriceWindow(10))
	h.events = nil
	return h
}

func (h *harness) deposit(t *testing.T, account common.Address, token assets.Token, amount uint64) {
	t.Helper()
	require.NoError(t, h.Deposit(account, token, amount))
}

func (h *harness) balance(t *testing.T, account common.Address, token assets.Token) assets.Balance {
	t.Helper()
	b, err := h.Balance(account, token)
	require.NoError(t, err)
	return b
}

func (h *harness) order(t *testing.T, id OrderID) *Order {
	t.Helper()
	o, err := h.Order(id)
	require.NoError(t, err)
	return o
}

func (h *harness) snapshot(t *testing.T) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := h.store.Iterate(nil, func(k, v []byte) error {
		out[string(k)] = string(v)
		return nil
	})
	require.NoError(t, err)
	return out
}

func (h *harness) eventKinds() []EventKind {
	kinds := make([]EventKind, len(h.events))
	for i, ev := range h.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func TestNewEngine(t *testing.T) {
	reg, err := assets.NewRegistry(pcx, 8)
	require.NoError(t, err)

	_, err = NewEngine(Options{Assets: reg})
	assert.Error(t, err)

	_, err = NewEngine(Options{
		Store:    storage.NewMemStore(),
		Assets:   reg,
		Accounts: Accounts{System: alice, Burn: alice},
	})
	assert.Error(t, err)

	e, err := NewEngine(Options{Store: storage.NewMemStore(), Assets: reg})
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemAccount, e.Accounts().System)
	assert.Equal(t, DefaultBurnAccount, e.Accounts().Burn)
}

func TestPlaceAndCancelBuy(t *testing.T) {
	h := newHarness(t, btcPcx)
	h.deposit(t, alice, pcx, 1000)
	h.SetHeight(7)

	id, err := h.PlaceOrder(alice, btcPcx, Buy, 100, 20, "")
	require.NoError(t, err)
	assert.Equal(t, OrderID{Account: alice, Pair: btcPcx, Seq: 1}, id)

	// 100 BTC at 20 with BTC precision 1 costs 200 PCX.
	assert.Equal(t, assets.Balance{Free: 800, Reserved: 200}, h.balance(t, alice, pcx))
	o := h.order(t, id)
	assert.Equal(t, FillNone, o.Status)
	assert.Equal(t, uint64(200), o.ReservedRemaining)
	assert.Equal(t, uint64(7), o.CreatedAt)

	require.NoError(t, h.CancelOrder(alice, id))
	assert.Equal(t, assets.Balance{Free: 1000}, h.balance(t, alice, pcx))
	o = h.order(t, id)
	assert.Equal(t, Cancelled, o.Status)
	assert.Zero(t, o.ReservedRemaining)

	assert.Equal(t, []EventKind{
		EventOrderPlaced, EventOrderUpdated,
		EventOrderUpdated, EventOrderCancelled,
	}, h.eventKinds())

	cmds, err := h.PendingCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, CommandMatch, cmds[0].Kind)
	assert.Equal(t, CommandCancel, cmds[1].Kind)
	assert.Equal(t, uint64(1), cmds[1].Seq)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OrdersPlaced.WithLabelValues("BTC/PCX", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OrdersCancelled.WithLabelValues("BTC/PCX")))
}

func TestPlaceSellReservesFirstToken(t *testing.T) {
	h := newHarness(t, btcPcx)
	h.deposit(t, alice, btc, 80)

	id, err := h.PlaceOrder(alice, btcPcx, Sell, 50, 20, "")
	require.NoError(t, err)
	assert.Equal(t, assets.Balance{Free: 30, Reserved: 50}, h.balance(t, alice, btc))
	assert.Equal(t, uint64(50), h.order(t, id).ReservedRemaining)

	id2, err := h.PlaceOrder(alice, btcPcx, Sell, 30, 20, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id2.Seq)

	list, err := h.OrderList(alice, btcPcx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(2), list[0].Seq)
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t, btcPcx)
	h.deposit(t, alice, pcx, 1000)

	tests := []struct {
		name    string
		pair    market.Pair
		amount  uint64
		price   uint64
		channel string
		want    error
	}{
		{"unknown pair", btcUsd, 10, 10, "", ErrUnknownPair},
		{"zero amount", btcPcx, 0, 10, "", ErrZeroAmount},
		{"zero price", btcPcx, 10, 0, "", ErrZeroPrice},
		{"long channel", btcPcx, 10, 10, strings.Repeat("c", 33), ErrChannelTooLong},
		{"dust", btcPcx, 1, 1, "", ErrAmountTooSmall},
		{"insufficient", btcPcx, 1000, 20, "", ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.snapshot(t)
			_, err := h.PlaceOrder(alice, tt.pair, Buy, tt.amount, tt.price, tt.channel)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, h.snapshot(t))
		})
	}
	assert.Empty(t, h.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Rejections.WithLabelValues("place_order", "insufficient_balance")))
}

func TestCancelOrderErrors(t *testing.T) {
	h := newHarness(t, btcPcx)
	h.deposit(t, alice, pcx, 1000)
	id, err := h.PlaceOrder(alice, btcPcx, Buy, 10, 20, "")
	require.NoError(t, err)

	err = h.CancelOrder(alice, OrderID{Account: alice, Pair: btcPcx, Seq: 9})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	err = h.CancelOrder(bob, id)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, h.CancelOrder(alice, id))
	err = h.CancelOrder(alice, id)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
	assert.Equal(t, assets.Balance{Free: 1000}, h.balance(t, alice, pcx))
}

func TestAdminOperations(t *testing.T) {
	h := newHarness(t)

	added, err := h.AddPair(btcPcx, 2)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = h.AddPair(btcPcx, 4)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = h.AddPair(market.NewPair("ETH", pcx), 2)
	assert.ErrorIs(t, err, ErrUnknownAsset)

	require.NoError(t, h.SetOrderFee(30))
	cfg, err := h.Config()
	require.NoError(t, err)
	assert.Equal(t, Config{OrderFee: 30, AveragePriceWindow: 10}, cfg)

	pairs, err := h.Pairs()
	require.NoError(t, err)
	assert.Equal(t, []market.Detail{{Pair: btcPcx, Precision: 2}}, pairs)

	assert.Equal(t, []EventKind{EventPairAdded, EventFeeUpdated}, h.eventKinds())

	assert.ErrorIs(t, h.Deposit(alice, "ETH", 1), ErrUnknownAsset)
}

func TestInitGenesis(t *testing.T) {
	h := newHarness(t)

	bad := Genesis{
		Pairs:    []GenesisPair{{Pair: btcPcx, Precision: 2}},
		Balances: []GenesisBalance{{Account: alice, Token: "ETH", Amount: 5}},
	}
	before := h.snapshot(t)
	assert.ErrorIs(t, h.InitGenesis(bad), ErrUnknownAsset)
	assert.Equal(t, before, h.snapshot(t))

	g := Genesis{
		Config:   Config{OrderFee: 10, AveragePriceWindow: 5},
		Pairs:    []GenesisPair{{Pair: btcPcx, Precision: 2}, {Pair: pcxBtc, Precision: 4}},
		Channels: []GenesisChannel{{Name: "alpha", Account: carol}},
		Balances: []GenesisBalance{{Account: alice, Token: pcx, Amount: 500}},
	}
	require.NoError(t, h.InitGenesis(g))

	cfg, err := h.Config()
	require.NoError(t, err)
	assert.Equal(t, g.Config, cfg)
	pairs, err := h.Pairs()
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
	assert.Equal(t, assets.Balance{Free: 500}, h.balance(t, alice, pcx))
}

func TestOutboxDrainAndUpdate(t *testing.T) {
	h := newHarness(t, btcPcx)
	h.deposit(t, alice, pcx, 1000)
	id, err := h.PlaceOrder(alice, btcPcx, Buy, 10, 20, "")
	require.NoError(t, err)
	require.NoError(t, h.CancelOrder(alice, id))

	require.NoError(t, h.UpdateCommandPayload(1, []byte("book:3")))
	assert.ErrorIs(t, h.UpdateCommandPayload(9, nil), ErrCommandNotFound)

	cmds, err := h.DrainCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, uint64(1), cmds[0].ID)
	assert.Equal(t, []byte("book:3"), cmds[0].Payload)
	assert.Equal(t, uint64(2), cmds[1].ID)

	pending, err := h.PendingCommands()
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = h.PlaceOrder(alice, btcPcx, Buy, 10, 20, "")
	require.NoError(t, err)
	pending, err = h.PendingCommands()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(1), pending[0].ID)
}
