package spot

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
)

// queueBTCFee leaves a 10 BTC-unit fee with the system account by settling
// a BTC/USD trade whose buyer holds too little PCX to pay in native.
func (h *harness) queueBTCFee(t *testing.T) {
	t.Helper()
	h.deposit(t, alice, btc, 50)
	h.deposit(t, bob, usd, 100)
	h.deposit(t, bob, pcx, 1)

	sell := h.place(t, alice, btcUsd, Sell, 50, 20, "")
	buy := h.place(t, bob, btcUsd, Buy, 50, 20, "")
	req := match(sell, buy, 20, 50)
	req.TakerFee = 10
	_, err := h.FillOrder(req)
	require.NoError(t, err)
}

func TestReplayPlacesSystemBuyOrder(t *testing.T) {
	h := newHarness(t, btcUsd, pcxBtc)
	h.seedNativePrice(t)
	h.queueBTCFee(t)

	tickets, err := h.Tickets()
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, uint64(5), tickets[0].Price)

	placed, err := h.ReplayFeeBuyTickets()
	require.NoError(t, err)
	assert.Equal(t, 1, placed)

	tickets, err = h.Tickets()
	require.NoError(t, err)
	assert.Empty(t, tickets)

	// 10 BTC units at 5 per PCX buys 2 PCX.
	id := OrderID{Account: DefaultSystemAccount, Pair: pcxBtc, Seq: 1}
	o := h.order(t, id)
	assert.Equal(t, Buy, o.Side)
	assert.Equal(t, uint64(200_000_000), o.Amount)
	assert.Equal(t, uint64(5), o.Price)
	assert.Equal(t, uint64(10), o.ReservedRemaining)
	assert.Equal(t, assets.Balance{Reserved: 10}, h.balance(t, DefaultSystemAccount, btc))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeeBuyTickets.WithLabelValues("placed")))

	// Native bought back by the system account is burned.
	h.deposit(t, dave, pcx, 200_000_000)
	sell := h.place(t, dave, pcxBtc, Sell, 200_000_000, 5, "")
	_, err = h.FillOrder(match(id, sell, 5, 200_000_000))
	require.NoError(t, err)

	assert.Equal(t, assets.Balance{Free: 200_000_000}, h.balance(t, DefaultBurnAccount, pcx))
	assert.Equal(t, assets.Balance{}, h.balance(t, DefaultSystemAccount, pcx))
	assert.Equal(t, assets.Balance{}, h.balance(t, DefaultSystemAccount, btc))
	assert.Equal(t, assets.Balance{Free: 15}, h.balance(t, dave, btc))
}

func TestReplayUsesLastPriceWhenTicketHasNone(t *testing.T) {
	h := newHarness(t, btcUsd, pcxBtc)
	h.queueBTCFee(t)
	h.seedNativePrice(t)

	tickets, err := h.Tickets()
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Zero(t, tickets[0].Price)

	placed, err := h.ReplayFeeBuyTickets()
	require.NoError(t, err)
	assert.Equal(t, 1, placed)
	o := h.order(t, OrderID{Account: DefaultSystemAccount, Pair: pcxBtc, Seq: 1})
	assert.Equal(t, uint64(5), o.Price)
}

func TestReplayDropsUnplaceableTickets(t *testing.T) {
	h := newHarness(t, btcUsd, pcxBtc)

	st := NewState(h.store)
	for _, tk := range []*FeeBuyTicket{
		{Pair: pcxBtc, Amount: 10},                    // no price anywhere
		{Pair: pcxBtc, Amount: 1, Price: 200_000_000}, // rounds to zero PCX
		{Pair: pcxBtc, Amount: 10, Price: 5},          // system holds no BTC
	} {
		_, err := st.Tickets.Push(tk)
		require.NoError(t, err)
	}

	placed, err := h.ReplayFeeBuyTickets()
	require.NoError(t, err)
	assert.Zero(t, placed)

	tickets, err := h.Tickets()
	require.NoError(t, err)
	assert.Empty(t, tickets)
	orders, err := h.OrderList(DefaultSystemAccount, pcxBtc)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.FeeBuyTickets.WithLabelValues("dropped")))
}
