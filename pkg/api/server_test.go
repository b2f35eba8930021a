package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uhyunpark/hyperspot/params"
	"github.com/uhyunpark/hyperspot/pkg/abci"
	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
	"github.com/uhyunpark/hyperspot/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperspot/pkg/app/dex"
	"github.com/uhyunpark/hyperspot/pkg/crypto"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

type testNode struct {
	t        *testing.T
	app      *dex.App
	server   *Server
	verifier *transaction.Verifier
	admin    *crypto.Signer
	nonces   map[common.Address]uint64
	height   int64
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	setup, err := dex.NewSetup(params.DefaultGenesis())
	require.NoError(t, err)
	store := storage.NewMemStore()
	reg := prometheus.NewRegistry()
	engine, err := spot.NewEngine(spot.Options{
		Store:    store,
		Assets:   setup.Assets,
		Accounts: setup.Accounts,
		Metrics:  spot.NewMetrics(reg),
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	_, err = dex.InitChain(store, engine, setup.Genesis)
	require.NoError(t, err)

	verifier := transaction.NewVerifier("")
	app, err := dex.NewApp(dex.Options{
		Engine:   engine,
		Store:    store,
		Verifier: verifier,
		Admin:    setup.Admin,
		Matcher:  setup.Matcher,
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	srv := NewServer(Options{App: app, Gatherer: reg, Logger: zaptest.NewLogger(t)})
	engine.SetSink(srv.Hub())

	admin, err := crypto.FromPrivateKeyHex(params.DevAdminKey)
	require.NoError(t, err)
	return &testNode{
		t:        t,
		app:      app,
		server:   srv,
		verifier: verifier,
		admin:    admin,
		nonces:   make(map[common.Address]uint64),
	}
}

func (n *testNode) sign(s *crypto.Signer, typ transaction.TxType, payload any) []byte {
	n.t.Helper()
	n.nonces[s.Address()]++
	tx, err := transaction.NewTransaction(typ, s.Address(), n.nonces[s.Address()], payload)
	require.NoError(n.t, err)
	require.NoError(n.t, n.verifier.Sign(tx, s))
	raw, err := tx.Serialize()
	require.NoError(n.t, err)
	return raw
}

// commit finalizes whatever the mempool holds.
func (n *testNode) commit() {
	n.t.Helper()
	n.height++
	prop := n.app.PrepareProposal(abci.RequestPrepareProposal{Height: n.height, MaxTxBytes: abci.DefaultMaxTxBytes})
	n.app.FinalizeBlock(abci.RequestFinalizeBlock{Height: n.height, Timestamp: n.height, Txs: prop.Txs})
}

func (n *testNode) do(method, path string, body []byte) *httptest.ResponseRecorder {
	n.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	n.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSubmitTxLifecycle(t *testing.T) {
	n := newTestNode(t)
	alice, err := crypto.GenerateKey()
	require.NoError(t, err)

	raw := n.sign(n.admin, transaction.TxDeposit, transaction.DepositPayload{
		Account: alice.Address().Hex(), Token: "BTC", Amount: 500,
	})
	rec := n.do("POST", "/api/v1/tx", raw)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	submitted := decodeBody[TxStatus](t, rec)
	assert.Equal(t, "accepted", submitted.Status)

	rec = n.do("GET", "/api/v1/tx/"+submitted.Hash, nil)
	assert.Equal(t, "pending", decodeBody[TxStatus](t, rec).Status)

	n.commit()

	rec = n.do("GET", "/api/v1/tx/"+submitted.Hash, nil)
	assert.Equal(t, "committed", decodeBody[TxStatus](t, rec).Status)

	rec = n.do("GET", "/api/v1/accounts/"+strings.ToLower(alice.Address().Hex())+"/balances/BTC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeBody[BalanceInfo](t, rec)
	assert.Equal(t, uint64(500), bal.Free)
	assert.Equal(t, uint64(500), bal.Total)

	rec = n.do("GET", "/api/v1/accounts/"+n.admin.Address().Hex()+"/nonce", nil)
	assert.Equal(t, uint64(1), decodeBody[NonceInfo](t, rec).Nonce)

	rec = n.do("GET", "/api/v1/chain/status", nil)
	status := decodeBody[ChainStatus](t, rec)
	assert.Equal(t, uint64(1), status.Height)
	assert.Zero(t, status.MempoolSize)
}

func TestSubmitTxRejections(t *testing.T) {
	n := newTestNode(t)
	mallory, err := crypto.GenerateKey()
	require.NoError(t, err)

	rec := n.do("POST", "/api/v1/tx", []byte("{}"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	raw := n.sign(mallory, transaction.TxCancel, transaction.CancelPayload{Pair: "PCX/BTC", Seq: 1})
	tx, err := transaction.ParseTransaction(raw)
	require.NoError(t, err)
	tx.From = n.admin.Address().Hex()
	forged, err := tx.Serialize()
	require.NoError(t, err)
	rec = n.do("POST", "/api/v1/tx", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = n.do("POST", "/api/v1/tx", bytes.Repeat([]byte("x"), maxTxBody+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = n.do("GET", "/api/v1/tx/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueries(t *testing.T) {
	n := newTestNode(t)
	alice, err := crypto.GenerateKey()
	require.NoError(t, err)

	n.app.PushTx(n.sign(n.admin, transaction.TxDeposit, transaction.DepositPayload{
		Account: alice.Address().Hex(), Token: "BTC", Amount: 100,
	}))
	n.app.PushTx(n.sign(alice, transaction.TxPlace, transaction.PlacePayload{
		Pair: "PCX/BTC", Side: "buy", Amount: 100_000_000, Price: 5,
	}))
	n.commit()

	rec := n.do("GET", "/api/v1/pairs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pairs := decodeBody[[]PairInfo](t, rec)
	assert.Len(t, pairs, 3)

	rec = n.do("GET", "/api/v1/accounts/"+alice.Address().Hex()+"/orders/PCX-BTC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeBody[[]spot.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, uint64(5), orders[0].ReservedRemaining)

	rec = n.do("GET", "/api/v1/accounts/"+alice.Address().Hex()+"/orders/PCX-BTC/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = n.do("GET", "/api/v1/accounts/"+alice.Address().Hex()+"/orders/PCX-BTC/2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = n.do("GET", "/api/v1/accounts/"+alice.Address().Hex()+"/balances", nil)
	assert.Len(t, decodeBody[[]BalanceInfo](t, rec), 3)

	rec = n.do("GET", "/api/v1/pairs/PCX-BTC/fills", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = n.do("GET", "/api/v1/pairs/PCX-BTC/fills/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = n.do("GET", "/api/v1/pairs/PCX-BTC/price", nil)
	assert.Equal(t, spot.PriceState{}, decodeBody[spot.PriceState](t, rec))

	rec = n.do("GET", "/api/v1/outbox", nil)
	assert.Equal(t, "[]\n", rec.Body.String())
	rec = n.do("GET", "/api/v1/tickets", nil)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = n.do("GET", "/api/v1/config", nil)
	cfg := decodeBody[ConfigInfo](t, rec)
	assert.Equal(t, "PCX", cfg.NativeToken)
	assert.Equal(t, uint64(100), cfg.AveragePriceWindow)
	assert.Equal(t, spot.DefaultBurnAccount.Hex(), cfg.BurnAccount)

	rec = n.do("GET", "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "spot_orders_placed_total")

	rec = n.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryErrors(t *testing.T) {
	n := newTestNode(t)
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111").Hex()

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/accounts/nope/balances/BTC", http.StatusBadRequest},
		{"/api/v1/accounts/" + addr + "/balances/DOGE", http.StatusNotFound},
		{"/api/v1/accounts/" + addr + "/orders/BTC", http.StatusBadRequest},
		{"/api/v1/accounts/" + addr + "/orders/DOGE-BTC", http.StatusNotFound},
		{"/api/v1/pairs/BTC-PCX/price", http.StatusNotFound},
		{"/api/v1/pairs/PCX-BTC/fills?limit=0", http.StatusBadRequest},
		{"/api/v1/pairs/PCX-BTC/fills?from=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, n.do("GET", tt.path, nil).Code)
		})
	}
}

func TestWebSocketEvents(t *testing.T) {
	n := newTestNode(t)
	alice, err := crypto.GenerateKey()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.server.Hub().Run(ctx)

	ts := httptest.NewServer(n.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	account := "account:" + strings.ToLower(alice.Address().Hex())
	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{account}}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ack map[string]any
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "subscribed", ack["type"])

	n.app.PushTx(n.sign(n.admin, transaction.TxDeposit, transaction.DepositPayload{
		Account: alice.Address().Hex(), Token: "BTC", Amount: 100,
	}))
	n.app.PushTx(n.sign(alice, transaction.TxPlace, transaction.PlacePayload{
		Pair: "PCX/BTC", Side: "buy", Amount: 100_000_000, Price: 5,
	}))
	n.commit()

	var msg EventUpdate
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, spot.EventOrderPlaced, msg.Event.Kind)
	require.NotNil(t, msg.Event.Order)
	assert.Equal(t, alice.Address(), msg.Event.Order.Account)
}
