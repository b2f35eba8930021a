package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
	"github.com/uhyunpark/hyperspot/pkg/app/dex"
	"github.com/uhyunpark/hyperspot/pkg/crypto"
)

// maxTxBody bounds POST /tx.
const maxTxBody = 64 << 10

const defaultFillPage = 100

type Options struct {
	App            *dex.App
	AllowedOrigins []string
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server handles REST API and WebSocket connections
type Server struct {
	app     *dex.App
	engine  *spot.Engine
	router  *mux.Router
	hub     *Hub
	handler http.Handler
	logger  *zap.Logger

	mu   sync.Mutex
	http *http.Server
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		app:    opts.App,
		engine: opts.App.Engine(),
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		logger: logger,
	}
	s.setupRoutes(gatherer)

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	s.handler = c.Handler(s.router)
	return s
}

// Hub is the event sink to attach to the engine.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Pairs use "FIRST-SECOND" in paths.
	api.HandleFunc("/pairs", s.handleGetPairs).Methods("GET")
	api.HandleFunc("/pairs/{pair}/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/pairs/{pair}/fills", s.handleGetFills).Methods("GET")
	api.HandleFunc("/pairs/{pair}/fills/{index:[0-9]+}", s.handleGetFill).Methods("GET")

	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances/{token}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/accounts/{address}/orders/{pair}", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/accounts/{address}/orders/{pair}/{seq:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods("GET")

	api.HandleFunc("/outbox", s.handleGetOutbox).Methods("GET")
	api.HandleFunc("/tickets", s.handleGetTickets).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	api.HandleFunc("/tx", s.handleSubmitTx).Methods("POST")
	api.HandleFunc("/tx/{hash}", s.handleGetTx).Methods("GET")

	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	s.logger.Info("server starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetPairs(w http.ResponseWriter, r *http.Request) {
	details, err := s.engine.Pairs()
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]PairInfo, 0, len(details))
	for _, d := range details {
		info, err := s.pairInfo(d)
		if err != nil {
			s.internalError(w, err)
			return
		}
		out = append(out, info)
	}
	respondJSON(w, out)
}

func (s *Server) pairInfo(d market.Detail) (PairInfo, error) {
	px, err := s.engine.Prices(d.Pair)
	if err != nil {
		return PairInfo{}, err
	}
	last, err := s.engine.LastFillIndex(d.Pair)
	if err != nil {
		return PairInfo{}, err
	}
	return PairInfo{
		Pair:         d.Pair.String(),
		First:        string(d.Pair.First),
		Second:       string(d.Pair.Second),
		Precision:    d.Precision,
		LastPrice:    px.Last,
		AveragePrice: px.Average,
		LastFill:     last,
	}, nil
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	pair, ok := s.pairVar(w, r)
	if !ok {
		return
	}
	px, err := s.engine.Prices(pair)
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, px)
}

// handleGetFills pages through fills: ?from=<index>&limit=<n>.
func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	pair, ok := s.pairVar(w, r)
	if !ok {
		return
	}
	from, err := queryUint(r, "from", 1)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid from", err.Error())
		return
	}
	limit, err := queryUint(r, "limit", defaultFillPage)
	if err != nil || limit == 0 || limit > 1000 {
		respondError(w, http.StatusBadRequest, "invalid limit", "1..1000")
		return
	}
	fills, err := s.engine.Fills(pair, from, int(limit))
	if err != nil {
		s.internalError(w, err)
		return
	}
	if fills == nil {
		fills = []*spot.Fill{}
	}
	respondJSON(w, fills)
}

func (s *Server) handleGetFill(w http.ResponseWriter, r *http.Request) {
	pair, ok := s.pairVar(w, r)
	if !ok {
		return
	}
	idx, _ := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	f, found, err := s.engine.Fill(pair, idx)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "fill not found", "")
		return
	}
	respondJSON(w, f)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	tokens := s.engine.Assets().List()
	out := make([]BalanceInfo, 0, len(tokens))
	for _, t := range tokens {
		b, err := s.engine.Balance(addr, t)
		if err != nil {
			s.internalError(w, err)
			return
		}
		out = append(out, balanceInfo(addr, t, b))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	token := assets.Token(mux.Vars(r)["token"])
	if !s.engine.Assets().Exists(token) {
		respondError(w, http.StatusNotFound, "unknown asset", string(token))
		return
	}
	b, err := s.engine.Balance(addr, token)
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, balanceInfo(addr, token, b))
}

func balanceInfo(addr common.Address, token assets.Token, b assets.Balance) BalanceInfo {
	return BalanceInfo{
		Address:  addr.Hex(),
		Token:    string(token),
		Free:     b.Free,
		Reserved: b.Reserved,
		Total:    b.Total(),
	}
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	pair, ok := s.pairVar(w, r)
	if !ok {
		return
	}
	orders, err := s.engine.OrderList(addr, pair)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if orders == nil {
		orders = []*spot.Order{}
	}
	respondJSON(w, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	pair, ok := s.pairVar(w, r)
	if !ok {
		return
	}
	seq, _ := strconv.ParseUint(mux.Vars(r)["seq"], 10, 64)
	o, err := s.engine.Order(spot.OrderID{Account: addr, Pair: pair, Seq: seq})
	if errors.Is(err, spot.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, o)
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	n, err := s.app.Nonce(addr)
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, NonceInfo{Address: addr.Hex(), Nonce: n})
}

func (s *Server) handleGetOutbox(w http.ResponseWriter, r *http.Request) {
	cmds, err := s.engine.PendingCommands()
	if err != nil {
		s.internalError(w, err)
		return
	}
	if cmds == nil {
		cmds = []spot.Command{}
	}
	respondJSON(w, cmds)
}

func (s *Server) handleGetTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.engine.Tickets()
	if err != nil {
		s.internalError(w, err)
		return
	}
	if tickets == nil {
		tickets = []*spot.FeeBuyTicket{}
	}
	respondJSON(w, tickets)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config()
	if err != nil {
		s.internalError(w, err)
		return
	}
	acc := s.engine.Accounts()
	respondJSON(w, ConfigInfo{
		OrderFee:           cfg.OrderFee,
		AveragePriceWindow: cfg.AveragePriceWindow,
		NativeToken:        string(s.engine.Assets().Native()),
		SystemAccount:      acc.System.Hex(),
		BurnAccount:        acc.Burn.Hex(),
	})
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	height, hash := s.app.Status()
	respondJSON(w, ChainStatus{
		Height:      height,
		AppHash:     hash.String(),
		MempoolSize: s.app.MempoolSize(),
	})
}

// handleSubmitTx accepts one signed transaction. Acceptance only means the
// signature checked out; poll /tx/{hash} for the delivery result.
func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTxBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}
	if len(body) > maxTxBody {
		respondError(w, http.StatusRequestEntityTooLarge, "transaction too large", "")
		return
	}

	hash, err := s.app.CheckTx(body)
	switch {
	case errors.Is(err, crypto.ErrInvalidSignature):
		respondError(w, http.StatusUnauthorized, "invalid signature", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid transaction", err.Error())
		return
	}

	s.logger.Debug("tx submitted", zap.Stringer("hash", hash), zap.Int("bytes", len(body)))
	respondStatus(w, http.StatusAccepted, TxStatus{Hash: hash.Hex(), Status: "accepted"})
}

func (s *Server) handleGetTx(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["hash"]
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		respondError(w, http.StatusBadRequest, "invalid hash", raw)
		return
	}
	hash := common.BytesToHash(b)
	res, ok := s.app.Result(hash)
	if !ok {
		respondJSON(w, TxStatus{Hash: hash.Hex(), Status: "pending"})
		return
	}
	status := "committed"
	if !res.OK() {
		status = "failed"
	}
	respondJSON(w, TxStatus{Hash: hash.Hex(), Status: status, Code: res.Code, Log: res.Log})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) pairVar(w http.ResponseWriter, r *http.Request) (market.Pair, bool) {
	raw := mux.Vars(r)["pair"]
	pair, err := market.ParsePair(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair", err.Error())
		return market.Pair{}, false
	}
	known, err := s.engine.Pairs()
	if err != nil {
		s.internalError(w, err)
		return market.Pair{}, false
	}
	for _, d := range known {
		if d.Pair == pair {
			return pair, true
		}
	}
	respondError(w, http.StatusNotFound, "pair not found", pair.String())
	return market.Pair{}, false
}

func addressVar(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func queryUint(r *http.Request, key string, def uint64) (uint64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error", "")
}

func respondJSON(w http.ResponseWriter, data any) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
