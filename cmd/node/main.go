package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/params"
	"github.com/uhyunpark/hyperspot/pkg/abci"
	"github.com/uhyunpark/hyperspot/pkg/api"
	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
	"github.com/uhyunpark/hyperspot/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperspot/pkg/app/dex"
	"github.com/uhyunpark/hyperspot/pkg/crypto"
	"github.com/uhyunpark/hyperspot/pkg/node"
	"github.com/uhyunpark/hyperspot/pkg/storage"
	"github.com/uhyunpark/hyperspot/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Node.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	} else {
		logger, err = util.NewLogger(cfg.Node.LogLevel)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	genesis, err := params.LoadGenesis(cfg.Node.GenesisPath)
	if err != nil {
		sugar.Fatalw("genesis_load_failed", "path", cfg.Node.GenesisPath, "err", err)
	}
	setup, err := dex.NewSetup(genesis)
	if err != nil {
		sugar.Fatalw("genesis_invalid", "err", err)
	}

	// ---- Storage ----
	var store storage.Batcher
	if cfg.Node.DataDir != "" {
		db, err := storage.NewPebbleStore(cfg.Node.DataDir, storage.DefaultPebbleOptions())
		if err != nil {
			sugar.Fatalw("store_open_failed", "dir", cfg.Node.DataDir, "err", err)
		}
		defer db.Close()
		store = db
		sugar.Infow("store_opened", "backend", "pebble", "dir", cfg.Node.DataDir)
	} else {
		store = storage.NewMemStore()
		sugar.Infow("store_opened", "backend", "memory")
	}

	// ---- Engine + App ----
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := spot.NewEngine(spot.Options{
		Store:    store,
		Assets:   setup.Assets,
		Accounts: setup.Accounts,
		Metrics:  spot.NewMetrics(registry),
		Logger:   logger,
	})
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}
	fresh, err := dex.InitChain(store, engine, setup.Genesis)
	if err != nil {
		sugar.Fatalw("init_chain_failed", "err", err)
	}
	sugar.Infow("chain_ready", "fresh_genesis", fresh, "pairs", len(setup.Genesis.Pairs))

	verifier := transaction.NewVerifier(cfg.Node.ChainDomain)
	app, err := dex.NewApp(dex.Options{
		Engine:   engine,
		Store:    store,
		Verifier: verifier,
		Admin:    setup.Admin,
		Matcher:  setup.Matcher,
		Logger:   logger,
	})
	if err != nil {
		sugar.Fatalw("app_init_failed", "err", err)
	}

	// ---- API Server ----
	apiServer := api.NewServer(api.Options{
		App:            app,
		AllowedOrigins: cfg.API.AllowedOrigins,
		Gatherer:       registry,
		Logger:         logger,
	})
	engine.SetSink(apiServer.Hub())

	// ---- Block producer ----
	producer, err := node.NewProducer(
		&abci.Bridge{App: app, MaxTxBytes: cfg.Node.MaxBlockBytes},
		node.NewBlockStore(store),
		util.RealClock{},
		cfg.Node.MinBlockTime,
		logger,
	)
	if err != nil {
		sugar.Fatalw("producer_init_failed", "err", err)
	}
	producer.OnCommit = func(h node.Header) {
		apiServer.Hub().BroadcastBlock(api.BlockUpdate{
			Height:  h.Height,
			AppHash: h.AppHash.String(),
			Txs:     h.Txs,
			Failed:  h.Failed,
		})
	}
	sugar.Infow("block_time_config", "min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds(), "resume_height", producer.Tip().Height)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Transaction Feeder (optional) ----
	// Enable with: ENABLE_TXGEN=true. Needs the devnet admin key.
	if os.Getenv("ENABLE_TXGEN") == "true" {
		admin, err := crypto.FromPrivateKeyHex(getEnv("TXGEN_ADMIN_KEY", params.DevAdminKey))
		if err != nil {
			sugar.Fatalw("txgen_admin_key_invalid", "err", err)
		}
		pairs, err := engine.Pairs()
		if err != nil {
			sugar.Fatalw("txgen_pairs_failed", "err", err)
		}
		feeder, err := dex.NewFeeder(dex.DefaultFeederConfig(), verifier, admin, pairs, time.Now().UnixNano())
		if err != nil {
			sugar.Fatalw("txgen_init_failed", "err", err)
		}
		cancelFeeder, err := dex.StartFeeder(ctx, app, feeder, logger.Named("txgen"))
		if err != nil {
			sugar.Fatalw("txgen_start_failed", "err", err)
		}
		defer cancelFeeder()
	} else {
		sugar.Info("txgen_disabled")
	}

	go func() {
		if err := apiServer.Start(ctx, cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_starting", "api_addr", cfg.API.Addr, "chain_domain", cfg.Node.ChainDomain)
	if err := producer.Run(ctx); err != nil && ctx.Err() == nil {
		sugar.Errorw("producer_failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}
	height, hash := app.Status()
	sugar.Infow("node_stopped", "height", height, "app_hash", hash.String())
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
