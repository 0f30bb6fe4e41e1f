package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"llm-defi-agent/internal/aggregator/zeroex"
	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/cache"
	"llm-defi-agent/internal/chain"
	"llm-defi-agent/internal/consensus"
	"llm-defi-agent/internal/engine"
	"llm-defi-agent/internal/events"
	"llm-defi-agent/internal/history"
	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/lending/curvance"
	"llm-defi-agent/internal/llm"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/metrics"
	"llm-defi-agent/internal/pricefeed/stork"
	"llm-defi-agent/internal/store"
	"llm-defi-agent/internal/trace"
	"llm-defi-agent/internal/tradelog"
)

// app holds every wired collaborator plus the closers to run on shutdown.
type app struct {
	cfg     *store.Config
	engine  interfaces.Engine
	history interfaces.HistoryStore
	closers []func() error
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn(ctx, "Shutdown step failed", "error", err)
		}
	}
}

// initializeSystem loads .env and starts logging.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initializeTracing starts the tracer once the mode is known, so every
// span is tagged with it.
func initializeTracing(ctx context.Context, cfg *store.Config) {
	if err := trace.Init(cfg.Mode); err != nil {
		logger.Warn(ctx, "Failed to initialize tracer", "error", err)
	}
}

// loadConfig logs and returns the parse error, if any.
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeTradeLog opens the rotating execution and decision logs.
func initializeTradeLog(cfg *store.Config) {
	tradelog.Init(tradelog.Config{
		Dir:        cfg.TradeLog.Dir,
		MaxSizeMB:  cfg.TradeLog.MaxSizeMB,
		MaxAgeDays: cfg.TradeLog.MaxAgeDays,
		MaxBackups: cfg.TradeLog.MaxBackups,
		Compress:   cfg.TradeLog.Compress,
	})
}

// initializeWallet dials the chain. DRY_RUN without a configured key uses
// a throwaway key so balances still come from a real node.
func initializeWallet(ctx context.Context, cfg *store.Config) (*chain.Client, error) {
	if cfg.Chain.RPCURL == "" {
		return nil, errors.New("chain.rpc_url is required to read wallet balances")
	}
	key := store.Secret(cfg.Chain.PrivateKeyEnv)
	if key == "" {
		if !cfg.IsDryRun() {
			return nil, fmt.Errorf("%s must be set in LIVE mode", cfg.Chain.PrivateKeyEnv)
		}
		pk, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		key = hexutil.Encode(crypto.FromECDSA(pk))
		logger.Warn(ctx, "No signer key configured, using an ephemeral DRY_RUN wallet")
	}
	return chain.Dial(ctx, chain.Config{
		RPCURL:         cfg.Chain.RPCURL,
		ChainID:        cfg.Chain.ChainID,
		PrivateKey:     key,
		ReceiptTimeout: cfg.Chain.ReceiptTimeout,
		PollInterval:   cfg.Chain.PollInterval,
	})
}

// initializeHistory picks the memory or postgres store. The closer is nil for memory.
func initializeHistory(ctx context.Context, cfg *store.Config) (interfaces.HistoryStore, func() error, error) {
	if cfg.History.Driver != "postgres" {
		logger.Info(ctx, "Using in-memory decision history")
		return history.NewMemoryStore(), nil, nil
	}
	s, err := history.OpenPostgres(store.Secret(cfg.History.DSNEnv))
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// initializeCache connects Redis when enabled with a positive TTL. An unreachable
// server disables caching rather than failing startup.
func initializeCache(ctx context.Context, cfg *store.Config) (llm.CompletionCache, func() error) {
	if !cfg.Redis.Enabled || cfg.Consensus.CacheTTL <= 0 {
		return nil, nil
	}
	c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: store.Secret(cfg.Redis.PassEnv),
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		logger.Warn(ctx, "Redis unavailable, completion cache disabled", "error", err)
		return nil, nil
	}
	return c, c.Close
}

// initializePublisher returns the Kafka publisher, or Nop when Kafka is off.
func initializePublisher(ctx context.Context, cfg *store.Config) (interfaces.DecisionPublisher, func() error, error) {
	if !cfg.Kafka.Enabled {
		return events.Nop{}, nil, nil
	}
	p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "Publishing decisions to Kafka", "topic", cfg.Kafka.Topic)
	return p, p.Close, nil
}

// httpOptions shares one connection pool and request logging setting
// across every outbound API client.
func httpOptions(cfg *store.Config) []api.ClientOption {
	return []api.ClientOption{
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		api.WithLogging(cfg.HTTP.LogRequests),
	}
}

// initializeLending builds the lending adapter when lending is enabled, nil otherwise.
func initializeLending(cfg *store.Config, w *chain.Client, opts ...api.ClientOption) interfaces.LendingMarket {
	if !cfg.Lending.Enabled {
		return nil
	}
	markets := make(map[string]curvance.Market, len(cfg.Lending.Markets))
	for sym, m := range cfg.Lending.Markets {
		markets[sym] = curvance.Market{Underlying: m.Underlying, Market: m.Market}
	}
	return curvance.NewClient(w, cfg.Lending.MarketDataURL, markets, opts...)
}

// bootstrap wires every collaborator by constructor injection.
func bootstrap(ctx context.Context, cfg *store.Config, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg}
	initializeTradeLog(cfg)
	a.closers = append(a.closers, tradelog.Close)

	if cfg.IsDryRun() {
		logger.Warn(ctx, "Running in DRY_RUN mode - transactions will not be submitted")
	}

	wallet, err := initializeWallet(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { wallet.Close(); return nil })
	logger.Info(ctx, "Wallet ready", "address", wallet.Address(), "chain_id", cfg.Chain.ChainID)

	hist, closeHist, err := initializeHistory(ctx, cfg)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("history store: %w", err)
	}
	if closeHist != nil {
		a.closers = append(a.closers, closeHist)
	}
	a.history = hist

	completionCache, closeCache := initializeCache(ctx, cfg)
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}

	pub, closePub, err := initializePublisher(ctx, cfg)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("decision publisher: %w", err)
	}
	if closePub != nil {
		a.closers = append(a.closers, closePub)
	}

	rec := metrics.New(reg)
	httpOpts := httpOptions(cfg)
	providers := llm.NewAll(cfg, completionCache, httpOpts...)
	for _, p := range providers {
		logger.Info(ctx, "Provider configured", "provider", p.Name())
	}
	cons := consensus.New(providers, consensus.Config{
		Timeout:          cfg.Consensus.ProviderTimeout,
		Temperature:      cfg.Consensus.Temperature,
		MaxTokens:        cfg.Consensus.MaxTokens,
		LendingMaxTokens: cfg.Consensus.LendingMaxTokens,
	}, rec)

	feed := stork.NewClient(cfg.Market.FeedURL, store.Secret(cfg.Market.APIKeyEnv),
		append(httpOpts, api.WithRateLimit(cfg.Market.RPS, 1))...)
	agg := zeroex.NewClient(cfg.Aggregator.BaseURL, store.Secret(cfg.Aggregator.APIKeyEnv), cfg.Chain.ChainID,
		append(httpOpts, api.WithRateLimit(cfg.Aggregator.RPS, 1))...)

	a.engine = engine.New(cfg, engine.Deps{
		Feed:       feed,
		Consensus:  cons,
		Wallet:     wallet,
		Aggregator: agg,
		Lending:    initializeLending(cfg, wallet, httpOpts...),
		History:    hist,
		Publisher:  pub,
		Metrics:    rec,
	})
	a.closers = append(a.closers, a.engine.Close)
	return a, nil
}
