package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/trace"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		os.Exit(1)
	}
	initializeTracing(ctx, cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	a, err := bootstrap(ctx, cfg, reg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to start agent", err)
		os.Exit(1)
	}

	srv := newServer(a.engine, a.history, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv.start(ctx, cfg.Server.Addr)

	logger.Info(ctx, "Agent started", "mode", cfg.Mode, "pair", cfg.Market.Symbol, "poll_seconds", cfg.PollSeconds)
	pollLoop(ctx, a.engine, time.Duration(cfg.PollSeconds)*time.Second)

	logger.Info(context.Background(), "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.stop(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "HTTP server shutdown failed", "error", err)
	}
	a.close(shutdownCtx)
	if err := trace.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "Tracer shutdown failed", "error", err)
	}
}

// pollLoop runs a cycle immediately and then every interval until ctx is
// cancelled. A zero interval leaves cycles to the HTTP trigger.
func pollLoop(ctx context.Context, eng interfaces.Engine, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	runOnce(ctx, eng)

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			runOnce(ctx, eng)
		case <-ctx.Done():
			return
		}
	}
}

func runOnce(ctx context.Context, eng interfaces.Engine) {
	if _, err := eng.RunDecisionCycle(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn(ctx, "Scheduled decision cycle failed", "error", err)
	}
}
