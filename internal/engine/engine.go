package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"llm-defi-agent/internal/consensus"
	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/metrics"
	"llm-defi-agent/internal/store"
	"llm-defi-agent/internal/ta"
	"llm-defi-agent/internal/trace"
	"llm-defi-agent/internal/tradelog"
	"llm-defi-agent/internal/types"
)

// Deps are the collaborators of one engine. Lending and Publisher may be nil.
type Deps struct {
	Feed       interfaces.PriceFeed
	Consensus  *consensus.Engine
	Wallet     interfaces.Wallet
	Aggregator interfaces.SwapAggregator
	Lending    interfaces.LendingMarket
	History    interfaces.HistoryStore
	Publisher  interfaces.DecisionPublisher
	Metrics    *metrics.Recorder
}

// Engine runs decision cycles: indicators, consensus on both tracks,
// one history record, execution, and a single amend with the results.
type Engine struct {
	cfg       *store.Config
	feed      interfaces.PriceFeed
	consensus *consensus.Engine
	gate      *ViabilityGate
	swaps     *SwapExecutor
	lending   *LendingExecutor
	market    interfaces.LendingMarket
	history   interfaces.HistoryStore
	publisher interfaces.DecisionPublisher
	metrics   *metrics.Recorder
	queue     *signerQueue
	now       func() time.Time
}

func newEngine(cfg *store.Config, d Deps) *Engine {
	tokens := TokenPair{Stable: cfg.Tokens.Stable.Address, Asset: cfg.Tokens.Asset.Address}
	gate := NewViabilityGate(d.Wallet, tokens, cfg.Risk.HighPct, cfg.Risk.LowPct, cfg.Risk.MinTradeUnits, cfg.Risk.MaxRateDriftPct)
	queue := newSignerQueue()

	e := &Engine{
		cfg:       cfg,
		feed:      d.Feed,
		consensus: d.Consensus,
		gate:      gate,
		swaps:     NewSwapExecutor(d.Wallet, d.Aggregator, tokens, cfg.Tokens.Permit2),
		market:    d.Lending,
		history:   d.History,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		queue:     queue,
		now:       time.Now,
	}
	if d.Lending != nil {
		e.lending = newLendingExecutor(d.Lending, gate, queue, cfg.IsDryRun())
	}
	return e
}

func (e *Engine) Close() error {
	e.queue.Close()
	return nil
}

type trackOutcome struct {
	decision *types.Decision
	results  []types.ExecutionResult
	err      error
}

func (e *Engine) RunDecisionCycle(ctx context.Context, params *types.CycleParams) (*types.CycleReport, error) {
	started := e.now()
	req := e.seriesRequest(params, started)
	report := &types.CycleReport{
		Timestamp: started.UTC(),
		Pair:      req.Symbol,
		Errors:    map[string]string{},
	}

	snap, feedErr := e.indicators(ctx, req)
	report.Indicators = snap

	var trading, lending trackOutcome
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if feedErr != nil {
			trading.err = feedErr
			return
		}
		trading.decision, trading.err = e.consensus.DecideTrading(ctx, req.Symbol, snap)
	}()
	if e.market != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			md, err := e.market.GetMarketData(ctx)
			if err != nil {
				lending.err = fmt.Errorf("fetch lending market data: %w", err)
				return
			}
			lending.decision, lending.err = e.consensus.DecideLending(ctx, md, snap)
		}()
	}
	wg.Wait()

	if trading.decision == nil && lending.decision == nil {
		err := errors.Join(trading.err, lending.err)
		e.metrics.RecordCycle("error", e.now().Sub(started).Seconds())
		return nil, err
	}

	rec := &types.DecisionRecord{
		ID:         uuid.NewString(),
		Pair:       req.Symbol,
		CreatedAt:  started.UTC(),
		Indicators: &snap,
		Trading:    trading.decision,
		Lending:    lending.decision,
	}
	id, err := e.history.Append(ctx, rec)
	if err != nil {
		e.metrics.RecordCycle("error", e.now().Sub(started).Seconds())
		return nil, fmt.Errorf("append decision record: %w", err)
	}
	rec.ID = id
	trace.Annotate(ctx, trace.AttrRecordID.String(id))
	for _, d := range []*types.Decision{trading.decision, lending.decision} {
		if d == nil {
			continue
		}
		d.ID = id
		if err := tradelog.AppendDecision(req.Symbol, d, &snap); err != nil {
			logger.Warn(ctx, "Failed to write decision log", "error", err)
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if trading.decision != nil {
			var err error
			trading.results, err = e.executeTrading(ctx, trading.decision)
			trading.err = errors.Join(trading.err, err)
		}
	}()
	go func() {
		defer wg.Done()
		if lending.decision != nil && e.lending != nil {
			var err error
			lending.results, err = e.lending.Execute(ctx, lending.decision)
			lending.err = errors.Join(lending.err, err)
		}
	}()
	wg.Wait()

	executions := append(append([]types.ExecutionResult{}, trading.results...), lending.results...)
	if len(executions) > 0 {
		executedAt := e.now().UTC()
		if err := e.history.Amend(ctx, id, types.ExecutionPatch{Results: executions, ExecutedAt: executedAt}); err != nil {
			logger.ErrorWithErr(ctx, "Failed to amend decision record", err, "record_id", id)
			report.Errors["history"] = err.Error()
		} else {
			rec.Executions = executions
			rec.ExecutedAt = &executedAt
		}
	}
	for _, res := range executions {
		e.metrics.RecordExecution(res.Track, executionLabel(res))
	}

	if e.publisher != nil {
		if err := e.publisher.PublishDecision(ctx, rec); err != nil {
			logger.Warn(ctx, "Failed to publish decision record", "record_id", id, "error", err)
		}
	}

	report.Recommendations = types.Recommendations{Trading: trading.decision, Lending: lending.decision}
	report.Executions = executions

	failed := 0
	enabled := 1
	if trading.err != nil {
		report.Errors[types.TrackTrading] = trading.err.Error()
		failed++
	}
	if e.market != nil {
		enabled++
		if lending.err != nil {
			report.Errors[types.TrackLending] = lending.err.Error()
			failed++
		}
	}
	if len(report.Errors) == 0 {
		report.Errors = nil
	}

	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	if failed == enabled {
		e.metrics.RecordCycle("error", e.now().Sub(started).Seconds())
		return report, errors.Join(trading.err, lending.err)
	}
	e.metrics.RecordCycle(result, e.now().Sub(started).Seconds())
	return report, nil
}

// indicators never fails the cycle outright: a feed error yields the
// default snapshot and is reported against the trading track.
func (e *Engine) indicators(ctx context.Context, req types.SeriesRequest) (types.IndicatorSnapshot, error) {
	series, err := e.feed.GetSeries(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch market series", err, "symbol", req.Symbol)
		return ta.DefaultSnapshot(nil), fmt.Errorf("fetch market series: %w", err)
	}
	snap := ta.Compute(series)
	logger.Debug(ctx, "Indicators calculated",
		"symbol", req.Symbol,
		"bars", len(series.Timestamps),
		"price", snap.Price.Current,
		"rsi", snap.Technicals.RSI,
		"sma20", snap.Technicals.SMA.SMA20,
		"sma50", snap.Technicals.SMA.SMA50,
		"sma200", snap.Technicals.SMA.SMA200,
		"momentum", snap.Technicals.Momentum,
	)
	return snap, nil
}

func (e *Engine) seriesRequest(p *types.CycleParams, now time.Time) types.SeriesRequest {
	req := types.SeriesRequest{
		Symbol:     e.cfg.Market.Symbol,
		Resolution: e.cfg.Market.Resolution,
		To:         now.Unix(),
		From:       now.AddDate(0, 0, -e.cfg.Market.LookbackDays).Unix(),
	}
	if p == nil {
		return req
	}
	if p.Symbol != "" {
		req.Symbol = p.Symbol
	}
	if p.Resolution != "" {
		req.Resolution = p.Resolution
	}
	if p.To > 0 {
		req.To = p.To
	}
	if p.From > 0 {
		req.From = p.From
	}
	return req
}

// executeTrading runs the single swap of a trading decision. Non-viable
// sizes and insufficient balance are skips; other failures are returned.
func (e *Engine) executeTrading(ctx context.Context, d *types.Decision) ([]types.ExecutionResult, error) {
	if !d.ShouldExecute || len(d.Actions) == 0 {
		logger.Debug(ctx, "No trade action needed", "action", d.Action)
		return nil, nil
	}
	action := d.Actions[0]
	res := types.ExecutionResult{Track: types.TrackTrading, Action: action}
	record := func(r types.ExecutionResult) []types.ExecutionResult {
		logExecution(ctx, d, r)
		return []types.ExecutionResult{r}
	}

	verdict, err := e.gate.CheckViability(ctx, action.Action, d.RiskLevel)
	if err != nil {
		res.Error = err.Error()
		return record(res), err
	}
	res.Amount = verdict.Amount
	if !verdict.Viable {
		return record(skipped(res, verdict.Reason)), nil
	}

	amount, err := e.gate.SizePosition(ctx, action.Action, d.RiskLevel)
	if err != nil {
		res.Error = err.Error()
		return record(res), err
	}
	if e.cfg.IsDryRun() {
		logger.Info(ctx, "Dry run, swap not submitted", "side", action.Action, "amount", verdict.Amount, "token", verdict.Token)
		return record(skipped(res, reasonDryRun)), nil
	}

	logger.Info(ctx, "Executing swap",
		"side", action.Action,
		"pair", action.Token,
		"amount", verdict.Amount,
		"risk_level", string(d.RiskLevel),
	)
	var receipt *types.Receipt
	err = e.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = e.swaps.ExecuteSwap(ctx, action.Action, amount)
		return err
	})
	if err != nil {
		if types.IsInsufficientBalance(err) {
			logger.Warn(ctx, "Skipping trade due to insufficient balance", "side", action.Action, "error", err)
			return record(skipped(res, err.Error())), nil
		}
		res.Error = err.Error()
		return record(res), err
	}

	res.Success = true
	res.TxHash = receipt.TxHash
	return record(res), nil
}

func executionLabel(r types.ExecutionResult) string {
	switch {
	case r.Success:
		return "success"
	case r.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}
