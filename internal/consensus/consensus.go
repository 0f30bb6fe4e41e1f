package consensus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/llm"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/metrics"
	"llm-defi-agent/internal/types"
)

type Config struct {
	Timeout          time.Duration
	Temperature      float32
	MaxTokens        int
	LendingMaxTokens int
}

// Engine queries every provider concurrently and reduces their opinions.
type Engine struct {
	providers []interfaces.Provider
	cfg       Config
	metrics   *metrics.Recorder
}

type parseFunc func(provider, raw string) types.OpinionResult

// New builds a consensus engine over providers. A nil recorder disables metrics.
func New(providers []interfaces.Provider, cfg Config, rec *metrics.Recorder) *Engine {
	return &Engine{providers: providers, cfg: cfg, metrics: rec}
}

// DecideTrading consults the providers on the pair and returns the consolidated decision.
func (e *Engine) DecideTrading(ctx context.Context, pair string, snap types.IndicatorSnapshot) (*types.Decision, error) {
	system, user := TradingPrompt(pair, snap)
	results := e.Collect(ctx, types.CompletionRequest{
		System:      system,
		User:        user,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}, llm.ParseTradingOpinion)

	d, err := ReduceTrading(results)
	if err != nil {
		return nil, err
	}
	if d.Action == types.ActionBuy || d.Action == types.ActionSell {
		d.Actions = []types.SubAction{{Action: strings.ToLower(d.Action), Token: pair}}
	}
	d.ShouldExecute = d.Action != types.ActionWait && len(d.Actions) > 0

	e.metrics.RecordDecision(d.Track, d.Action, d.Confidence)
	logger.Decision(ctx, d.Track, d.Action, d.Confidence, d.Reasoning.MarketCondition,
		"pair", pair,
		"risk_level", string(d.RiskLevel),
		"should_execute", d.ShouldExecute,
	)
	return d, nil
}

// DecideLending consults the providers on the lending markets. Rates seen
// here are kept on the decision for the pre-execution drift check.
func (e *Engine) DecideLending(ctx context.Context, md *types.MarketData, snap types.IndicatorSnapshot) (*types.Decision, error) {
	system, user := LendingPrompt(md, snap)
	maxTokens := e.cfg.LendingMaxTokens
	if maxTokens <= 0 {
		maxTokens = e.cfg.MaxTokens
	}
	results := e.Collect(ctx, types.CompletionRequest{
		System:      system,
		User:        user,
		Temperature: e.cfg.Temperature,
		MaxTokens:   maxTokens,
	}, llm.ParseLendingOpinion)

	d, err := ReduceLending(results, md.Wallet)
	if err != nil {
		return nil, err
	}
	d.RatesAtDecision = md.Rates()

	e.metrics.RecordDecision(d.Track, d.Action, d.Confidence)
	logger.Decision(ctx, d.Track, d.Action, d.Confidence, d.Reasoning.MarketAnalysis,
		"actions", len(d.Actions),
		"should_execute", d.ShouldExecute,
	)
	return d, nil
}

// Collect waits for every provider to settle. A provider that errors,
// returns unparseable text or outlives the timeout yields a failed result.
func (e *Engine) Collect(ctx context.Context, req types.CompletionRequest, parse parseFunc) []types.OpinionResult {
	results := make([]types.OpinionResult, len(e.providers))
	var wg sync.WaitGroup
	for i, p := range e.providers {
		wg.Add(1)
		go func(i int, p interfaces.Provider) {
			defer wg.Done()
			raw, err := e.complete(ctx, p, req)
			if err != nil {
				results[i] = types.OpinionResult{Provider: p.Name(), Err: err}
				e.metrics.RecordProviderCall(p.Name(), "error")
				return
			}
			results[i] = parse(p.Name(), raw)
			if results[i].Ok() {
				e.metrics.RecordProviderCall(p.Name(), "ok")
			} else {
				logger.Warn(ctx, "Failed to parse provider response", "provider", p.Name(), "error", results[i].Err)
				e.metrics.RecordProviderCall(p.Name(), "parse_error")
			}
		}(i, p)
	}
	wg.Wait()
	return results
}

func (e *Engine) complete(ctx context.Context, p interfaces.Provider, req types.CompletionRequest) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		text, err := p.Complete(ctx, req)
		ch <- reply{text, err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", p.Name(), ctx.Err())
	}
}

// ReduceTrading applies the consensus table to trading opinions.
func ReduceTrading(results []types.OpinionResult) (*types.Decision, error) {
	ok, err := succeeded(results)
	if err != nil {
		return nil, err
	}

	d := &types.Decision{Track: types.TrackTrading, Votes: votes(results)}
	first := ok[0]
	switch {
	case len(ok) == 1:
		d.Action = first.Action
		d.Confidence = types.ConfidenceMedium
		d.Reasoning = first.Reasoning
		d.Reasoning.MarketCondition = first.Provider + " Only: " + first.Reasoning.MarketCondition
	case agree(ok):
		d.Action = first.Action
		d.Confidence = types.ConfidenceHigh
		d.Reasoning = types.Reasoning{
			MarketCondition:   names(ok, " & ") + " Agree: " + first.Reasoning.MarketCondition,
			TechnicalAnalysis: "Consensus: " + first.Reasoning.TechnicalAnalysis,
			RiskAssessment:    CombineRiskAssessments(riskTexts(ok)...),
		}
	default:
		d.Action = types.ActionWait
		d.Confidence = types.ConfidenceLow
		d.Reasoning = types.Reasoning{
			MarketCondition:   "Mixed signals between " + listNames(ok),
			TechnicalAnalysis: suggestions(ok),
			RiskAssessment:    "HIGH due to model disagreement",
		}
	}
	d.RiskLevel = AssessRiskLevel(d.Reasoning.RiskAssessment)
	return d, nil
}

// ReduceLending applies the consensus table to lending opinions. Agreeing
// sub-action lists are concatenated; missing amounts become "0" and missing
// recipients the wallet address.
func ReduceLending(results []types.OpinionResult, wallet string) (*types.Decision, error) {
	ok, err := succeeded(results)
	if err != nil {
		return nil, err
	}

	d := &types.Decision{Track: types.TrackLending, Votes: votes(results)}
	first := ok[0]
	switch {
	case len(ok) == 1:
		d.Action = first.Action
		d.Confidence = types.ConfidenceMedium
		d.Reasoning = first.Reasoning
		d.Reasoning.MarketAnalysis = first.Provider + " Only: " + first.Reasoning.MarketAnalysis
		d.Actions = append(d.Actions, first.Actions...)
	case agree(ok):
		d.Action = first.Action
		d.Confidence = types.ConfidenceHigh
		d.Reasoning = types.Reasoning{
			MarketAnalysis: names(ok, " & ") + " Agree: " + first.Reasoning.MarketAnalysis,
			RiskAssessment: CombineRiskAssessments(riskTexts(ok)...),
		}
		for _, op := range ok {
			d.Actions = append(d.Actions, op.Actions...)
		}
	default:
		d.Action = types.ActionWait
		d.Confidence = types.ConfidenceLow
		d.Reasoning = types.Reasoning{
			MarketAnalysis: "Mixed signals between " + listNames(ok) + ": " + suggestions(ok),
			RiskAssessment: "HIGH due to model disagreement",
		}
	}

	if d.Action == types.ActionWait {
		d.Actions = nil
	}
	for i := range d.Actions {
		if d.Actions[i].Amount == "" {
			d.Actions[i].Amount = "0"
		}
		if d.Actions[i].Recipient == "" {
			d.Actions[i].Recipient = wallet
		}
	}
	d.RiskLevel = AssessRiskLevel(d.Reasoning.RiskAssessment)
	d.ShouldExecute = d.Action != types.ActionWait && len(d.Actions) > 0
	return d, nil
}

func succeeded(results []types.OpinionResult) ([]*types.Opinion, error) {
	var ok []*types.Opinion
	var errs []error
	for _, r := range results {
		if r.Ok() {
			ok = append(ok, r.Opinion)
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Provider, r.Err))
	}
	if len(ok) == 0 {
		if len(errs) == 0 {
			return nil, types.ErrNoProviders
		}
		return nil, fmt.Errorf("%w: %w", types.ErrNoProviders, errors.Join(errs...))
	}
	return ok, nil
}

func agree(ops []*types.Opinion) bool {
	for _, op := range ops[1:] {
		if op.Action != ops[0].Action {
			return false
		}
	}
	return true
}

func votes(results []types.OpinionResult) []types.Vote {
	out := make([]types.Vote, 0, len(results))
	for _, r := range results {
		v := types.Vote{Provider: r.Provider}
		if r.Ok() {
			v.Action = r.Opinion.Action
		} else if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

func riskTexts(ops []*types.Opinion) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Reasoning.RiskAssessment)
	}
	return out
}

func names(ops []*types.Opinion, sep string) string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Provider)
	}
	return strings.Join(out, sep)
}

// listNames joins as "A and B" or "A, B and C".
func listNames(ops []*types.Opinion) string {
	if len(ops) == 1 {
		return ops[0].Provider
	}
	return names(ops[:len(ops)-1], ", ") + " and " + ops[len(ops)-1].Provider
}

func suggestions(ops []*types.Opinion) string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Provider+" suggests "+op.Action)
	}
	return strings.Join(out, ", ")
}
