package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/tradelog"
	"llm-defi-agent/internal/types"
)

const reasonDryRun = "dry run"

// LendingExecutor submits the sub-actions of a lending decision one by one.
// A failing sub-action never stops the ones after it.
type LendingExecutor struct {
	market interfaces.LendingMarket
	gate   *ViabilityGate
	queue  *signerQueue
	dryRun bool
}

func newLendingExecutor(market interfaces.LendingMarket, gate *ViabilityGate, queue *signerQueue, dryRun bool) *LendingExecutor {
	return &LendingExecutor{market: market, gate: gate, queue: queue, dryRun: dryRun}
}

// Execute returns one result per sub-action. The error is set only when
// fresh market data could not be read, in which case nothing was attempted.
func (x *LendingExecutor) Execute(ctx context.Context, d *types.Decision) ([]types.ExecutionResult, error) {
	if d == nil || !d.ShouldExecute {
		return nil, nil
	}

	md, err := x.market.GetMarketData(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh lending market data: %w", err)
	}

	results := make([]types.ExecutionResult, 0, len(d.Actions))
	for _, a := range d.Actions {
		res := x.executeAction(ctx, a, md, d.RatesAtDecision)
		logExecution(ctx, d, res)
		results = append(results, res)
	}
	return results, nil
}

func (x *LendingExecutor) executeAction(ctx context.Context, a types.SubAction, md *types.MarketData, rates map[string]types.Rates) types.ExecutionResult {
	res := types.ExecutionResult{Track: types.TrackLending, Action: a, Amount: a.Amount}

	switch a.Action {
	case types.KindDeposit, types.KindWithdraw, types.KindBorrow:
	default:
		logger.Warn(ctx, "Skipping unknown lending action", "action", a.Action, "token", a.Token)
		return skipped(res, fmt.Sprintf("unknown action %q", a.Action))
	}

	m, ok := md.Market(a.Token)
	if !ok {
		logger.Warn(ctx, "Skipping lending action for unknown market", "action", a.Action, "token", a.Token)
		return skipped(res, fmt.Sprintf("unknown market %q", a.Token))
	}

	amount, err := decimal.NewFromString(a.Amount)
	if err != nil || !amount.IsPositive() {
		return skipped(res, fmt.Sprintf("invalid amount %q", a.Amount))
	}

	var atDecision *types.Rates
	if r, ok := rates[m.Token]; ok {
		atDecision = &r
	}
	verdict := x.gate.ValidateLendingAction(a.Action, amount, m, atDecision)
	if !verdict.Viable {
		logger.Risk(ctx, types.TrackLending, "LENDING_NOT_VIABLE",
			"action", a.Action,
			"token", m.Token,
			"reason", verdict.Reason,
		)
		return skipped(res, verdict.Reason)
	}

	if x.dryRun {
		return skipped(res, reasonDryRun)
	}

	var hash string
	err = x.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		hash, err = x.submit(ctx, a.Action, amount, m.Token, a.Recipient)
		return err
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Lending action failed", err, "action", a.Action, "token", m.Token, "amount", a.Amount)
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.TxHash = hash
	return res
}

func (x *LendingExecutor) submit(ctx context.Context, kind string, amount decimal.Decimal, token, recipient string) (string, error) {
	switch kind {
	case types.KindDeposit:
		return x.market.Deposit(ctx, amount, token, recipient)
	case types.KindWithdraw:
		return x.market.Withdraw(ctx, amount, token, recipient)
	default:
		return x.market.Borrow(ctx, amount, token, recipient)
	}
}

func skipped(res types.ExecutionResult, reason string) types.ExecutionResult {
	res.Skipped = true
	res.Reason = reason
	return res
}

// logExecution writes the trade audit line for every attempted sub-action.
func logExecution(ctx context.Context, d *types.Decision, res types.ExecutionResult) {
	if res.Success {
		logger.Trade(ctx, res.Track, res.Action.Action, res.Amount, res.TxHash, "token", res.Action.Token)
	}
	if err := tradelog.AppendExecution(d.ID, res); err != nil {
		logger.Warn(ctx, "Failed to write execution log", "error", err)
	}
}
