package engine

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/types"
	"llm-defi-agent/internal/units"
)

// ViabilityGate decides whether an approved action can be executed against
// the wallet's current balances. Balances are read fresh on every call.
type ViabilityGate struct {
	wallet          interfaces.Wallet
	tokens          TokenPair
	highPct         int64
	lowPct          int64
	minTradeUnits   *big.Int
	maxRateDriftPct float64
}

// NewViabilityGate sizes trades at highPct/lowPct of balance and rejects lending
// actions whose rate moved more than maxRateDriftPct since the decision.
func NewViabilityGate(w interfaces.Wallet, tokens TokenPair, highPct, lowPct, minTradeUnits int64, maxRateDriftPct float64) *ViabilityGate {
	return &ViabilityGate{
		wallet:          w,
		tokens:          tokens,
		highPct:         highPct,
		lowPct:          lowPct,
		minTradeUnits:   big.NewInt(minTradeUnits),
		maxRateDriftPct: maxRateDriftPct,
	}
}

// PositionSize returns balance*pct/100, with pct chosen by risk level.
func PositionSize(balance *big.Int, risk types.RiskLevel, highPct, lowPct int64) *big.Int {
	if balance == nil || balance.Sign() <= 0 {
		return new(big.Int)
	}
	pct := lowPct
	if risk == types.RiskHigh {
		pct = highPct
	}
	out := new(big.Int).Mul(balance, big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}

// SizePosition sizes a swap from the balance of the token being sold.
func (g *ViabilityGate) SizePosition(ctx context.Context, side string, risk types.RiskLevel) (*big.Int, error) {
	sell, _, err := g.tokens.forSide(side)
	if err != nil {
		return nil, err
	}
	balance, err := g.wallet.BalanceOf(ctx, sell)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", sell, err)
	}
	return PositionSize(balance, risk, g.highPct, g.lowPct), nil
}

// CheckViability reports whether the sized position reaches the minimum
// tradable amount. A non-viable verdict is a skip, never an error.
func (g *ViabilityGate) CheckViability(ctx context.Context, side string, risk types.RiskLevel) (types.ViabilityVerdict, error) {
	sell, _, err := g.tokens.forSide(side)
	if err != nil {
		return types.ViabilityVerdict{}, err
	}
	balance, err := g.wallet.BalanceOf(ctx, sell)
	if err != nil {
		return types.ViabilityVerdict{}, fmt.Errorf("read balance of %s: %w", sell, err)
	}
	decimals, err := g.wallet.Decimals(ctx, sell)
	if err != nil {
		return types.ViabilityVerdict{}, fmt.Errorf("read decimals of %s: %w", sell, err)
	}

	size := PositionSize(balance, risk, g.highPct, g.lowPct)
	verdict := types.ViabilityVerdict{
		Viable:  true,
		Balance: units.FormatUnits(balance, decimals),
		Amount:  units.FormatUnits(size, decimals),
		Token:   sell,
	}
	if size.Sign() <= 0 || size.Cmp(g.minTradeUnits) < 0 {
		verdict.Viable = false
		verdict.Reason = fmt.Sprintf("insufficient balance: %s %s sizes to %s, below the minimum tradable amount",
			verdict.Balance, sell, verdict.Amount)
		logger.Risk(ctx, types.TrackTrading, "TRADE_NOT_VIABLE",
			"side", side,
			"token", sell,
			"balance", verdict.Balance,
			"risk_level", string(risk),
		)
	}
	return verdict, nil
}

// ValidateLendingAction re-checks one lending sub-action against fresh
// market data. atDecision is nil when no rate was recorded for the market.
func (g *ViabilityGate) ValidateLendingAction(kind string, amount decimal.Decimal, m types.MarketInfo, atDecision *types.Rates) types.ViabilityVerdict {
	v := types.ViabilityVerdict{Viable: true, Token: m.Token, Amount: amount.String()}

	switch kind {
	case types.KindDeposit:
		v.Balance = m.UnderlyingBalance.String()
		if m.UnderlyingBalance.LessThan(amount) {
			return notViable(v, fmt.Sprintf("insufficient balance: deposit of %s %s exceeds wallet balance %s", amount, m.Token, v.Balance))
		}
	case types.KindWithdraw:
		v.Balance = m.ReceiptBalance.String()
		if m.ReceiptBalance.LessThan(amount) {
			return notViable(v, fmt.Sprintf("insufficient balance: withdrawal of %s %s exceeds receipt balance %s", amount, m.Token, v.Balance))
		}
		if m.Liquidity().LessThan(amount) {
			return notViable(v, fmt.Sprintf("insufficient liquidity: withdrawal of %s %s exceeds available %s", amount, m.Token, m.Liquidity()))
		}
	case types.KindBorrow:
		v.Balance = m.Liquidity().String()
		if m.Liquidity().LessThan(amount) {
			return notViable(v, fmt.Sprintf("insufficient liquidity: borrow of %s %s exceeds available %s", amount, m.Token, m.Liquidity()))
		}
	default:
		return notViable(v, fmt.Sprintf("unknown lending action %q", kind))
	}

	if atDecision == nil || g.maxRateDriftPct <= 0 {
		return v
	}
	then, now, label := atDecision.Supply, m.SupplyRate, "supply"
	if kind == types.KindBorrow {
		then, now, label = atDecision.Borrow, m.BorrowRate, "borrow"
	}
	if drift := rateDriftPct(then, now); drift > g.maxRateDriftPct {
		return notViable(v, fmt.Sprintf("%s rate moved %.2f%% since decision (%.4f -> %.4f)", label, drift, then, now))
	}
	return v
}

// rateDriftPct is the relative change in percent; 0 when there is no base rate.
func rateDriftPct(then, now float64) float64 {
	if then == 0 {
		return 0
	}
	return math.Abs(now-then) / math.Abs(then) * 100
}

func notViable(v types.ViabilityVerdict, reason string) types.ViabilityVerdict {
	v.Viable = false
	v.Reason = reason
	return v
}
