package engine

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"llm-defi-agent/internal/types"
)

func TestPositionSize(t *testing.T) {
	balance := big.NewInt(1000)
	if got := PositionSize(balance, types.RiskHigh, 5, 10); got.Int64() != 50 {
		t.Errorf("Expected 50 under HIGH risk, got %s", got)
	}
	if got := PositionSize(balance, types.RiskLow, 5, 10); got.Int64() != 100 {
		t.Errorf("Expected 100 under LOW risk, got %s", got)
	}
	if got := PositionSize(nil, types.RiskLow, 5, 10); got.Sign() != 0 {
		t.Errorf("Expected 0 for nil balance, got %s", got)
	}
}

func TestCheckViability(t *testing.T) {
	w := newFakeWallet()
	w.balances[stableAddr] = big.NewInt(1_000_000_000)
	g := NewViabilityGate(w, TokenPair{Stable: stableAddr, Asset: assetAddr}, 5, 10, 1, 10)

	v, err := g.CheckViability(context.Background(), types.KindSwapBuy, types.RiskLow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !v.Viable || v.Token != stableAddr || v.Amount != "100" || v.Balance != "1000" {
		t.Errorf("Unexpected verdict %+v", v)
	}

	v, err = g.CheckViability(context.Background(), types.KindSwapSell, types.RiskHigh)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if v.Viable || !strings.Contains(v.Reason, "insufficient balance") {
		t.Errorf("Expected non-viable sell with empty asset balance, got %+v", v)
	}

	if _, err := g.CheckViability(context.Background(), "hold", types.RiskHigh); err == nil {
		t.Error("Expected error for unknown side")
	}
}

func TestValidateLendingAction(t *testing.T) {
	g := NewViabilityGate(newFakeWallet(), TokenPair{}, 5, 10, 1, 10)
	m := types.MarketInfo{
		Token:             "USDC",
		SupplyRate:        5,
		BorrowRate:        8,
		TotalSupply:       decimal.NewFromInt(1000),
		TotalBorrows:      decimal.NewFromInt(400),
		UnderlyingBalance: decimal.NewFromInt(200),
		ReceiptBalance:    decimal.NewFromInt(50),
	}
	rates := &types.Rates{Supply: 5, Borrow: 8}

	tests := []struct {
		name   string
		kind   string
		amount int64
		market func(types.MarketInfo) types.MarketInfo
		viable bool
		reason string
	}{
		{"deposit covered", types.KindDeposit, 100, nil, true, ""},
		{"deposit over balance", types.KindDeposit, 300, nil, false, "insufficient balance"},
		{"withdraw over receipt balance", types.KindWithdraw, 100, nil, false, "insufficient balance"},
		{"borrow within liquidity", types.KindBorrow, 600, nil, true, ""},
		{"borrow over liquidity", types.KindBorrow, 601, nil, false, "insufficient liquidity"},
		{"supply rate drift", types.KindDeposit, 10, func(m types.MarketInfo) types.MarketInfo {
			m.SupplyRate = 5.6
			return m
		}, false, "supply rate moved"},
		{"borrow rate within bound", types.KindBorrow, 10, func(m types.MarketInfo) types.MarketInfo {
			m.BorrowRate = 8.7
			return m
		}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mi := m
			if tt.market != nil {
				mi = tt.market(m)
			}
			v := g.ValidateLendingAction(tt.kind, decimal.NewFromInt(tt.amount), mi, rates)
			if v.Viable != tt.viable {
				t.Fatalf("Expected viable=%v, got %+v", tt.viable, v)
			}
			if tt.reason != "" && !strings.Contains(v.Reason, tt.reason) {
				t.Errorf("Expected reason containing %q, got %q", tt.reason, v.Reason)
			}
		})
	}
}
