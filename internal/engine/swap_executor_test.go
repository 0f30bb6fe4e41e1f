package engine

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"llm-defi-agent/internal/types"
)

func TestExecuteSwapApprovesAndAppendsSignature(t *testing.T) {
	w := newFakeWallet()
	w.balances[stableAddr] = big.NewInt(500)
	agg := &fakeAggregator{}
	s := NewSwapExecutor(w, agg, TokenPair{Stable: stableAddr, Asset: assetAddr}, permit2Addr)

	receipt, err := s.ExecuteSwap(context.Background(), types.KindSwapBuy, big.NewInt(100))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if receipt.TxHash == "" {
		t.Error("Expected a transaction hash")
	}
	if len(w.approvals) != 1 || w.approvals[0] != stableAddr {
		t.Errorf("Expected one approval of the stable token, got %v", w.approvals)
	}
	if agg.last.SellToken != stableAddr || agg.last.BuyToken != assetAddr || agg.last.Taker != walletAddr {
		t.Errorf("Unexpected quote request %+v", agg.last)
	}

	if len(w.sent) != 1 {
		t.Fatalf("Expected one transaction, got %d", len(w.sent))
	}
	data := w.sent[0].Data
	if len(data) != 2+32+65 {
		t.Fatalf("Expected data length %d, got %d", 2+32+65, len(data))
	}
	if !bytes.Equal(data[:2], []byte{0xde, 0xad}) {
		t.Errorf("Expected original calldata prefix, got %x", data[:2])
	}
	if new(big.Int).SetBytes(data[2:34]).Int64() != 65 {
		t.Errorf("Expected encoded signature length 65, got %x", data[2:34])
	}

	if _, err := s.ExecuteSwap(context.Background(), types.KindSwapBuy, big.NewInt(100)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(w.approvals) != 1 {
		t.Errorf("Expected existing allowance to be reused, got %d approvals", len(w.approvals))
	}
}

func TestExecuteSwapNoLiquidity(t *testing.T) {
	w := newFakeWallet()
	w.balances[assetAddr] = big.NewInt(500)
	s := NewSwapExecutor(w, &fakeAggregator{noLiquidity: true}, TokenPair{Stable: stableAddr, Asset: assetAddr}, permit2Addr)

	_, err := s.ExecuteSwap(context.Background(), types.KindSwapSell, big.NewInt(100))
	if !errors.Is(err, types.ErrNoLiquidity) {
		t.Fatalf("Expected ErrNoLiquidity, got %v", err)
	}
	if len(w.sent) != 0 {
		t.Errorf("Expected no transaction, got %d", len(w.sent))
	}
}

func TestExecuteSwapInsufficientBalance(t *testing.T) {
	w := newFakeWallet()
	w.balances[stableAddr] = big.NewInt(10)
	s := NewSwapExecutor(w, &fakeAggregator{}, TokenPair{Stable: stableAddr, Asset: assetAddr}, permit2Addr)

	_, err := s.ExecuteSwap(context.Background(), types.KindSwapBuy, big.NewInt(100))
	if !types.IsInsufficientBalance(err) {
		t.Fatalf("Expected insufficient balance, got %v", err)
	}
}
