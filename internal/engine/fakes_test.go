package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"llm-defi-agent/internal/types"
)

const (
	stableAddr  = "0xstable"
	assetAddr   = "0xasset"
	permit2Addr = "0xpermit2"
	walletAddr  = "0xwallet"
)

type fakeWallet struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	approvals  []string
	sent       []types.TxRequest
	sendErr    error
	nonce      int
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{balances: map[string]*big.Int{}, allowances: map[string]*big.Int{}}
}

func (w *fakeWallet) Address() string { return walletAddr }

func (w *fakeWallet) BalanceOf(ctx context.Context, token string) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (w *fakeWallet) Decimals(ctx context.Context, token string) (uint8, error) { return 6, nil }

func (w *fakeWallet) Allowance(ctx context.Context, token, spender string) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a, ok := w.allowances[token+spender]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (w *fakeWallet) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.allowances[token+spender] = new(big.Int).Set(amount)
	w.approvals = append(w.approvals, token)
	return w.nextHashLocked(), nil
}

func (w *fakeWallet) SignTypedData(ctx context.Context, typedData json.RawMessage) ([]byte, error) {
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

func (w *fakeWallet) SendTransaction(ctx context.Context, tx types.TxRequest) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sendErr != nil {
		return "", w.sendErr
	}
	w.sent = append(w.sent, tx)
	return w.nextHashLocked(), nil
}

func (w *fakeWallet) WaitForReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	return &types.Receipt{TxHash: txHash, Status: 1}, nil
}

func (w *fakeWallet) nextHashLocked() string {
	w.nonce++
	return fmt.Sprintf("0x%064x", w.nonce)
}

type fakeAggregator struct {
	noLiquidity bool
	last        types.QuoteRequest
}

func (a *fakeAggregator) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	a.last = req
	return &types.Quote{
		LiquidityAvailable: !a.noLiquidity,
		SellAmount:         req.SellAmount,
		BuyAmount:          big.NewInt(1),
		Transaction:        types.TxRequest{To: "0xrouter", Data: []byte{0xde, 0xad}},
		PermitTypedData:    json.RawMessage(`{"primaryType":"PermitTransferFrom"}`),
	}, nil
}

type fakeLending struct {
	mu     sync.Mutex
	data   *types.MarketData
	err    error
	failOn string
	calls  []string
}

func (l *fakeLending) GetMarketData(ctx context.Context) (*types.MarketData, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.data, nil
}

func (l *fakeLending) submit(kind string, amount decimal.Decimal, token string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, kind+":"+token+":"+amount.String())
	if token == l.failOn {
		return "", errors.New("execution reverted: market paused")
	}
	return fmt.Sprintf("0xhash%d", len(l.calls)), nil
}

func (l *fakeLending) Deposit(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error) {
	return l.submit(types.KindDeposit, amount, token)
}

func (l *fakeLending) Withdraw(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error) {
	return l.submit(types.KindWithdraw, amount, token)
}

func (l *fakeLending) Borrow(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error) {
	return l.submit(types.KindBorrow, amount, token)
}

type fakeFeed struct {
	series *types.MarketSeries
	err    error
}

func (f *fakeFeed) GetSeries(ctx context.Context, req types.SeriesRequest) (*types.MarketSeries, error) {
	return f.series, f.err
}

// scriptedProvider answers trading and lending prompts with fixed replies.
type scriptedProvider struct {
	name    string
	trading string
	lending string
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	if strings.Contains(req.System, "lending") {
		if p.lending == "" {
			return "", errors.New("no lending reply")
		}
		return p.lending, nil
	}
	if p.trading == "" {
		return "", errors.New("no trading reply")
	}
	return p.trading, nil
}
