package curvance

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"llm-defi-agent/internal/types"
)

const (
	walletAddr = "0x00000000000000000000000000000000000000aa"
	usdcAddr   = "0x00000000000000000000000000000000000000b1"
	cUSDCAddr  = "0x00000000000000000000000000000000000000c1"
)

type writeCall struct {
	to     string
	method string
	args   []interface{}
}

type fakeWriter struct {
	balances   map[string]*big.Int
	allowance  *big.Int
	approvals  int
	writes     []writeCall
	waited     []string
	receiptErr error
}

func (f *fakeWriter) Address() string { return walletAddr }

func (f *fakeWriter) Decimals(ctx context.Context, token string) (uint8, error) { return 6, nil }

func (f *fakeWriter) BalanceOfAccount(ctx context.Context, token, holder string) (*big.Int, error) {
	if b, ok := f.balances[token]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeWriter) Allowance(ctx context.Context, token, spender string) (*big.Int, error) {
	if f.allowance == nil {
		return big.NewInt(0), nil
	}
	return f.allowance, nil
}

func (f *fakeWriter) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	f.approvals++
	f.allowance = amount
	return "0xapprove", nil
}

func (f *fakeWriter) WriteContract(ctx context.Context, to string, parsed abi.ABI, method string, args ...interface{}) (string, error) {
	if _, ok := parsed.Methods[method]; !ok {
		return "", &methodError{method}
	}
	f.writes = append(f.writes, writeCall{to: to, method: method, args: args})
	return "0xwrite", nil
}

func (f *fakeWriter) WaitForReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	f.waited = append(f.waited, txHash)
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return &types.Receipt{TxHash: txHash, Status: 1}, nil
}

type methodError struct{ name string }

func (e *methodError) Error() string { return "no method " + e.name }

func newTestClient(t *testing.T, w *fakeWriter, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("Expected /markets, got %s", r.URL.Path)
		}
		rw.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(w, srv.URL, map[string]Market{"USDC": {Underlying: usdcAddr, Market: cUSDCAddr}})
}

func TestGetMarketData(t *testing.T) {
	w := &fakeWriter{balances: map[string]*big.Int{
		usdcAddr:  big.NewInt(250_000_000),
		cUSDCAddr: big.NewInt(1_500_000),
	}}
	c := newTestClient(t, w, `{"markets":[
		{"symbol":"usdc","supplyRate":4.2,"borrowRate":6.1,"totalSupply":"1000000","totalBorrows":"400000","collateralRatio":0.8},
		{"symbol":"DAI","supplyRate":3}
	]}`)

	md, err := c.GetMarketData(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(md.Markets) != 1 {
		t.Fatalf("Expected only configured markets, got %v", md.Markets)
	}
	m := md.Markets["USDC"]
	if m.Token != "USDC" || m.SupplyRate != 4.2 {
		t.Errorf("Unexpected market %+v", m)
	}
	if !m.UnderlyingBalance.Equal(decimal.NewFromInt(250)) || !m.ReceiptBalance.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Unexpected balances %s %s", m.UnderlyingBalance, m.ReceiptBalance)
	}
	if !m.Liquidity().Equal(decimal.NewFromInt(600000)) {
		t.Errorf("Expected liquidity 600000, got %s", m.Liquidity())
	}
	if md.Wallet != walletAddr {
		t.Errorf("Expected wallet %s, got %s", walletAddr, md.Wallet)
	}
}

func TestDepositApprovesThenWrites(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(t, w, `{}`)

	hash, err := c.Deposit(context.Background(), decimal.RequireFromString("12.5"), "USDC", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if hash != "0xwrite" || w.approvals != 1 {
		t.Errorf("Expected one approval and write hash, got %s approvals=%d", hash, w.approvals)
	}
	call := w.writes[0]
	if call.method != "deposit" || call.to != cUSDCAddr {
		t.Fatalf("Unexpected call %+v", call)
	}
	if amt := call.args[0].(*big.Int); amt.Cmp(big.NewInt(12_500_000)) != 0 {
		t.Errorf("Expected 12500000 base units, got %s", amt)
	}
	if to := call.args[1].(common.Address); to != common.HexToAddress(walletAddr) {
		t.Errorf("Expected recipient to default to wallet, got %s", to.Hex())
	}
	if strings.Join(w.waited, ",") != "0xapprove,0xwrite" {
		t.Errorf("Expected approval and write receipts, got %v", w.waited)
	}
}

func TestWithdrawAndBorrow(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(t, w, `{}`)

	if _, err := c.Withdraw(context.Background(), decimal.NewFromInt(1), usdcAddr, walletAddr); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := c.Borrow(context.Background(), decimal.NewFromInt(2), "usdc", walletAddr); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if w.approvals != 0 {
		t.Errorf("Expected no approvals, got %d", w.approvals)
	}
	if len(w.writes) != 2 || w.writes[0].method != "withdraw" || len(w.writes[0].args) != 3 || w.writes[1].method != "borrow" {
		t.Errorf("Unexpected writes %+v", w.writes)
	}
}

func TestLendingCallErrors(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(t, w, `{}`)

	if _, err := c.Borrow(context.Background(), decimal.NewFromInt(1), "WETH", ""); err == nil {
		t.Error("Expected error for unknown market")
	}
	if _, err := c.Borrow(context.Background(), decimal.Zero, "USDC", ""); err == nil {
		t.Error("Expected error for zero amount")
	}

	w.receiptErr = types.ErrTxReverted
	hash, err := c.Borrow(context.Background(), decimal.NewFromInt(1), "USDC", "")
	if err == nil || hash != "0xwrite" {
		t.Errorf("Expected reverted error with hash, got %q %v", hash, err)
	}
}
