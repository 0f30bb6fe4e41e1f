package curvance

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/chain"
	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/types"
	"llm-defi-agent/internal/units"
)

const marketJSON = `[
 {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}]},
 {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}]},
 {"type":"function","name":"borrow","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[]}
]`

var marketABI = chain.MustParseABI(marketJSON)

// ContractWriter is the subset of the chain client the adapter drives.
type ContractWriter interface {
	Address() string
	Decimals(ctx context.Context, token string) (uint8, error)
	BalanceOfAccount(ctx context.Context, token, holder string) (*big.Int, error)
	Allowance(ctx context.Context, token, spender string) (*big.Int, error)
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)
	WriteContract(ctx context.Context, to string, parsed abi.ABI, method string, args ...interface{}) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

// Market is one configured lending market: the underlying token and the
// market contract, which is also the receipt token.
type Market struct {
	Underlying string
	Market     string
}

type Client struct {
	writer  ContractWriter
	http    *api.Client
	markets map[string]Market
	now     func() time.Time
}

var _ interfaces.LendingMarket = (*Client)(nil)

// NewClient reads market statistics from marketDataURL and writes through writer.
// markets maps a symbol to its underlying token and market contract.
func NewClient(writer ContractWriter, marketDataURL string, markets map[string]Market, opts ...api.ClientOption) *Client {
	base := []api.ClientOption{
		api.WithBaseURL(strings.TrimRight(marketDataURL, "/")),
		api.WithTimeout(20 * time.Second),
	}
	return &Client{
		writer:  writer,
		http:    api.NewClient(append(base, opts...)...),
		markets: markets,
		now:     time.Now,
	}
}

type marketStats struct {
	Symbol          string          `json:"symbol"`
	SupplyRate      float64         `json:"supplyRate"`
	BorrowRate      float64         `json:"borrowRate"`
	TotalSupply     decimal.Decimal `json:"totalSupply"`
	TotalBorrows    decimal.Decimal `json:"totalBorrows"`
	CollateralRatio float64         `json:"collateralRatio"`
}

type statsResponse struct {
	Markets []marketStats `json:"markets"`
}

// GetMarketData merges endpoint statistics with the wallet's on-chain
// balances. Markets the endpoint does not report are left out.
func (c *Client) GetMarketData(ctx context.Context) (*types.MarketData, error) {
	resp, err := c.http.DoWithRetry(api.NewRequest(http.MethodGet, "/markets").WithContext(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch lending markets: %w", err)
	}
	var body statsResponse
	if err := resp.ParseJSON(&body); err != nil {
		return nil, err
	}

	wallet := c.writer.Address()
	md := &types.MarketData{
		Wallet:    wallet,
		FetchedAt: c.now().UTC(),
		Markets:   make(map[string]types.MarketInfo, len(c.markets)),
	}
	for _, s := range body.Markets {
		sym, m, ok := c.lookup(s.Symbol)
		if !ok {
			continue
		}
		dec, err := c.writer.Decimals(ctx, m.Underlying)
		if err != nil {
			return nil, fmt.Errorf("%s decimals: %w", sym, err)
		}
		under, err := c.writer.BalanceOfAccount(ctx, m.Underlying, wallet)
		if err != nil {
			return nil, fmt.Errorf("%s balance: %w", sym, err)
		}
		receipt, err := c.writer.BalanceOfAccount(ctx, m.Market, wallet)
		if err != nil {
			return nil, fmt.Errorf("%s market balance: %w", sym, err)
		}
		md.Markets[sym] = types.MarketInfo{
			Token:             sym,
			Underlying:        m.Underlying,
			Market:            m.Market,
			SupplyRate:        s.SupplyRate,
			BorrowRate:        s.BorrowRate,
			TotalSupply:       s.TotalSupply,
			TotalBorrows:      s.TotalBorrows,
			CollateralRatio:   s.CollateralRatio,
			UnderlyingBalance: units.ToDecimal(under, dec),
			ReceiptBalance:    units.ToDecimal(receipt, dec),
		}
	}
	logger.Debug(ctx, "Lending market data fetched", "markets", len(md.Markets))
	return md, nil
}

// Deposit supplies amount of the underlying, approving the market first when needed.
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error) {
	sym, m, raw, err := c.prepare(ctx, amount, token)
	if err != nil {
		return "", err
	}
	if err := c.ensureAllowance(ctx, m, raw); err != nil {
		return "", fmt.Errorf("%s approval: %w", sym, err)
	}
	return c.write(ctx, sym, m, "deposit", raw, common.HexToAddress(c.recipient(recipient)))
}

// Withdraw redeems amount of the underlying from the wallet's position.
func (c *Client) Withdraw(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error) {
	sym, m, raw, err := c.prepare(ctx, amount, token)
	if err != nil {
		return "", err
	}
	owner := common.HexToAddress(c.writer.Address())
	return c.write(ctx, sym, m, "withdraw", raw, common.HexToAddress(c.recipient(recipient)), owner)
}

// Borrow draws amount against the wallet's collateral.
func (c *Client) Borrow(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error) {
	sym, m, raw, err := c.prepare(ctx, amount, token)
	if err != nil {
		return "", err
	}
	return c.write(ctx, sym, m, "borrow", raw, common.HexToAddress(c.recipient(recipient)))
}

func (c *Client) prepare(ctx context.Context, amount decimal.Decimal, token string) (string, Market, *big.Int, error) {
	sym, m, ok := c.lookup(token)
	if !ok {
		return "", Market{}, nil, fmt.Errorf("unknown lending market %q", token)
	}
	dec, err := c.writer.Decimals(ctx, m.Underlying)
	if err != nil {
		return "", Market{}, nil, fmt.Errorf("%s decimals: %w", sym, err)
	}
	raw, err := units.FromDecimal(amount.Truncate(int32(dec)), dec)
	if err != nil {
		return "", Market{}, nil, err
	}
	if raw.Sign() <= 0 {
		return "", Market{}, nil, fmt.Errorf("%s amount must be positive", sym)
	}
	return sym, m, raw, nil
}

func (c *Client) ensureAllowance(ctx context.Context, m Market, amount *big.Int) error {
	allowance, err := c.writer.Allowance(ctx, m.Underlying, m.Market)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	hash, err := c.writer.Approve(ctx, m.Underlying, m.Market, amount)
	if err != nil {
		return err
	}
	_, err = c.writer.WaitForReceipt(ctx, hash)
	return err
}

func (c *Client) write(ctx context.Context, sym string, m Market, method string, args ...interface{}) (string, error) {
	hash, err := c.writer.WriteContract(ctx, m.Market, marketABI, method, args...)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", sym, method, err)
	}
	if _, err := c.writer.WaitForReceipt(ctx, hash); err != nil {
		return hash, fmt.Errorf("%s %s: %w", sym, method, err)
	}
	logger.Info(ctx, "Lending call confirmed", "market", sym, "method", method, "txHash", hash)
	return hash, nil
}

func (c *Client) recipient(r string) string {
	if common.IsHexAddress(r) {
		return r
	}
	return c.writer.Address()
}

// lookup resolves a token by symbol or underlying address.
func (c *Client) lookup(token string) (string, Market, bool) {
	for sym, m := range c.markets {
		if strings.EqualFold(sym, token) || strings.EqualFold(m.Underlying, token) {
			return sym, m, true
		}
	}
	return "", Market{}, false
}
