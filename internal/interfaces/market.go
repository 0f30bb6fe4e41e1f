package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"llm-defi-agent/internal/types"
)

type PriceFeed interface {
	GetSeries(ctx context.Context, req types.SeriesRequest) (*types.MarketSeries, error)
}

type SwapAggregator interface {
	Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error)
}

// LendingMarket reads market conditions and submits lending calls. Amounts are in token units.
type LendingMarket interface {
	GetMarketData(ctx context.Context) (*types.MarketData, error)
	Deposit(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error)
	Withdraw(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error)
	Borrow(ctx context.Context, amount decimal.Decimal, token, recipient string) (string, error)
}
