package types

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

type ViabilityVerdict struct {
	Viable  bool   `json:"viable"`
	Reason  string `json:"reason,omitempty"`
	Balance string `json:"balance"`
	Amount  string `json:"amount,omitempty"`
	Token   string `json:"token"`
}

// ExecutionResult is the outcome of one attempted sub-action.
type ExecutionResult struct {
	Track   string    `json:"track"`
	Action  SubAction `json:"action"`
	Success bool      `json:"success"`
	Skipped bool      `json:"skipped,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Amount  string    `json:"amount,omitempty"`
	TxHash  string    `json:"txHash,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// DecisionRecord is one durable history entry. Executions and ExecutedAt
// are written once, after the cycle's execution stage.
type DecisionRecord struct {
	ID         string             `json:"id"`
	Pair       string             `json:"pair"`
	CreatedAt  time.Time          `json:"createdAt"`
	Indicators *IndicatorSnapshot `json:"indicators,omitempty"`
	Trading    *Decision          `json:"trading,omitempty"`
	Lending    *Decision          `json:"lending,omitempty"`
	Executions []ExecutionResult  `json:"executions,omitempty"`
	ExecutedAt *time.Time         `json:"executedAt,omitempty"`
}

type ExecutionPatch struct {
	Results    []ExecutionResult
	ExecutedAt time.Time
}

type HistoryFilter struct {
	Pair  string
	Since time.Time
	Limit int
}

// TxRequest is an unsigned transaction as handed to the signer.
type TxRequest struct {
	To       string
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

type Receipt struct {
	TxHash      string `json:"txHash"`
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

type QuoteRequest struct {
	SellToken  string
	BuyToken   string
	SellAmount *big.Int
	Taker      string
}

// Quote is a swap aggregator quote. PermitTypedData holds the raw EIP-712
// document the taker must sign.
type Quote struct {
	LiquidityAvailable bool
	BuyAmount          *big.Int
	SellAmount         *big.Int
	Transaction        TxRequest
	PermitTypedData    json.RawMessage
}

// MarketInfo describes one lending market as seen by the wallet.
// Amounts are in token units.
type MarketInfo struct {
	Token             string          `json:"token"`
	Underlying        string          `json:"underlying"`
	Market            string          `json:"market"`
	SupplyRate        float64         `json:"supplyRate"`
	BorrowRate        float64         `json:"borrowRate"`
	TotalSupply       decimal.Decimal `json:"totalSupply"`
	TotalBorrows      decimal.Decimal `json:"totalBorrows"`
	CollateralRatio   float64         `json:"collateralRatio"`
	UnderlyingBalance decimal.Decimal `json:"underlyingBalance"`
	ReceiptBalance    decimal.Decimal `json:"receiptBalance"`
}

func (m MarketInfo) Liquidity() decimal.Decimal {
	return m.TotalSupply.Sub(m.TotalBorrows)
}

type MarketData struct {
	Wallet    string                `json:"wallet"`
	FetchedAt time.Time             `json:"fetchedAt"`
	Markets   map[string]MarketInfo `json:"markets"`
}

// Market looks a token up by symbol or underlying address, case-insensitively.
func (md *MarketData) Market(token string) (MarketInfo, bool) {
	if md == nil {
		return MarketInfo{}, false
	}
	if m, ok := md.Markets[token]; ok {
		return m, true
	}
	for sym, m := range md.Markets {
		if equalFold(sym, token) || equalFold(m.Underlying, token) {
			return m, true
		}
	}
	return MarketInfo{}, false
}

func (md *MarketData) Rates() map[string]Rates {
	if md == nil {
		return nil
	}
	out := make(map[string]Rates, len(md.Markets))
	for sym, m := range md.Markets {
		out[sym] = Rates{Supply: m.SupplyRate, Borrow: m.BorrowRate}
	}
	return out
}
