package zeroex

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/types"
)

const DefaultBaseURL = "https://api.0x.org"

// Client requests permit2 swap quotes from the 0x API.
type Client struct {
	chainID int64
	http    *api.Client
}

var _ interfaces.SwapAggregator = (*Client)(nil)

// NewClient sends the 0x v2 headers for chainID on every request.
func NewClient(baseURL, apiKey string, chainID int64, opts ...api.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	chain := strconv.FormatInt(chainID, 10)
	base := []api.ClientOption{
		api.WithBaseURL(strings.TrimRight(baseURL, "/")),
		api.WithHeader("0x-api-key", apiKey),
		api.WithHeader("0x-chain-id", chain),
		api.WithHeader("0x-version", "v2"),
		api.WithTimeout(20 * time.Second),
	}
	return &Client{chainID: chainID, http: api.NewClient(append(base, opts...)...)}
}

type quoteResponse struct {
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	BuyAmount          string `json:"buyAmount"`
	SellAmount         string `json:"sellAmount"`
	Permit2            *struct {
		EIP712 json.RawMessage `json:"eip712"`
	} `json:"permit2"`
	Transaction struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Gas      string `json:"gas"`
		GasPrice string `json:"gasPrice"`
		Value    string `json:"value"`
	} `json:"transaction"`
}

// Quote asks for a permit2 swap quote. A quote without liquidity is returned, not an error.
func (c *Client) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	if req.SellAmount == nil {
		return nil, fmt.Errorf("quote: sell amount missing")
	}
	q := url.Values{}
	q.Set("chainId", strconv.FormatInt(c.chainID, 10))
	q.Set("sellToken", req.SellToken)
	q.Set("buyToken", req.BuyToken)
	q.Set("sellAmount", req.SellAmount.String())
	q.Set("taker", req.Taker)

	r := api.NewRequest(http.MethodGet, "/swap/permit2/quote").WithContext(ctx).WithQuery(q)
	resp, err := c.http.DoWithRetry(r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	var body quoteResponse
	if err := resp.ParseJSON(&body); err != nil {
		return nil, err
	}
	return body.toQuote()
}

func (b *quoteResponse) toQuote() (*types.Quote, error) {
	out := &types.Quote{LiquidityAvailable: b.LiquidityAvailable}
	if !b.LiquidityAvailable {
		return out, nil
	}

	var err error
	if out.BuyAmount, err = parseBig("buyAmount", b.BuyAmount); err != nil {
		return nil, err
	}
	if out.SellAmount, err = parseBig("sellAmount", b.SellAmount); err != nil {
		return nil, err
	}
	if b.Permit2 != nil {
		out.PermitTypedData = b.Permit2.EIP712
	}

	tx := types.TxRequest{To: b.Transaction.To}
	if tx.Data, err = hexutil.Decode(b.Transaction.Data); err != nil {
		return nil, fmt.Errorf("quote transaction data: %w", err)
	}
	if tx.Value, err = parseBig("value", b.Transaction.Value); err != nil {
		return nil, err
	}
	if tx.GasPrice, err = parseBig("gasPrice", b.Transaction.GasPrice); err != nil {
		return nil, err
	}
	gas, err := parseBig("gas", b.Transaction.Gas)
	if err != nil {
		return nil, err
	}
	tx.Gas = gas.Uint64()
	out.Transaction = tx
	return out, nil
}

// parseBig reads a decimal string; empty means zero.
func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("quote %s: invalid integer %q", field, s)
	}
	return v, nil
}
