package stork

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"llm-defi-agent/internal/api"
	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/types"
)

const DefaultBaseURL = "https://rest.jp.stork-oracle.network/v1"

var errNoTimestamps = errors.New("price feed response has no timestamp array")

// Client reads OHLCV history from the Stork tradingview endpoint.
type Client struct {
	http *api.Client
}

var _ interfaces.PriceFeed = (*Client)(nil)

// NewClient authenticates with apiKey. An empty baseURL uses the public REST endpoint.
func NewClient(baseURL, apiKey string, opts ...api.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base := []api.ClientOption{
		api.WithBaseURL(strings.TrimRight(baseURL, "/")),
		api.WithHeader("Authorization", "Basic "+apiKey),
		api.WithTimeout(30 * time.Second),
	}
	return &Client{http: api.NewClient(append(base, opts...)...)}
}

type historyResponse struct {
	S      string    `json:"s"`
	Status string    `json:"status"`
	ErrMsg string    `json:"errmsg"`
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []float64 `json:"v"`
}

// GetSeries fetches OHLCV bars for req. Missing price arrays come back empty.
func (c *Client) GetSeries(ctx context.Context, req types.SeriesRequest) (*types.MarketSeries, error) {
	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("resolution", req.Resolution)
	q.Set("from", strconv.FormatInt(req.From, 10))
	q.Set("to", strconv.FormatInt(req.To, 10))

	r := api.NewRequest(http.MethodGet, "/tradingview/history").WithContext(ctx).WithQuery(q)
	resp, err := c.http.DoWithRetry(r, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", req.Symbol, err)
	}

	var body historyResponse
	if err := resp.ParseJSON(&body); err != nil {
		return nil, err
	}
	if body.S == "error" || body.Status == "error" {
		msg := body.ErrMsg
		if msg == "" {
			msg = "API returned error status"
		}
		return nil, fmt.Errorf("%w: %s", types.ErrFeedStatus, msg)
	}
	if body.T == nil {
		return nil, errNoTimestamps
	}

	return &types.MarketSeries{
		Symbol:     req.Symbol,
		Resolution: req.Resolution,
		Timestamps: body.T,
		Open:       orEmpty(body.O),
		High:       orEmpty(body.H),
		Low:        orEmpty(body.L),
		Close:      orEmpty(body.C),
		Volume:     orEmpty(body.V),
	}, nil
}

func orEmpty(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
